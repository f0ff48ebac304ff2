package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"academy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the token's role claim
const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
)

// Authenticator validates HS256 access tokens. Issuing them is handled elsewhere.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Secret() []byte {
	return a.secret
}

// RequireRole validates the JWT token and checks if the user's role exists in the allowedRoles list
func (a *Authenticator) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Authorization is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Invalid token claims"))
			return
		}

		userRole, ok := claims["role"].(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error("Role not found in token"))
			return
		}
		if !slices.Contains(allowedRoles, userRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error("Access denied: insufficient permissions"))
			return
		}

		userID, err := subjectID(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Invalid token subject"))
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, userRole)

		c.Next()
	}
}

// subjectID reads sub as a numeric user id. It may be encoded as a string or a number.
func subjectID(claims jwt.MapClaims) (uint, error) {
	switch v := claims["sub"].(type) {
	case string:
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return 0, jwt.ErrTokenInvalidSubject
		}
		return uint(id), nil
	case float64:
		if v < 1 || v != float64(uint(v)) {
			return 0, jwt.ErrTokenInvalidSubject
		}
		return uint(v), nil
	}
	return 0, jwt.ErrTokenInvalidSubject
}

// Caller is the authenticated identity attached by RequireRole.
type Caller struct {
	ID   uint
	Role string
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// CallerFrom returns the identity set by RequireRole, if any.
func CallerFrom(c *gin.Context) (Caller, bool) {
	id, ok := c.Get(ctxUserID)
	if !ok {
		return Caller{}, false
	}
	role := c.GetString(ctxUserRole)
	uid, ok := id.(uint)
	return Caller{ID: uid, Role: role}, ok
}
