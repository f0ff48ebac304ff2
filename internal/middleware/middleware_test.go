package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "middleware-secret"

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func protectedRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := NewAuthenticator(testSecret)
	r.GET("/private", auth.RequireRole(roles...), func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": caller.ID, "role": caller.Role})
	})
	return r
}

func TestRequireRole(t *testing.T) {
	r := protectedRouter(RoleAdmin)

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"bad scheme", "Token abc", "", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signed(t, "other", jwt.MapClaims{"sub": "1", "role": "admin"}), "", http.StatusUnauthorized},
		{"no role", "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": "1"}), "", http.StatusForbidden},
		{"wrong role", "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": "1", "role": "student"}), "", http.StatusForbidden},
		{"bad subject", "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": "abc", "role": "admin"}), "", http.StatusUnauthorized},
		{"string subject", "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": "7", "role": "admin"}), "", http.StatusOK},
		{"numeric subject", "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": 7, "role": "admin"}), "", http.StatusOK},
		{"cookie", "", signed(t, testSecret, jwt.MapClaims{"sub": "7", "role": "admin"}), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusOK {
				assert.JSONEq(t, `{"id":7,"role":"admin"}`, w.Body.String())
			}
		})
	}
}

func TestRequireRole_AllowsAnyListedRole(t *testing.T) {
	r := protectedRouter(RoleAdmin, RoleStudent)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, testSecret, jwt.MapClaims{"sub": "42", "role": "student"}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "req-123", entries[1].ContextMap()["request_id"])
	assert.EqualValues(t, 500, entries[1].ContextMap()["status"])
}
