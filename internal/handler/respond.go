package handler

import (
	"errors"
	"net/http"
	"strconv"

	"academy/internal/apperror"
	"academy/internal/middleware"
	"academy/internal/service"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto its HTTP status. Store failures are
// attached to the context for the request log and reported without detail.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, response.Invalid("Validation failed", apperror.Fields(err)))
	case errors.Is(err, apperror.ErrDuplicateReference),
		errors.Is(err, apperror.ErrAlreadyFinalized),
		errors.Is(err, apperror.ErrConflict):
		c.JSON(http.StatusConflict, response.Error(err.Error()))
	case errors.Is(err, apperror.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(err.Error()))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, response.Error("Internal server error"))
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error("Invalid request payload: "+err.Error()))
}

// actorFrom converts the identity set by RequireRole into a service actor.
func actorFrom(c *gin.Context) service.Actor {
	caller, _ := middleware.CallerFrom(c)
	return service.Actor{ID: caller.ID, Role: caller.Role}
}

// idParam reads a positive numeric path parameter, writing 400 when it is malformed.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, response.Error("Invalid "+name))
		return 0, false
	}
	return uint(id), true
}
