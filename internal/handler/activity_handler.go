package handler

import (
	"net/http"

	"academy/internal/middleware"
	"academy/internal/repository"
	"academy/internal/service"
	"academy/pkg/pagination"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	activityService service.ActivityService
	auth            *middleware.Authenticator
}

func NewActivityHandler(activityService service.ActivityService, auth *middleware.Authenticator) *ActivityHandler {
	return &ActivityHandler{activityService: activityService, auth: auth}
}

func (h *ActivityHandler) RegisterRoutes(router *gin.RouterGroup) {
	logs := router.Group("/api/admin/activity-logs")
	logs.Use(h.auth.RequireRole(middleware.RoleAdmin))
	{
		logs.GET("", h.ListActivity)
	}
}

// ListActivity returns the activity trail, newest first
// @Summary      List activity logs
// @Tags         activity
// @Security     BearerAuth
// @Produce      json
// @Param        action       query     string  false  "Filter by action"
// @Param        entity_type  query     string  false  "Filter by entity type"
// @Param        entity_id    query     string  false  "Filter by entity id"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=response.Paged}
// @Router       /api/admin/activity-logs [get]
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	p := pagination.Parse(c)
	logs, total, err := h.activityService.List(c.Request.Context(), repository.ActivityFilter{
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Activity logs", response.Paged{
		Items: logs,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
	}))
}
