package handler

import (
	"net/http"
	"time"

	"academy/internal/middleware"
	"academy/internal/service"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type FinancialHandler struct {
	financialService service.FinancialService
	auth             *middleware.Authenticator
	now              func() time.Time
}

func NewFinancialHandler(financialService service.FinancialService, auth *middleware.Authenticator) *FinancialHandler {
	return &FinancialHandler{financialService: financialService, auth: auth, now: time.Now}
}

func (h *FinancialHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/api/admin")
	admin.Use(h.auth.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/financial-status", h.OpenAccount)
		admin.POST("/financial-status/:id/penalty", h.ApplyPenalty)
		admin.GET("/students/:id/financial-status", h.StudentStatus)
	}

	me := router.Group("/api/me")
	me.Use(h.auth.RequireRole(middleware.RoleStudent))
	{
		me.GET("/financial-status", h.MyStatus)
	}
}

// OpenAccount creates the financial account of a student for a class or program
// @Summary      Open financial account
// @Tags         financial-status
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.OpenAccountRequest  true  "Account"
// @Success      201      {object}  response.Response{data=service.FinancialStatusResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/admin/financial-status [post]
func (h *FinancialHandler) OpenAccount(c *gin.Context) {
	var req service.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	account, err := h.financialService.OpenAccount(c.Request.Context(), req, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success("Financial account opened", account))
}

// ApplyPenalty charges the late fee for the account's current overdue period
// @Summary      Apply overdue penalty
// @Description  Each overdue period is charged once; repeating the call reports fee_applied=false
// @Tags         financial-status
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      int     true   "Financial status id"
// @Param        as_of  query     string  false  "Evaluation date YYYY-MM-DD (default today)"
// @Success      200    {object}  response.Response{data=service.PenaltyResult}
// @Failure      404    {object}  response.Response
// @Router       /api/admin/financial-status/{id}/penalty [post]
func (h *FinancialHandler) ApplyPenalty(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	asOf := h.now()
	if raw := c.Query("as_of"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error("as_of must be a date (YYYY-MM-DD)"))
			return
		}
		asOf = t
	}

	result, err := h.financialService.ApplyOverduePenalty(c.Request.Context(), id, asOf, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Penalty evaluated", result))
}

// @Summary      Student financial status
// @Tags         financial-status
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Student id"
// @Success      200  {object}  response.Response{data=[]service.FinancialStatusResponse}
// @Router       /api/admin/students/{id}/financial-status [get]
func (h *FinancialHandler) StudentStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	h.listFor(c, id)
}

// @Summary      My financial status
// @Tags         financial-status
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.FinancialStatusResponse}
// @Router       /api/me/financial-status [get]
func (h *FinancialHandler) MyStatus(c *gin.Context) {
	h.listFor(c, actorFrom(c).ID)
}

func (h *FinancialHandler) listFor(c *gin.Context, studentID uint) {
	accounts, err := h.financialService.ListForStudent(c.Request.Context(), studentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Financial status", accounts))
}
