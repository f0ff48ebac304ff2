package handler

import (
	"net/http"

	"academy/internal/middleware"
	"academy/internal/service"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

type TaxHandler struct {
	taxService service.TaxService
	auth       *middleware.Authenticator
}

func NewTaxHandler(taxService service.TaxService, auth *middleware.Authenticator) *TaxHandler {
	return &TaxHandler{taxService: taxService, auth: auth}
}

func (h *TaxHandler) RegisterRoutes(router *gin.RouterGroup) {
	tax := router.Group("/api/tax")
	tax.Use(h.auth.RequireRole(middleware.RoleAdmin, middleware.RoleInstructor, middleware.RoleStudent))
	{
		tax.GET("/quote", h.Quote)
	}
}

// Quote computes the tax owed on an amount under the saved configuration
// @Summary      Quote tax
// @Description  Applies exemptions, then the item or state rate, then the base rate
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Param        amount        query     string  true   "Amount"
// @Param        program_id    query     int     false  "Program id, checked against exempt programs"
// @Param        student_type  query     string  false  "regular, scholarship, sponsored or staff"
// @Param        item          query     string  false  "Configured tax item name"
// @Param        state_code    query     string  false  "Configured state code"
// @Success      200           {object}  response.Response{data=service.QuoteResponse}
// @Failure      422           {object}  response.Response
// @Router       /api/tax/quote [get]
func (h *TaxHandler) Quote(c *gin.Context) {
	var req service.QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}

	quote, err := h.taxService.Quote(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Tax quote", quote))
}
