package handler

import (
	"net/http"
	"strconv"

	"academy/internal/billing"
	"academy/internal/middleware"
	"academy/internal/service"
	"academy/pkg/pagination"
	"academy/pkg/response"

	"github.com/gin-gonic/gin"
)

// RecordResponse is the reply to a recorded payment. The reference is echoed at
// the top level so the payment form can show it without unwrapping data.
type RecordResponse struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	Reference string                 `json:"reference,omitempty"`
	Data      *service.ClaimResponse `json:"data,omitempty"`
}

type RejectRequest struct {
	Reason string `form:"reason" json:"reason"`
}

type PaymentHandler struct {
	paymentService service.PaymentService
	auth           *middleware.Authenticator
}

func NewPaymentHandler(paymentService service.PaymentService, auth *middleware.Authenticator) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, auth: auth}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/api/payments")
	payments.Use(h.auth.RequireRole(middleware.RoleStudent, middleware.RoleAdmin))
	{
		payments.GET("/reference", h.NewReference)
		payments.POST("/record", h.RecordPayment)
	}

	admin := router.Group("/api/admin/payments")
	admin.Use(h.auth.RequireRole(middleware.RoleAdmin))
	{
		admin.GET("", h.ListClaims)
		admin.GET("/:id", h.GetClaim)
		admin.PUT("/:id/verify", h.VerifyClaim)
		admin.PUT("/:id/reject", h.RejectClaim)
	}
}

// NewReference mints a reference to quote on the bank transfer
// @Summary      Generate payment reference
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        kind        query     string  true   "registration or course"
// @Param        student_id  query     int     false  "Student id (admins only)"
// @Success      200         {object}  response.Response{data=map[string]string}
// @Failure      422         {object}  response.Response
// @Router       /api/payments/reference [get]
func (h *PaymentHandler) NewReference(c *gin.Context) {
	kind, err := billing.ParsePaymentKind(c.Query("kind"))
	if err != nil {
		respondError(c, err)
		return
	}

	actor := actorFrom(c)
	studentID := actor.ID
	if actor.IsAdmin() {
		id, err := strconv.ParseUint(c.Query("student_id"), 10, 64)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, response.Error("student_id is required"))
			return
		}
		studentID = uint(id)
	}

	ref := h.paymentService.NewReference(kind, studentID)
	c.JSON(http.StatusOK, response.Success("Payment reference generated", gin.H{"reference": ref}))
}

// RecordPayment records a pending payment claim
// @Summary      Record payment
// @Description  Accepts a form post or JSON. Students record for themselves; admins may record for any student
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        payload  body      service.CreateClaimRequest  true  "Payment claim"
// @Success      201      {object}  RecordResponse
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/payments/record [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req service.CreateClaimRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor := actorFrom(c)
	if req.StudentID == 0 && actor.Role == middleware.RoleStudent {
		req.StudentID = actor.ID
	}

	claim, err := h.paymentService.CreateClaim(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RecordResponse{
		Success:   true,
		Message:   "Payment recorded and awaiting verification",
		Reference: claim.Reference,
		Data:      &claim,
	})
}

// ListClaims returns a paginated list of payment claims
// @Summary      List payment claims
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        status        query     string  false  "pending, verified or rejected"
// @Param        payment_type  query     string  false  "registration or course"
// @Param        student_id    query     int     false  "Student id"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Number of items per page (default 20)"
// @Success      200           {object}  response.Response{data=response.Paged}
// @Router       /api/admin/payments [get]
func (h *PaymentHandler) ListClaims(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.ClaimFilter{
		Status: c.Query("status"),
		Kind:   c.Query("payment_type"),
		Page:   p.Page,
		Limit:  p.Limit,
	}
	if raw := c.Query("student_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error("Invalid student_id"))
			return
		}
		filter.StudentID = uint(id)
	}

	claims, total, err := h.paymentService.ListClaims(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Payment claims", response.Paged{
		Items: claims,
		Total: total,
		Page:  p.Page,
		Limit: p.Limit,
	}))
}

// @Summary      Get payment claim
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Claim id"
// @Success      200  {object}  response.Response{data=service.ClaimResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/admin/payments/{id} [get]
func (h *PaymentHandler) GetClaim(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	claim, err := h.paymentService.GetClaim(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Payment claim", claim))
}

// VerifyClaim settles a pending claim and credits the student's account
// @Summary      Verify payment
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Claim id"
// @Success      200  {object}  response.Response{data=service.ClaimResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/admin/payments/{id}/verify [put]
func (h *PaymentHandler) VerifyClaim(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	claim, err := h.paymentService.VerifyClaim(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Payment verified", claim))
}

// RejectClaim closes a pending claim with a reason
// @Summary      Reject payment
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int            true  "Claim id"
// @Param        payload  body      RejectRequest  true  "Rejection reason"
// @Success      200      {object}  response.Response{data=service.ClaimResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/admin/payments/{id}/reject [put]
func (h *PaymentHandler) RejectClaim(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	claim, err := h.paymentService.RejectClaim(c.Request.Context(), id, req.Reason, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Payment rejected", claim))
}
