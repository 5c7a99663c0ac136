package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/internal/service"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

// ChargeHandler exposes billing endpoints.
type ChargeHandler struct {
	charges *service.ChargeService
}

// NewChargeHandler constructs ChargeHandler.
func NewChargeHandler(charges *service.ChargeService) *ChargeHandler {
	return &ChargeHandler{charges: charges}
}

// List godoc
// @Summary List charges
// @Tags Charges
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param contractId query string false "Filter by contract"
// @Param kind query string false "Filter by kind"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "First reference month (YYYY-MM)"
// @Param to query string false "Last reference month (YYYY-MM)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /charges [get]
func (h *ChargeHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.ChargeFilter{
		StudentID:  c.Query("studentId"),
		ContractID: c.Query("contractId"),
		Kind:       models.ChargeKind(c.Query("kind")),
	}
	for _, status := range strings.Split(c.Query("status"), ",") {
		if status = strings.TrimSpace(status); status != "" {
			filter.Statuses = append(filter.Statuses, models.ChargeStatus(status))
		}
	}
	if raw := c.Query("from"); raw != "" {
		from, err := monthOrCurrent(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.MonthFrom = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := monthOrCurrent(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.MonthTo = &to
	}
	filter.Page, filter.PageSize = pageParams(c)

	charges, pagination, err := h.charges.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charges, pagination)
}

// Get godoc
// @Summary Get charge
// @Tags Charges
// @Produce json
// @Param id path string true "Charge ID"
// @Success 200 {object} response.Envelope
// @Router /charges/{id} [get]
func (h *ChargeHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	charge, err := h.charges.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charge, nil)
}

// Create godoc
// @Summary Create one-off charge
// @Tags Charges
// @Accept json
// @Produce json
// @Param payload body dto.CreateChargeRequest true "Charge payload"
// @Success 201 {object} response.Envelope
// @Router /charges [post]
func (h *ChargeHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateChargeRequest
	if !bindJSON(c, &req) {
		return
	}
	charge, err := h.charges.CreateCharge(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, charge)
}

// SellMaterial godoc
// @Summary Sell material in installments
// @Tags Charges
// @Accept json
// @Produce json
// @Param payload body dto.SellMaterialRequest true "Sale payload"
// @Success 201 {object} response.Envelope
// @Router /charges/material [post]
func (h *ChargeHandler) SellMaterial(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SellMaterialRequest
	if !bindJSON(c, &req) {
		return
	}
	today, _ := dateOrToday("")
	charges, err := h.charges.SellMaterial(c.Request.Context(), actor, req, today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, charges)
}

// Settle godoc
// @Summary Settle charge
// @Tags Charges
// @Accept json
// @Produce json
// @Param id path string true "Charge ID"
// @Param payload body dto.SettleChargeRequest false "Settlement date"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /charges/{id}/settle [post]
func (h *ChargeHandler) Settle(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SettleChargeRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	today, err := dateOrToday(req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	charge, err := h.charges.SettleCharge(c.Request.Context(), actor, c.Param("id"), today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charge, nil)
}

// BulkSettle godoc
// @Summary Settle several charges
// @Tags Charges
// @Accept json
// @Produce json
// @Param payload body dto.BulkSettleRequest true "Charges to settle"
// @Success 200 {object} response.Envelope
// @Router /charges/settle [post]
func (h *ChargeHandler) BulkSettle(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkSettleRequest
	if !bindJSON(c, &req) {
		return
	}
	today, err := dateOrToday(req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.charges.BulkSettle(c.Request.Context(), actor, req.ChargeIDs, today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ApplyPayment godoc
// @Summary Apply payment
// @Description Spreads an amount over the student's open charges, oldest first.
// @Tags Charges
// @Accept json
// @Produce json
// @Param payload body dto.ApplyPaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Router /payments [post]
func (h *ChargeHandler) ApplyPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ApplyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	today, err := dateOrToday(req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.charges.ApplyPayment(c.Request.Context(), actor, req.StudentID, req.Amount, today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
