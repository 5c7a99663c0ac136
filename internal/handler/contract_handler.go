package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/escola-backoffice/internal/dto"
	"github.com/noah-isme/escola-backoffice/internal/models"
	"github.com/noah-isme/escola-backoffice/internal/service"
	appErrors "github.com/noah-isme/escola-backoffice/pkg/errors"
	"github.com/noah-isme/escola-backoffice/pkg/response"
)

// ContractHandler exposes contract lifecycle endpoints.
type ContractHandler struct {
	contracts      *service.ContractService
	expiringWindow int
}

// NewContractHandler constructs ContractHandler. expiringWindow is the default look-ahead in days.
func NewContractHandler(contracts *service.ContractService, expiringWindow int) *ContractHandler {
	return &ContractHandler{contracts: contracts, expiringWindow: expiringWindow}
}

// List godoc
// @Summary List contracts
// @Tags Contracts
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status (active, locked, cancelled)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contracts [get]
func (h *ContractHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.ContractFilter{
		StudentID: c.Query("studentId"),
		Status:    models.ContractStatus(c.Query("status")),
	}
	filter.Page, filter.PageSize = pageParams(c)

	contracts, pagination, err := h.contracts.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contracts, pagination)
}

// Get godoc
// @Summary Get contract
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id} [get]
func (h *ContractHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	contract, err := h.contracts.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// Create godoc
// @Summary Create contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param payload body dto.ContractRequest true "Contract payload"
// @Success 201 {object} response.Envelope
// @Router /contracts [post]
func (h *ContractHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ContractRequest
	if !bindJSON(c, &req) {
		return
	}
	contract, err := h.contracts.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contract)
}

// Update godoc
// @Summary Update contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param payload body dto.ContractRequest true "Contract payload"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id} [put]
func (h *ContractHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ContractRequest
	if !bindJSON(c, &req) {
		return
	}
	contract, err := h.contracts.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// Lock godoc
// @Summary Lock contract
// @Description Suspends the contract and locks the student's open enrollments.
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/lock [post]
func (h *ContractHandler) Lock(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	contract, err := h.contracts.Lock(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// Unlock godoc
// @Summary Unlock contract
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/unlock [post]
func (h *ContractHandler) Unlock(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	contract, err := h.contracts.Unlock(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// Cancel godoc
// @Summary Cancel contract
// @Description Cancels the contract, drops future pending charges and books the cancellation penalty.
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Param date query string false "Cancellation date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contracts/{id}/cancel [post]
func (h *ContractHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	today, err := dateOrToday(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	id := c.Param("id")
	penalty, err := h.contracts.Cancel(c.Request.Context(), actor, id, today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CancelContractResponse{ContractID: id, Penalty: penalty, CancelledAt: today}, nil)
}

// Expiring godoc
// @Summary Contracts ending soon
// @Tags Contracts
// @Produce json
// @Param days query int false "Look-ahead window in days"
// @Success 200 {object} response.Envelope
// @Router /contracts/expiring [get]
func (h *ContractHandler) Expiring(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	days := h.expiringWindow
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days must be a positive number"))
			return
		}
		days = parsed
	}
	today, _ := dateOrToday("")
	contracts, err := h.contracts.ListExpiring(c.Request.Context(), actor, today, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contracts, nil)
}
