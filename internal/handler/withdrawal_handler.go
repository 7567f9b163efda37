package handler

import (
	"net/http"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/middleware"
	"wallet-ledger/internal/models"
	"wallet-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
	reporting   *service.ReportingService
	logger      *zap.Logger
}

func NewWithdrawalHandler(withdrawals *service.WithdrawalService, reporting *service.ReportingService, logger *zap.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, reporting: reporting, logger: logger}
}

type createWithdrawalRequest struct {
	Amount        decimal.Decimal         `json:"amount"`
	Currency      string                  `json:"currency"`
	Method        domain.WithdrawalMethod `json:"method" binding:"required"`
	PayoutDetails models.PayoutDetails    `json:"payout_details"`
	Notes         string                  `json:"notes" binding:"max=1000"`
}

// Create handles POST /me/withdrawals. The amount leaves the available
// balance immediately.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var req createWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), service.WithdrawalRequest{
		OwnerID:       middleware.GetUserID(c),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Method:        req.Method,
		PayoutDetails: req.PayoutDetails,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// List handles GET /me/withdrawals?page&limit&status.
func (h *WithdrawalHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	res, err := h.reporting.ListWithdrawals(c.Request.Context(), &userID, page, limit, domain.WithdrawalStatus(c.Query("status")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	w, err := h.withdrawals.GetWithdrawal(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Cancel handles POST /me/withdrawals/:id/cancel.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	w, err := h.withdrawals.CancelWithdrawal(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}
