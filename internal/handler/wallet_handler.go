package handler

import (
	"net/http"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/middleware"
	"wallet-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WalletHandler struct {
	ledger    *service.LedgerService
	reporting *service.ReportingService
	logger    *zap.Logger
}

func NewWalletHandler(ledger *service.LedgerService, reporting *service.ReportingService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{ledger: ledger, reporting: reporting, logger: logger}
}

// GetWallet handles GET /me/wallet, creating an empty wallet on first access.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	w, err := h.ledger.GetOrCreateWallet(c.Request.Context(), middleware.GetUserID(c), c.Query("currency"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Transactions handles GET /me/wallet/transactions?page&limit&type&status.
func (h *WalletHandler) Transactions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	res, err := h.reporting.ListTransactions(c.Request.Context(), &userID, page, limit,
		domain.TxType(c.Query("type")), domain.TxStatus(c.Query("status")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
