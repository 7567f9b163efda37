package handler

import (
	"encoding/json"
	"net/http"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/middleware"
	"wallet-ledger/internal/models"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/money"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	withdrawals *service.WithdrawalService
	reporting   *service.ReportingService
	settingRepo *repository.SettingRepository
	auditRepo   *repository.AuditLogRepository
	logger      *zap.Logger
}

func NewAdminHandler(
	withdrawals *service.WithdrawalService,
	reporting *service.ReportingService,
	settingRepo *repository.SettingRepository,
	auditRepo *repository.AuditLogRepository,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		withdrawals: withdrawals,
		reporting:   reporting,
		settingRepo: settingRepo,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// Dashboard handles GET /admin/dashboard: platform-wide wallet totals.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.reporting.WalletStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Transactions handles GET /admin/transactions?owner_id&type&status&page&limit.
func (h *AdminHandler) Transactions(c *gin.Context) {
	owner, ok := optionalOwner(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)
	res, err := h.reporting.ListTransactions(c.Request.Context(), owner, page, limit,
		domain.TxType(c.Query("type")), domain.TxStatus(c.Query("status")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Withdrawals handles GET /admin/withdrawals?owner_id&status&page&limit.
func (h *AdminHandler) Withdrawals(c *gin.Context) {
	owner, ok := optionalOwner(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)
	res, err := h.reporting.ListWithdrawals(c.Request.Context(), owner, page, limit, domain.WithdrawalStatus(c.Query("status")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) MarkProcessing(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	w, err := h.withdrawals.MarkProcessing(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// ProcessWithdrawal handles POST /admin/withdrawals/:id/process.
func (h *AdminHandler) ProcessWithdrawal(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Decision domain.Decision `json:"decision" binding:"required"`
		Reason   string          `json:"reason" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.withdrawals.ProcessWithdrawal(c.Request.Context(), id, middleware.GetUserID(c), req.Decision, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Reconcile handles GET /admin/wallets/:owner_id/reconcile?currency.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	ownerID, ok := parseIDParam(c, "owner_id")
	if !ok {
		return
	}
	report, err := h.reporting.Reconcile(c.Request.Context(), ownerID, c.Query("currency"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	list, err := h.settingRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": list})
}

// settingValidators lists the editable keys and how their values are checked.
var settingValidators = map[string]func(string) bool{
	domain.SettingMinWithdrawal: func(v string) bool {
		d, err := money.Parse(v)
		return err == nil && !d.IsNegative()
	},
}

// UpdateSetting handles PUT /admin/settings.
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	valid, known := settingValidators[req.Key]
	if !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown setting"})
		return
	}
	if !valid(req.Value) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value for " + req.Key})
		return
	}
	ctx := c.Request.Context()
	if err := h.settingRepo.Set(ctx, req.Key, req.Value); err != nil {
		respondError(c, h.logger, err)
		return
	}
	adminID := middleware.GetUserID(c)
	meta, _ := json.Marshal(map[string]string{"value": req.Value})
	if err := h.auditRepo.Create(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     "setting.update",
		Resource:   "system_setting",
		ResourceID: req.Key,
		IP:         c.ClientIP(),
		Metadata:   string(meta),
	}); err != nil {
		h.logger.Warn("audit write failed", zap.String("key", req.Key), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "value": req.Value})
}
