package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"
	"wallet-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Webhook-Signature"
	maxWebhookBody  = 64 << 10
)

type PaymentWebhookHandler struct {
	ledger *service.LedgerService
	secret string
	logger *zap.Logger
}

func NewPaymentWebhookHandler(ledger *service.LedgerService, secret string, logger *zap.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{ledger: ledger, secret: secret, logger: logger}
}

// capturePayload is the confirmed-capture fact sent by the payment collaborator.
type capturePayload struct {
	Amount        decimal.Decimal        `json:"amount"`
	Currency      string                 `json:"currency"`
	SellerID      uint                   `json:"seller_id"`
	PayerID       uint                   `json:"payer_id"`
	Type          domain.TxType          `json:"type"`
	Description   string                 `json:"description"`
	ReferenceType domain.RefKind         `json:"reference_type"`
	ReferenceID   string                 `json:"reference_id"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// Captured handles POST /webhooks/payments/captured. The body must carry a hex
// HMAC-SHA256 signature; the charge itself is not re-verified.
func (h *PaymentWebhookHandler) Captured(c *gin.Context) {
	if h.secret == "" {
		h.logger.Error("payment webhook secret not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": unavailableMessage})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !h.verifySignature(body, c.GetHeader(signatureHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var p capturePayload
	if err := json.Unmarshal(body, &p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if p.ReferenceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference_id required"})
		return
	}
	meta := p.Metadata
	if p.PayerID != 0 {
		if meta == nil {
			meta = map[string]interface{}{}
		}
		meta["payer_id"] = p.PayerID
	}

	res, err := h.ledger.SplitPayment(c.Request.Context(), service.SplitRequest{
		Amount:      p.Amount,
		Currency:    p.Currency,
		SellerID:    p.SellerID,
		Type:        p.Type,
		Description: p.Description,
		Reference:   &models.Reference{Kind: p.ReferenceType, ID: p.ReferenceID},
		Metadata:    meta,
	})
	if errors.Is(err, service.ErrDuplicateReference) {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"received":      true,
		"seller_amount": res.SellerAmount.StringFixed(2),
		"platform_fee":  res.PlatformFee.StringFixed(2),
	})
}

func (h *PaymentWebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
