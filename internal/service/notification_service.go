package service

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"
	"wallet-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// NotificationService writes in-app notifications. Ledger operations build it
// over a transaction-bound repository so the row commits with the balance change.
type NotificationService struct {
	repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) Notify(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) error {
	var payload datatypes.JSON
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = b
	}
	return s.repo.Create(ctx, &models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   payload,
	})
}

func (s *NotificationService) NotifyEarningsCredited(ctx context.Context, userID uint, amount decimal.Decimal, currency string, ref *models.Reference) error {
	data := map[string]interface{}{"amount": amount.StringFixed(2), "currency": currency}
	if ref != nil {
		data["ref_type"] = ref.Kind
		data["ref_id"] = ref.ID
	}
	return s.Notify(ctx, userID, domain.NotificationEarningsCredited, "Earnings received",
		fmt.Sprintf("%s %s was added to your wallet.", amount.StringFixed(2), currency), data)
}

func (s *NotificationService) NotifyWithdrawalCompleted(ctx context.Context, w *models.Withdrawal) error {
	return s.Notify(ctx, w.OwnerID, domain.NotificationWithdrawalCompleted, "Withdrawal completed",
		fmt.Sprintf("Your withdrawal of %s %s has been paid out.", w.Amount.StringFixed(2), w.Currency),
		map[string]interface{}{"withdrawal_id": w.ID, "reference": w.Reference})
}

func (s *NotificationService) NotifyWithdrawalRejected(ctx context.Context, w *models.Withdrawal, reason string) error {
	return s.Notify(ctx, w.OwnerID, domain.NotificationWithdrawalRejected, "Withdrawal rejected",
		fmt.Sprintf("Your withdrawal of %s %s was rejected: %s. The funds are back in your wallet.", w.Amount.StringFixed(2), w.Currency, reason),
		map[string]interface{}{"withdrawal_id": w.ID, "reference": w.Reference, "reason": reason})
}

func (s *NotificationService) List(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error) {
	return s.repo.ListByUserID(ctx, userID, page, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	return s.repo.MarkRead(ctx, id, userID)
}
