package service

import (
	"errors"
	"fmt"
)

// Business rule violations. None of these leave state behind, and retrying
// the same call will fail the same way.
var (
	ErrInvalidAmount       = errors.New("amount must be a positive value with at most two decimals")
	ErrInvalidOwner        = errors.New("owner id required")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidReference    = errors.New("invalid transaction reference")
	ErrInvalidCurrency     = errors.New("unsupported currency")
	ErrSignMismatch        = errors.New("amount sign does not match transaction type")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientPending = fmt.Errorf("%w: pending balance too low", ErrInsufficientFunds)
	ErrDuplicateReference  = errors.New("reference already recorded")

	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrNotPending         = errors.New("withdrawal is no longer pending")
	ErrNotOwner           = errors.New("withdrawal belongs to another user")
	ErrNotAdmin           = errors.New("admin role required")
	ErrInvalidPayout      = errors.New("invalid payout details")
	ErrInvalidDecision    = errors.New("decision must be approve or reject")
	ErrReasonRequired     = errors.New("rejection reason required")
	ErrBelowMinimum       = errors.New("amount below minimum withdrawal")
)

// ErrPlatformNotConfigured means the revenue-collector account is missing.
// It is a deployment defect, not a user error.
var ErrPlatformNotConfigured = errors.New("platform revenue account not configured")

var businessErrors = []error{
	ErrInvalidAmount, ErrInvalidOwner, ErrInvalidType, ErrInvalidReference, ErrInvalidCurrency,
	ErrSignMismatch, ErrInsufficientFunds, ErrDuplicateReference,
	ErrWithdrawalNotFound, ErrNotPending, ErrNotOwner, ErrNotAdmin,
	ErrInvalidPayout, ErrInvalidDecision, ErrReasonRequired, ErrBelowMinimum,
}

// StorageError wraps a failed read or an aborted atomic write. Nothing was
// persisted, so the whole operation may be retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// IsBusinessError reports whether err is a rule violation the caller should
// surface rather than retry.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether err came from the storage layer.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// storageErr wraps err as a StorageError unless it is already a typed ledger error.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsBusinessError(err) || errors.Is(err, ErrPlatformNotConfigured) || IsRetryable(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
