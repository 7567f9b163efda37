package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"wallet-ledger/internal/service"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrInsufficientFunds, http.StatusBadRequest},
		{service.ErrInsufficientPending, http.StatusBadRequest},
		{fmt.Errorf("%w: %q", service.ErrInvalidCurrency, "DOLLARS"), http.StatusBadRequest},
		{fmt.Errorf("%w of 5.00", service.ErrBelowMinimum), http.StatusBadRequest},
		{service.ErrNotOwner, http.StatusForbidden},
		{service.ErrNotAdmin, http.StatusForbidden},
		{service.ErrWithdrawalNotFound, http.StatusNotFound},
		{service.ErrNotPending, http.StatusConflict},
		{service.ErrDuplicateReference, http.StatusConflict},
		{service.ErrPlatformNotConfigured, http.StatusInternalServerError},
		{&service.StorageError{Op: "split payment", Err: errors.New("deadlock")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, msg := errorStatus(tc.err)
		if got != tc.want {
			t.Fatalf("%v: want %d got %d", tc.err, tc.want, got)
		}
		if got == http.StatusInternalServerError && msg != unavailableMessage {
			t.Fatalf("%v: internal detail leaked: %q", tc.err, msg)
		}
	}
}
