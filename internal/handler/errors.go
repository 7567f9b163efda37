package handler

import (
	"errors"
	"net/http"
	"strconv"

	"wallet-ledger/internal/middleware"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const unavailableMessage = "temporarily unavailable, try again later"

// errorStatus maps ledger errors onto HTTP statuses. Anything that is not a
// business rule violation is reported generically.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrWithdrawalNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, service.ErrNotAdmin):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrNotPending), errors.Is(err, service.ErrDuplicateReference):
		return http.StatusConflict, err.Error()
	case service.IsBusinessError(err):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, unavailableMessage
	}
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Bool("retryable", service.IsRetryable(err)),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(repository.DefaultPageSize)))
	return repository.NormalizePage(page, limit)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// optionalOwner reads ?owner_id=; a missing value means every owner.
func optionalOwner(c *gin.Context) (*uint, bool) {
	raw := c.Query("owner_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner_id"})
		return nil, false
	}
	owner := uint(id)
	return &owner, true
}
