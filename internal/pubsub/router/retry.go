package router

import (
	"net"

	"github.com/cockroachdb/errors"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/logger"
)

func shouldRetry(logger *logger.Logger, err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("retrying due to network timeout", "error", netErr)
		return true
	}

	if !ierr.IsRetryable(err) {
		logger.Debugw("non-retryable error", "error", err, "code", ierr.Code(err))
		return false
	}

	// By default, retry unknown errors
	return true
}
