package services

import (
	"context"
	"errors"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"
)

// adapterCtx bounds an external store call so a slow adapter fails the one
// operation instead of hanging the connection.
func adapterCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// mapAdapterErr turns a deadline expiry into the transient taxonomy error.
func mapAdapterErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrAdapterTimeout
	}
	return err
}
