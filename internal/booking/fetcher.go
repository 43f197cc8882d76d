package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"medreserve/internal/metrics"
	"medreserve/internal/script"
)

// ErrRetriesExhausted marks a fetch that failed on every allowed attempt.
var ErrRetriesExhausted = errors.New("bookings fetch retries exhausted")

// ListClient is the slice of the script client the fetcher needs.
type ListClient interface {
	GetBookings(ctx context.Context) (*script.Result, error)
}

// Fetcher obtains the full visit-record list with bounded retry. MaxRetries
// bounds total attempts; the backoff between attempts grows linearly
// (BaseDelay × attempt number) and the wait is cancellable through the
// caller's context, so an abandoned request stops retrying immediately.
type Fetcher struct {
	Client     ListClient
	MaxRetries int
	BaseDelay  time.Duration
	Timeout    time.Duration
}

// NewFetcher applies the historical defaults: 3 attempts, 2s base delay,
// 10s per-attempt timeout.
func NewFetcher(client ListClient) *Fetcher {
	return &Fetcher{
		Client:     client,
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		Timeout:    10 * time.Second,
	}
}

// Fetch returns the normalized record list, or the last error once every
// attempt is spent. A cancelled parent context aborts between attempts.
func (f *Fetcher) Fetch(ctx context.Context) ([]VisitRecord, error) {
	maxAttempts := f.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if f.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		}
		res, err := f.Client.GetBookings(attemptCtx)
		if cancel != nil {
			cancel()
		}

		switch {
		case err == nil && res.Success:
			return NormalizeAll(res.Bookings), nil
		case err == nil:
			lastErr = fmt.Errorf("upstream failure: %s", res.Message)
		default:
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < maxAttempts {
			metrics.FetchRetriesTotal.Inc()
			delay := f.BaseDelay * time.Duration(attempt)
			logger.Debug.Printf("bookings fetch attempt %d/%d failed (%v), retrying in %s", attempt, maxAttempts, lastErr, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	logger.Error.Printf("bookings fetch gave up after %d attempts: %v", maxAttempts, lastErr)
	return nil, fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

// UserMessage renders a fetch error as the Thai inline message the views
// show. Timeouts, exhausted retries, and generic network failures each get
// their own wording.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRetriesExhausted):
		return "ไม่สามารถเชื่อมต่อได้หลังจากลองหลายครั้ง กรุณารีเฟรชหน้าเว็บ"
	case errors.Is(err, context.DeadlineExceeded):
		return "การเชื่อมต่อใช้เวลานานเกินไป กรุณาลองใหม่อีกครั้ง"
	default:
		return "ไม่สามารถเชื่อมต่อกับเซิร์ฟเวอร์ได้"
	}
}
