package notify

import (
	"context"
	"time"
)

const (
	maxSendRetries = 3
	retryInterval  = 2 * time.Second
)

// withRetry runs f up to maxSendRetries times, pausing retryInterval
// between attempts, stopping early if ctx is done. It returns the last
// error seen if every attempt failed.
func withRetry(ctx context.Context, f func() error) error {
	var err error
	for attempt := 0; attempt < maxSendRetries; attempt++ {
		if err = f(); err == nil {
			return nil
		}
		if attempt == maxSendRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return err
}
