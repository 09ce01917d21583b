package sender

import (
	"context"
	"fmt"
	"time"
)

// ErrTimeout reports that a transport call did not finish within its bound.
var ErrTimeout error = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "telegram sender: timeout" }
func (timeoutError) Timeout() bool { return true }

// Bounded runs a blocking call and stops waiting for it once timeout elapses or
// ctx is cancelled. The call keeps running in the background and its result is
// discarded. A non-positive timeout waits for ctx only.
func Bounded(ctx context.Context, timeout time.Duration, run func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("telegram sender: panic: %v", r)
			}
		}()
		done <- run()
	}()

	select {
	case err := <-done:
		return err
	case <-timer:
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
