package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/cantor/pkg/observability"
)

// Runner executes background tasks with panic recovery, a per-task timeout
// and error logging, and tracks them so shutdown can drain in-flight work.
//
// Use this instead of bare `go func()` for work that outlives a request,
// such as delivering a password-reset email.
type Runner struct {
	logger  *observability.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a Runner. A zero timeout means 30 seconds.
func NewRunner(logger *observability.Logger, timeout time.Duration) *Runner {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{logger: logger, timeout: timeout}
}

// Go runs fn in a goroutine. The task keeps parent's values (request id,
// logger) but not its cancellation, so it survives the request that
// started it. Returns false without running fn once the runner is closed.
//
//	runner.Go(r.Context(), "reset email", func(ctx context.Context) error {
//	    return mailer.Send(ctx, msg)
//	})
func (r *Runner) Go(parent context.Context, taskName string, fn func(context.Context) error) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.WithField("task", taskName).Warn("background task rejected: runner closed")
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.timeout)
		defer cancel()

		logger := r.logger.WithField("task", taskName)
		if requestID := observability.GetRequestID(ctx); requestID != "" {
			logger = logger.WithField("request_id", requestID)
		}
		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).Error("background task failed")
		}
	}()
	return true
}

// Close stops accepting tasks and waits for in-flight ones until ctx is
// done.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
