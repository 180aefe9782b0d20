// Package async runs fire-and-forget background tasks safely.
//
// A Runner recovers panics, bounds each task with a timeout, logs failures
// tagged with the request id and lets shutdown wait for in-flight work:
//
//	runner := async.NewRunner(logger, 30*time.Second)
//	runner.Go(ctx, "reset email", func(ctx context.Context) error {
//		return mailer.Send(ctx, msg)
//	})
//	...
//	_ = runner.Close(shutdownCtx)
package async
