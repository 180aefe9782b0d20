// Package maintenance runs the background janitor that deletes expired
// sessions and stale password-reset tokens on a cron schedule.
//
//	j, err := maintenance.New(maintenance.Config{Schedule: "*/10 * * * *"}, []maintenance.Target{
//		{Table: "sessions", Purger: svc.Sessions},
//		{Table: "password_reset_tokens", Purger: svc.ResetTokens},
//	}, maintenance.WithMetrics(metrics))
//	if err := j.Start(ctx); err != nil { ... }
//	defer j.Stop(shutdownCtx)
//
// Expired rows never authenticate, so the janitor only bounds table growth.
package maintenance
