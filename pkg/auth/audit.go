package auth

import (
	"context"

	"github.com/platinummonkey/cantor/pkg/observability"
)

// Audit actions
const (
	ActionLogin          = "auth.login"
	ActionLogout         = "auth.logout"
	ActionResetRequested = "auth.reset_requested"
	ActionResetCompleted = "auth.reset_completed"
	ActionAccountCreate  = "account.create"
	ActionAccountUpdate  = "account.update"
	ActionAccountDelete  = "account.deactivate"
	ActionAccountSeed    = "account.seed"
	ActionSessionsPurged = "sessions.purged"
)

// Audit statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// AuditEvent is one security-relevant occurrence
type AuditEvent struct {
	Action    string
	ActorID   string
	AccountID string
	Email     string
	Status    string
	IPAddress string
	Err       error
}

// AuditLogger writes security events as structured log lines.
// A nil *AuditLogger discards events.
type AuditLogger struct {
	logger *observability.Logger
}

// NewAuditLogger creates an audit logger on top of logger
func NewAuditLogger(logger *observability.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.WithField("component", "audit")}
}

// Record logs event. Failures are logged at warn level, everything else at
// info. Request and user ids carried in ctx are attached.
func (al *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if al == nil || al.logger == nil {
		return
	}

	fields := map[string]interface{}{
		"action": event.Action,
		"status": event.Status,
	}
	if event.ActorID != "" {
		fields["actor_id"] = event.ActorID
	}
	if event.AccountID != "" {
		fields["account_id"] = event.AccountID
	}
	if event.Email != "" {
		fields["email"] = event.Email
	}
	if event.IPAddress != "" {
		fields["ip"] = event.IPAddress
	}
	if id := observability.GetRequestID(ctx); id != "" {
		fields["request_id"] = id
	}

	l := al.logger.WithFields(fields).WithError(event.Err)
	if event.Status == StatusSuccess {
		l.Info("audit")
		return
	}
	l.Warn("audit")
}
