// Package audit records security-relevant actions as JSON lines on the
// shared logger.
package audit

import (
	"context"
	"errors"
	"strings"

	"claimdesk.org/internal/auth"
	"claimdesk.org/internal/obs"
)

// Event names emitted by the HTTP layer.
const (
	LoginSucceeded    = "auth.login"
	LoginFailed       = "auth.login_failed"
	AccountRegistered = "account.registered"
	AccountUpdated    = "account.updated"
	AccountDeleted    = "account.deleted"
	ClaimSubmitted    = "claim.submitted"
	ClaimTransitioned = "claim.transitioned"
)

type requestIDKey struct{}

// WithRequestID attaches the request id picked up by LogEvent.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// LogEvent writes one audit line. The acting identity, if any, is taken from
// ctx; fields are copied under "fields".
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("audit: event name is required")
	}

	detail := make(map[string]any, len(fields))
	for k, v := range fields {
		detail[k] = v
	}
	entry := map[string]any{
		"type":   "audit",
		"event":  event,
		"fields": detail,
	}
	if ctx != nil {
		if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
			entry["request_id"] = rid
		}
		if id, ok := auth.IdentityFromContext(ctx); ok {
			entry["user_id"] = id.ID
			entry["user_name"] = id.Name
			entry["role"] = string(id.Role)
		}
	}
	obs.Info("audit", entry)
	return nil
}
