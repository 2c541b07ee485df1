package logging

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Audit results.
const (
	AuditSuccess = "success"
	AuditFailure = "failure"
)

// LogAuditEvent logs a structured audit event for security and compliance.
//
// Args:
//   - action: what happened (e.g., "register", "rename", "change_status")
//   - userID: the account the action concerns or was performed by
//   - resourceType: the type of resource (e.g., "profile")
//   - resourceID: the ID of the resource
//   - result: AuditSuccess or AuditFailure
//   - details: optional additional details
func LogAuditEvent(
	ctx context.Context,
	action, userID, resourceType, resourceID, result string,
	details map[string]any,
) {
	LoggerFromContext(ctx).Info("Audit event",
		zap.String("audit.action", action),
		zap.String("audit.user_id", userID),
		zap.String("audit.resource_type", resourceType),
		zap.String("audit.resource_id", resourceID),
		zap.String("audit.result", result),
		zap.Any("audit.details", details),
	)
}

// categorizeError returns a category safe to put in audit logs. Raw error text
// may carry store internals and is never written to the audit trail.
func categorizeError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// AuditObserver writes identity events to the audit log. Events carry
// "user_id" and "profile_id" attributes when they concern a profile.
type AuditObserver struct {
	ResourceType string
}

// NewAuditObserver returns an observer auditing profile resources.
func NewAuditObserver() *AuditObserver {
	return &AuditObserver{ResourceType: "profile"}
}

// RecordEvent logs a successful audit event named name.
func (o *AuditObserver) RecordEvent(ctx context.Context, name string, attrs map[string]string) {
	LogAuditEvent(ctx, name, attrs["user_id"], o.ResourceType, attrs["profile_id"], AuditSuccess, detailsOf(attrs))
}

// RecordError logs a failed audit event carrying only the error category.
func (o *AuditObserver) RecordError(ctx context.Context, name string, err error) {
	LogAuditEvent(ctx, name, "", o.ResourceType, "", AuditFailure, map[string]any{
		"error_category": categorizeError(err),
	})
}

func detailsOf(attrs map[string]string) map[string]any {
	var details map[string]any
	for k, v := range attrs {
		if k == "user_id" || k == "profile_id" {
			continue
		}
		if details == nil {
			details = make(map[string]any, len(attrs))
		}
		details[k] = v
	}
	return details
}
