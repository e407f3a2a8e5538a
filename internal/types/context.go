package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxTenantID      ContextKey = "ctx_tenant_id"
	CtxUserID        ContextKey = "ctx_user_id" // requester of the run
	CtxCorrelationID ContextKey = "ctx_correlation_id"
	CtxDryRun        ContextKey = "ctx_dry_run"

	// Default values
	DefaultUserID = "system"
)

// GetUserID returns the requester of the current run
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(CtxTenantID).(string); ok {
		return tenantID
	}
	return ""
}

// GetCorrelationID returns the correlation id of the current run, if any
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(CtxCorrelationID).(string); ok {
		return correlationID
	}
	return ""
}

// IsDryRun reports whether the context carries the simulation flag
func IsDryRun(ctx context.Context) bool {
	if dryRun, ok := ctx.Value(CtxDryRun).(bool); ok {
		return dryRun
	}
	return false
}

// SetTenantID sets the tenant ID in the context
func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, CtxTenantID, tenantID)
}

// SetUserID sets the user ID in the context
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

// SetCorrelationID sets the correlation ID in the context
func SetCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CtxCorrelationID, correlationID)
}

// SetDryRun marks the context as a simulation run
func SetDryRun(ctx context.Context, dryRun bool) context.Context {
	return context.WithValue(ctx, CtxDryRun, dryRun)
}
