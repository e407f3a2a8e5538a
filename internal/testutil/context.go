package testutil

import (
	"context"

	"github.com/flexprice/dunning/internal/types"
)

const (
	TestTenantID  = "tenant_test"
	TestApprover  = "approver_test"
	TestRequester = "clerk_test"
)

// SetupContext returns a run context for TestTenantID with a fresh
// correlation id
func SetupContext() context.Context {
	ctx := types.SetTenantID(context.Background(), TestTenantID)
	ctx = types.SetUserID(ctx, TestRequester)
	return types.SetCorrelationID(ctx, types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CORRELATION))
}
