package approval

import (
	"testing"
	"time"

	"github.com/flexprice/dunning/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerKeysAreCaseInsensitive(t *testing.T) {
	l := NewLedger().WithRecord(&Record{
		IdempotencyKey: "Dunning_Decision-ABC",
		Status:         types.ApprovalStatusPending,
	})

	r, ok := l.Get(" dunning_decision-abc")
	require.True(t, ok)
	assert.Equal(t, types.ApprovalStatusPending, r.Status)
}

func TestWithRecordLeavesOriginalUntouched(t *testing.T) {
	l := NewLedger()
	next := l.WithRecord(&Record{IdempotencyKey: "k"})

	assert.Empty(t, l.Records)
	assert.Len(t, next.Records, 1)
}

func TestPendingOrderedByCreation(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLedger().
		WithRecord(&Record{IdempotencyKey: "b", Status: types.ApprovalStatusPending, CreatedAt: now.Add(time.Hour)}).
		WithRecord(&Record{IdempotencyKey: "a", Status: types.ApprovalStatusPending, CreatedAt: now}).
		WithRecord(&Record{IdempotencyKey: "c", Status: types.ApprovalStatusSent, CreatedAt: now})

	pending := l.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].IdempotencyKey)
	assert.Equal(t, "b", pending[1].IdempotencyKey)
}

func TestSameActor(t *testing.T) {
	assert.True(t, SameActor("Alice", " alice "))
	assert.False(t, SameActor("alice", "bob"))
}
