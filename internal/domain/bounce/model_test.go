package bounce

import (
	"testing"
	"time"

	"github.com/flexprice/dunning/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func soft(id string, at time.Time) *Event {
	return &Event{
		EventID:       id,
		TenantID:      "tenant-1",
		RecipientHash: HashRecipient("debtor@example.com"),
		Type:          types.BounceTypeSoft,
		Reason:        "mailbox full",
		OccurredAt:    at,
	}
}

func TestApplyPromotesThirdSoftBounceInsideWindow(t *testing.T) {
	s := NewState()

	a1 := s.Apply(soft("e1", base), 72*time.Hour, 3)
	a2 := s.Apply(soft("e2", base.Add(35*time.Hour)), 72*time.Hour, 3)
	a3 := s.Apply(soft("e3", base.Add(71*time.Hour)), 72*time.Hour, 3)

	assert.Equal(t, types.BounceActionRecordSoft, a1.Action)
	assert.Equal(t, types.BounceActionRecordSoft, a2.Action)
	assert.Equal(t, types.BounceActionPromoteHard, a3.Action)
	assert.Equal(t, 3, a3.Attempts)

	entry := s.Blocklist[HashRecipient("DEBTOR@example.com ")]
	require.NotNil(t, entry)
	assert.True(t, entry.IsHard())
	require.NotNil(t, entry.PromotedAt)
	assert.Equal(t, base.Add(71*time.Hour), *entry.PromotedAt)
}

func TestApplyDoesNotPromoteSpreadOutBounces(t *testing.T) {
	s := NewState()

	s.Apply(soft("e1", base), 72*time.Hour, 3)
	s.Apply(soft("e2", base.Add(37*time.Hour)), 72*time.Hour, 3)
	a3 := s.Apply(soft("e3", base.Add(74*time.Hour)), 72*time.Hour, 3)

	assert.Equal(t, types.BounceActionRecordSoft, a3.Action)
	assert.Equal(t, 2, a3.Attempts)
	assert.False(t, s.IsHardBlocked(HashRecipient("debtor@example.com")))
}

func TestApplyHardBounceBlocksImmediatelyAndIsTerminal(t *testing.T) {
	s := NewState()
	hard := soft("h1", base)
	hard.Type = types.BounceTypeHard

	a := s.Apply(hard, 72*time.Hour, 3)
	assert.Equal(t, types.BounceActionBlockHard, a.Action)
	assert.Equal(t, types.BlockStatusHard, a.Status)

	later := s.Apply(soft("s1", base.Add(100*time.Hour)), 72*time.Hour, 3)
	assert.Equal(t, types.BounceActionAlreadyHard, later.Action)
	assert.Equal(t, types.BlockStatusHard, later.Status)
	assert.Equal(t, base, *s.Blocklist[hard.RecipientHash].PromotedAt)
}

func TestMarkProcessedSortsAndDedupes(t *testing.T) {
	s := NewState()
	s.MarkProcessed("c", "a")
	s.MarkProcessed("b", "a")

	assert.Equal(t, []string{"a", "b", "c"}, s.ProcessedEventIDs)
	_, ok := s.ProcessedSet()["b"]
	assert.True(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewState()
	s.Apply(soft("e1", base), 72*time.Hour, 3)

	c := s.Clone()
	c.Apply(soft("e2", base.Add(time.Hour)), 72*time.Hour, 3)

	assert.Len(t, s.Blocklist[HashRecipient("debtor@example.com")].Attempts, 1)
	assert.Len(t, c.Blocklist[HashRecipient("debtor@example.com")].Attempts, 2)
}
