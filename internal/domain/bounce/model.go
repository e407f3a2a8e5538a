package bounce

import (
	"sort"
	"time"

	"github.com/flexprice/dunning/internal/types"
	"github.com/samber/lo"
)

// Event is a delivery failure reported by the mail provider
type Event struct {
	EventID       string             `json:"event_id" validate:"required"`
	TenantID      string             `json:"tenant_id" validate:"required,tenant_id"`
	RecipientHash string             `json:"recipient_hash" validate:"required,len=64,hexadecimal"`
	Type          types.BounceType   `json:"type" validate:"required"`
	Reason        string             `json:"reason,omitempty"`
	NoticeID      string             `json:"notice_id,omitempty"`
	Stage         types.DunningStage `json:"stage,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at" validate:"required"`
}

// Entry is the blocklist state of one recipient
type Entry struct {
	RecipientHash string             `json:"recipient_hash"`
	Status        types.BlockStatus  `json:"status"`
	Attempts      []time.Time        `json:"attempts"`
	LastEventID   string             `json:"last_event_id"`
	LastEventAt   time.Time          `json:"last_event_at"`
	LastReason    string             `json:"last_reason,omitempty"`
	LastNoticeID  string             `json:"last_notice_id,omitempty"`
	LastStage     types.DunningStage `json:"last_stage,omitempty"`
	PromotedAt    *time.Time         `json:"promoted_at,omitempty"`
}

// IsHard reports whether the recipient is permanently blocked
func (e *Entry) IsHard() bool {
	return e != nil && e.Status == types.BlockStatusHard
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Attempts = append([]time.Time{}, e.Attempts...)
	if e.PromotedAt != nil {
		p := *e.PromotedAt
		c.PromotedAt = &p
	}
	return &c
}

// Action records what consuming one event did to the blocklist
type Action struct {
	RecipientHash string             `json:"recipient_hash"`
	Action        types.BounceAction `json:"action"`
	EventID       string             `json:"event_id"`
	Attempts      int                `json:"attempts"`
	Status        types.BlockStatus  `json:"status"`
	Reason        string             `json:"reason,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// State is the blocklist together with the ids of every consumed event.
// Both are persisted in one document so they can never diverge.
type State struct {
	Blocklist         map[string]*Entry `json:"blocklist"`
	ProcessedEventIDs []string          `json:"processed_event_ids"`
}

func NewState() *State {
	return &State{
		Blocklist:         make(map[string]*Entry),
		ProcessedEventIDs: []string{},
	}
}

// Clone returns a deep copy
func (s *State) Clone() *State {
	c := NewState()
	for k, e := range s.Blocklist {
		c.Blocklist[k] = e.clone()
	}
	c.ProcessedEventIDs = append(c.ProcessedEventIDs, s.ProcessedEventIDs...)
	return c
}

// IsHardBlocked reports whether the recipient hash is blocked for good
func (s *State) IsHardBlocked(recipientHash string) bool {
	if s == nil || recipientHash == "" {
		return false
	}
	return s.Blocklist[recipientHash].IsHard()
}

// ProcessedSet returns the consumed event ids as a set
func (s *State) ProcessedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.ProcessedEventIDs))
	for _, id := range s.ProcessedEventIDs {
		set[id] = struct{}{}
	}
	return set
}

// MarkProcessed adds ids to the consumed set, keeping it sorted and unique
func (s *State) MarkProcessed(ids ...string) {
	s.ProcessedEventIDs = lo.Uniq(append(s.ProcessedEventIDs, ids...))
	sort.Strings(s.ProcessedEventIDs)
}

// Apply consumes one event. Attempts older than window before the event are
// pruned before the event is appended; threshold attempts promote a soft
// entry to hard. Hard entries never return to soft.
func (s *State) Apply(ev *Event, window time.Duration, threshold int) *Action {
	occurredAt := ev.OccurredAt.UTC()

	entry, ok := s.Blocklist[ev.RecipientHash]
	if !ok {
		entry = &Entry{
			RecipientHash: ev.RecipientHash,
			Status:        types.BlockStatusSoft,
			Attempts:      []time.Time{},
		}
		s.Blocklist[ev.RecipientHash] = entry
	}
	wasHard := entry.IsHard()

	cutoff := occurredAt.Add(-window)
	entry.Attempts = lo.Filter(entry.Attempts, func(ts time.Time, _ int) bool {
		return !ts.Before(cutoff)
	})
	entry.Attempts = append(entry.Attempts, occurredAt)

	entry.LastEventID = ev.EventID
	entry.LastEventAt = occurredAt
	entry.LastReason = ev.Reason
	entry.LastNoticeID = ev.NoticeID
	entry.LastStage = ev.Stage

	var action types.BounceAction
	switch {
	case wasHard:
		action = types.BounceActionAlreadyHard
	case ev.Type == types.BounceTypeHard:
		entry.Status = types.BlockStatusHard
		action = types.BounceActionBlockHard
	case len(entry.Attempts) >= threshold:
		entry.Status = types.BlockStatusHard
		action = types.BounceActionPromoteHard
	default:
		action = types.BounceActionRecordSoft
	}

	if entry.IsHard() && entry.PromotedAt == nil {
		promotedAt := occurredAt
		entry.PromotedAt = &promotedAt
	}

	return &Action{
		RecipientHash: entry.RecipientHash,
		Action:        action,
		EventID:       ev.EventID,
		Attempts:      len(entry.Attempts),
		Status:        entry.Status,
		Reason:        ev.Reason,
		OccurredAt:    occurredAt,
	}
}

// Inbox holds events awaiting reconciliation, in arrival order
type Inbox struct {
	Events []*Event `json:"events"`
}

func NewInbox() *Inbox {
	return &Inbox{Events: []*Event{}}
}

// Clone returns a copy sharing the immutable events
func (i *Inbox) Clone() *Inbox {
	return &Inbox{Events: append([]*Event{}, i.Events...)}
}

// Contains reports whether an event id is queued
func (i *Inbox) Contains(eventID string) bool {
	return lo.ContainsBy(i.Events, func(e *Event) bool { return e.EventID == eventID })
}

// Without returns a copy holding only the events whose id is not in ids
func (i *Inbox) Without(ids map[string]struct{}) *Inbox {
	return &Inbox{Events: lo.Filter(i.Events, func(e *Event, _ int) bool {
		_, drop := ids[e.EventID]
		return !drop
	})}
}
