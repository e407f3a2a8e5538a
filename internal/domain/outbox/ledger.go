package outbox

import (
	"time"
)

// SentLedger is the persisted set of dispatch keys whose events were
// published successfully
type SentLedger struct {
	Keys map[string]SentEntry `json:"keys"`
}

// SentEntry describes one recorded dispatch
type SentEntry struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
}

func NewSentLedger() *SentLedger {
	return &SentLedger{Keys: make(map[string]SentEntry)}
}

func (l *SentLedger) Contains(key string) bool {
	_, ok := l.Keys[key]
	return ok
}

// With returns a copy of the ledger including key
func (l *SentLedger) With(key string, entry SentEntry) *SentLedger {
	c := NewSentLedger()
	for k, v := range l.Keys {
		c.Keys[k] = v
	}
	c.Keys[key] = entry
	return c
}
