package approval

import (
	"sort"
	"strings"
	"time"

	"github.com/flexprice/dunning/internal/types"
	"github.com/samber/lo"
)

// Record is the 4-eyes approval state of one dunning notice
type Record struct {
	TenantID       string               `json:"tenant_id"`
	NoticeID       string               `json:"notice_id"`
	InvoiceID      string               `json:"invoice_id"`
	Stage          types.DunningStage   `json:"stage"`
	IdempotencyKey string               `json:"idempotency_key"`
	Status         types.ApprovalStatus `json:"status"`
	Requester      string               `json:"requester"`
	Approver       string               `json:"approver,omitempty"`
	Comment        string               `json:"comment,omitempty"`
	Reason         string               `json:"reason,omitempty"`
	CorrelationID  string               `json:"correlation_id,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// Ledger maps normalized idempotency keys to approval records
type Ledger struct {
	Records map[string]*Record `json:"records"`
}

func NewLedger() *Ledger {
	return &Ledger{Records: make(map[string]*Record)}
}

// NormalizeKey lower-cases and trims an idempotency key
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get looks a record up by idempotency key, case-insensitively
func (l *Ledger) Get(key string) (*Record, bool) {
	r, ok := l.Records[NormalizeKey(key)]
	return r, ok
}

// Clone returns a copy with every record copied
func (l *Ledger) Clone() *Ledger {
	c := NewLedger()
	for k, r := range l.Records {
		c.Records[k] = r.Clone()
	}
	return c
}

// WithRecord returns a copy of the ledger with r stored under its key
func (l *Ledger) WithRecord(r *Record) *Ledger {
	c := l.Clone()
	c.Records[NormalizeKey(r.IdempotencyKey)] = r
	return c
}

// Pending returns pending records ordered by creation time
func (l *Ledger) Pending() []*Record {
	pending := lo.Filter(lo.Values(l.Records), func(r *Record, _ int) bool {
		return r.Status == types.ApprovalStatusPending
	})
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].IdempotencyKey < pending[j].IdempotencyKey
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// SameActor compares two actor names the way the 4-eyes rule does
func SameActor(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
