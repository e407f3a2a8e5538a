package arena

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/dunning/internal/domain/approval"
	"github.com/flexprice/dunning/internal/domain/bounce"
	"github.com/flexprice/dunning/internal/domain/outbox"
	"github.com/flexprice/dunning/internal/domain/ratelimit"
	"github.com/flexprice/dunning/internal/domain/snapshot"
	"github.com/flexprice/dunning/internal/logger"
	"github.com/flexprice/dunning/internal/types"
	"github.com/flexprice/dunning/internal/validator"
)

// Tenant is the mutable state of one tenant for the duration of a run.
// Every service operation receives it explicitly.
type Tenant struct {
	ID string

	Approvals  *Doc[approval.Ledger]
	SentKeys   *Doc[outbox.SentLedger]
	Bounce     *Doc[bounce.State]
	Inbox      *Doc[bounce.Inbox]
	RateWindow *Doc[ratelimit.Window]
}

// NewTenant builds an unloaded tenant context on top of repo
func NewTenant(repo snapshot.Repository, tenantID string) *Tenant {
	return &Tenant{
		ID:         tenantID,
		Approvals:  newDoc(repo, tenantID, snapshot.DocApprovals, approval.NewLedger),
		SentKeys:   newDoc(repo, tenantID, snapshot.DocSentKeys, outbox.NewSentLedger),
		Bounce:     newDoc(repo, tenantID, snapshot.DocBounce, bounce.NewState),
		Inbox:      newDoc(repo, tenantID, snapshot.DocInbox, bounce.NewInbox),
		RateWindow: newDoc(repo, tenantID, snapshot.DocRateWindow, ratelimit.NewWindow),
	}
}

// Flush writes every staged document
func (t *Tenant) Flush(ctx context.Context) error {
	var err error
	for _, f := range []func(context.Context) error{
		t.Approvals.Flush,
		t.SentKeys.Flush,
		t.Bounce.Flush,
		t.Inbox.Flush,
		t.RateWindow.Flush,
	} {
		err = errors.CombineErrors(err, f(ctx))
	}
	return err
}

// Arena hands out tenant contexts. Runs of the same tenant are serialized
// inside one process; different tenants never share state.
type Arena struct {
	repo   snapshot.Repository
	logger *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(repo snapshot.Repository, logger *logger.Logger) *Arena {
	return &Arena{
		repo:   repo,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (a *Arena) lock(tenantID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(tenantID))
	l, ok := a.locks[key]
	if !ok {
		l = &sync.Mutex{}
		a.locks[key] = l
	}
	return l
}

// Run loads a fresh tenant context, calls fn, and flushes whatever fn
// staged. Staged changes are dropped when fn fails.
func (a *Arena) Run(ctx context.Context, tenantID string, fn func(ctx context.Context, t *Tenant) error) error {
	if err := validator.ValidateIdentifier("tenant_id", tenantID); err != nil {
		return err
	}

	l := a.lock(tenantID)
	l.Lock()
	defer l.Unlock()

	ctx = types.SetTenantID(ctx, tenantID)
	t := NewTenant(a.repo, tenantID)
	if err := fn(ctx, t); err != nil {
		return err
	}

	if err := t.Flush(ctx); err != nil {
		a.logger.Errorw("failed to flush tenant state",
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}
	return nil
}
