package service

import (
	"context"
	"sort"
	"strings"

	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/domain/bounce"
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/validator"
)

// BounceResult is the outcome of one reconciliation run
type BounceResult struct {
	TenantID          string           `json:"tenant_id"`
	DryRun            bool             `json:"dry_run"`
	ProcessedEventIDs []string         `json:"processed_event_ids"`
	Actions           []*bounce.Action `json:"actions"`
}

// BounceService maintains the per-tenant blocklist from delivery failures
type BounceService interface {
	Enqueue(ctx context.Context, t *arena.Tenant, events ...*bounce.Event) (int, error)
	Process(ctx context.Context, t *arena.Tenant, dryRun bool) (*BounceResult, error)
	IsBlocked(ctx context.Context, t *arena.Tenant, recipientHash string) (bool, error)
}

type bounceService struct {
	ServiceParams
}

func NewBounceService(params ServiceParams) BounceService {
	return &bounceService{ServiceParams: params}
}

// Enqueue appends valid events to the tenant inbox. Events already queued
// or already consumed are skipped. It returns how many were added.
func (s *bounceService) Enqueue(ctx context.Context, t *arena.Tenant, events ...*bounce.Event) (int, error) {
	for _, ev := range events {
		if err := bounce.ValidateEvent(ev); err != nil {
			return 0, err
		}
		if err := validator.ValidateRequest(ev); err != nil {
			return 0, err
		}
		if !strings.EqualFold(ev.TenantID, t.ID) {
			return 0, ierr.NewErrorf("bounce event %s belongs to tenant %s", ev.EventID, ev.TenantID).
				WithHintf("Event does not belong to tenant %s", t.ID).
				Mark(ierr.ErrValidation)
		}
	}

	state, err := t.Bounce.Get(ctx)
	if err != nil {
		return 0, err
	}
	inbox, err := t.Inbox.Get(ctx)
	if err != nil {
		return 0, err
	}

	processed := state.ProcessedSet()
	next := inbox.Clone()
	added := 0
	for _, ev := range events {
		if _, done := processed[ev.EventID]; done || next.Contains(ev.EventID) {
			continue
		}
		next.Events = append(next.Events, ev)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	if err := t.Inbox.Put(ctx, next); err != nil {
		return 0, err
	}
	s.Logger.WithContext(ctx).Debugw("bounce events queued", "count", added)
	return added, nil
}

// Process consumes the inbox. The blocklist and the consumed ids are
// written first, the trimmed inbox second; a crash in between is repaired
// by the next run skipping the consumed ids. The inbox is re-read before
// it is trimmed so events queued during the run stay queued. The store has
// no compare-and-swap, so an Enqueue from another process landing between
// that re-read and the write can still be lost; run one writer per tenant.
// A dry run persists nothing.
func (s *bounceService) Process(ctx context.Context, t *arena.Tenant, dryRun bool) (*BounceResult, error) {
	state, err := t.Bounce.Get(ctx)
	if err != nil {
		return nil, err
	}
	inbox, err := t.Inbox.Get(ctx)
	if err != nil {
		return nil, err
	}

	result := &BounceResult{
		TenantID:          t.ID,
		DryRun:            dryRun,
		ProcessedEventIDs: []string{},
		Actions:           []*bounce.Action{},
	}

	events := append([]*bounce.Event{}, inbox.Events...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})

	processed := state.ProcessedSet()
	next := state.Clone()
	for _, ev := range events {
		if _, done := processed[ev.EventID]; done {
			continue
		}
		processed[ev.EventID] = struct{}{}

		action := next.Apply(ev, s.Config.Bounce.Window, s.Config.Bounce.PromotionThreshold)
		next.MarkProcessed(ev.EventID)
		result.ProcessedEventIDs = append(result.ProcessedEventIDs, ev.EventID)
		result.Actions = append(result.Actions, action)
	}

	log := s.Logger.WithContext(ctx)
	if dryRun {
		log.Infow("dry run, bounce reconciliation not persisted",
			"actions", len(result.Actions),
		)
		return result, nil
	}

	if len(result.Actions) > 0 {
		if err := t.Bounce.Put(ctx, next); err != nil {
			return nil, err
		}
	}
	if len(inbox.Events) > 0 {
		current, err := t.Inbox.Reload(ctx)
		if err != nil {
			return nil, err
		}
		remaining := current.Without(processed)
		if len(remaining.Events) != len(current.Events) {
			if err := t.Inbox.Put(ctx, remaining); err != nil {
				return nil, err
			}
		}
	}

	for _, a := range result.Actions {
		log.Infow("bounce reconciled",
			"event_id", a.EventID,
			"action", a.Action,
			"status", a.Status,
			"attempts", a.Attempts,
		)
	}
	return result, nil
}

func (s *bounceService) IsBlocked(ctx context.Context, t *arena.Tenant, recipientHash string) (bool, error) {
	state, err := t.Bounce.Get(ctx)
	if err != nil {
		return false, err
	}
	return state.IsHardBlocked(recipientHash), nil
}
