package service

import (
	"context"
	"time"

	"github.com/flexprice/dunning/internal/arena"
	"github.com/flexprice/dunning/internal/domain/ratelimit"
)

// RateLimitStatus is the state of a tenant's sliding window
type RateLimitStatus struct {
	TenantID    string    `json:"tenant_id"`
	Count       int       `json:"count"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	WindowStart time.Time `json:"window_start"`
}

// RateLimiterService caps dispatch attempts per tenant inside a rolling
// hour. Reservations are staged on the tenant and persisted by its flush.
type RateLimiterService interface {
	Allow(ctx context.Context, t *arena.Tenant, limit int) (bool, error)
	Status(ctx context.Context, t *arena.Tenant, limit int) (*RateLimitStatus, error)
	Reset(ctx context.Context, t *arena.Tenant) error
}

type rateLimiterService struct {
	ServiceParams
}

func NewRateLimiterService(params ServiceParams) RateLimiterService {
	return &rateLimiterService{ServiceParams: params}
}

func (s *rateLimiterService) Allow(ctx context.Context, t *arena.Tenant, limit int) (bool, error) {
	window, err := t.RateWindow.Get(ctx)
	if err != nil {
		return false, err
	}

	now := s.now()
	next := window.Clone()
	if !next.Reserve(now, limit) {
		s.Logger.WithContext(ctx).Debugw("rate limit reached",
			"limit", limit,
			"count", window.Count(now),
		)
		return false, nil
	}

	t.RateWindow.Stage(next)
	return true, nil
}

func (s *rateLimiterService) Status(ctx context.Context, t *arena.Tenant, limit int) (*RateLimitStatus, error) {
	window, err := t.RateWindow.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	count := window.Count(now)
	return &RateLimitStatus{
		TenantID:    t.ID,
		Count:       count,
		Limit:       limit,
		Remaining:   max(limit-count, 0),
		WindowStart: now.Add(-ratelimit.Span),
	}, nil
}

func (s *rateLimiterService) Reset(ctx context.Context, t *arena.Tenant) error {
	if err := t.RateWindow.Put(ctx, ratelimit.NewWindow()); err != nil {
		return err
	}
	s.Logger.WithContext(ctx).Infow("rate limit window reset", "tenant_id", t.ID)
	return nil
}
