package ratelimit

import (
	"time"

	"github.com/samber/lo"
)

// Span is the length of the sliding window
const Span = time.Hour

// Window is the persisted sliding window of dispatch attempts of a tenant
type Window struct {
	Attempts []time.Time `json:"attempts"`
}

func NewWindow() *Window {
	return &Window{Attempts: []time.Time{}}
}

func (w *Window) Clone() *Window {
	return &Window{Attempts: append([]time.Time{}, w.Attempts...)}
}

// Prune drops attempts at or before now minus Span
func (w *Window) Prune(now time.Time) {
	cutoff := now.Add(-Span)
	w.Attempts = lo.Filter(w.Attempts, func(ts time.Time, _ int) bool {
		return ts.After(cutoff)
	})
}

// Reserve takes a slot at now when fewer than max attempts remain in the
// window. It reports whether the slot was taken.
func (w *Window) Reserve(now time.Time, max int) bool {
	w.Prune(now)
	if len(w.Attempts) >= max {
		return false
	}
	w.Attempts = append(w.Attempts, now.UTC())
	return true
}

// Count returns the attempts inside the window ending at now
func (w *Window) Count(now time.Time) int {
	cutoff := now.Add(-Span)
	return lo.CountBy(w.Attempts, func(ts time.Time) bool {
		return ts.After(cutoff)
	})
}
