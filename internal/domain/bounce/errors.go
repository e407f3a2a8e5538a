package bounce

import (
	ierr "github.com/flexprice/dunning/internal/errors"
	"github.com/flexprice/dunning/internal/types"
)

// ValidateEvent checks an incoming event before it is queued
func ValidateEvent(ev *Event) error {
	if ev == nil {
		return ierr.NewError("bounce event is required").
			Mark(ierr.ErrValidation)
	}
	if err := ev.Type.Validate(); err != nil {
		return ierr.WithError(err).
			WithHintf("event %s has an unknown bounce type", ev.EventID).
			Mark(ierr.ErrValidation)
	}
	if ev.Stage != types.DunningStageNone && !ev.Stage.IsActionable() {
		return ierr.NewErrorf("invalid stage %d", int(ev.Stage)).
			WithHintf("event %s references an unknown dunning stage", ev.EventID).
			Mark(ierr.ErrValidation)
	}
	return nil
}
