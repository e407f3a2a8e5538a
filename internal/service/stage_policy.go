package service

import (
	"time"

	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/invoice"
	"github.com/flexprice/dunning/internal/types"
)

// StageResolution explains how the stage of an invoice was reached
type StageResolution struct {
	Stage         types.DunningStage `json:"stage"`
	DaysOverdue   int                `json:"days_overdue"`
	EffectiveDays int                `json:"effective_days"`
	Pinned        bool               `json:"pinned"`
}

// ResolveStage determines the dunning stage of inv at now. A pinned stage
// in 1..3 wins over the computed one.
func ResolveStage(inv *invoice.OverdueInvoice, settings config.DunningSettings, now time.Time) StageResolution {
	days := inv.DaysOverdue(now)
	effective := days - settings.GraceDays

	if inv.PinnedStage != nil && inv.PinnedStage.IsActionable() {
		return StageResolution{
			Stage:         *inv.PinnedStage,
			DaysOverdue:   days,
			EffectiveDays: effective,
			Pinned:        true,
		}
	}

	return StageResolution{
		Stage:         StageForDays(effective, settings),
		DaysOverdue:   days,
		EffectiveDays: effective,
	}
}

// StageForDays maps grace-adjusted days overdue to the highest stage whose
// threshold has been reached
func StageForDays(effectiveDays int, settings config.DunningSettings) types.DunningStage {
	if effectiveDays < 0 {
		return types.DunningStageNone
	}

	switch {
	case effectiveDays >= settings.Stage3Threshold:
		return types.DunningStage3
	case effectiveDays >= settings.Stage2Threshold:
		return types.DunningStage2
	case effectiveDays >= settings.Stage1Threshold:
		return types.DunningStage1
	default:
		return types.DunningStageNone
	}
}

// EscalationDelayDays returns the days between reaching from and reaching
// the stage directly above it
func EscalationDelayDays(from types.DunningStage, settings config.DunningSettings) int {
	switch from {
	case types.DunningStage1:
		return settings.Stage2Threshold - settings.Stage1Threshold
	case types.DunningStage2:
		return settings.Stage3Threshold - settings.Stage2Threshold
	default:
		return 0
	}
}
