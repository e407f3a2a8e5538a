package service

import (
	"testing"
	"time"

	"github.com/flexprice/dunning/internal/config"
	"github.com/flexprice/dunning/internal/domain/invoice"
	"github.com/flexprice/dunning/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestResolveStage(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pin := func(s types.DunningStage) *types.DunningStage { return &s }

	tests := []struct {
		name       string
		daysAgo    float64
		grace      int
		pinned     *types.DunningStage
		wantStage  types.DunningStage
		wantPinned bool
	}{
		{name: "due in the future", daysAgo: -2, wantStage: types.DunningStageNone},
		{name: "due an hour from now", daysAgo: -1.0 / 24, wantStage: types.DunningStageNone},
		{name: "below first threshold", daysAgo: 2.9, wantStage: types.DunningStageNone},
		{name: "first threshold reached", daysAgo: 3, wantStage: types.DunningStage1},
		{name: "just below second threshold", daysAgo: 13.99, wantStage: types.DunningStage1},
		{name: "second threshold reached", daysAgo: 14, wantStage: types.DunningStage2},
		{name: "twenty days", daysAgo: 20, wantStage: types.DunningStage2},
		{name: "third threshold reached", daysAgo: 30, wantStage: types.DunningStage3},
		{name: "far overdue", daysAgo: 400, wantStage: types.DunningStage3},
		{name: "inside grace period", daysAgo: 4, grace: 5, wantStage: types.DunningStageNone},
		{name: "grace shifts thresholds", daysAgo: 7, grace: 5, wantStage: types.DunningStageNone},
		{name: "grace then first threshold", daysAgo: 8, grace: 5, wantStage: types.DunningStage1},
		{name: "pinned stage wins", daysAgo: 1, pinned: pin(types.DunningStage3), wantStage: types.DunningStage3, wantPinned: true},
		{name: "invalid pin falls back", daysAgo: 20, pinned: pin(types.DunningStage(7)), wantStage: types.DunningStage2},
		{name: "pin of none falls back", daysAgo: 3, pinned: pin(types.DunningStageNone), wantStage: types.DunningStage1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := config.DefaultDunningSettings()
			settings.GraceDays = tt.grace
			inv := &invoice.OverdueInvoice{
				DueDate:     now.Add(-time.Duration(tt.daysAgo * float64(24*time.Hour))),
				PinnedStage: tt.pinned,
			}

			got := ResolveStage(inv, settings, now)
			assert.Equal(t, tt.wantStage, got.Stage)
			assert.Equal(t, tt.wantPinned, got.Pinned)
		})
	}
}

func TestResolveStageWithinGraceIsNone(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	settings := config.DefaultDunningSettings()
	settings.Stage1Threshold = 0
	settings.GraceDays = 10

	for days := 0; days < settings.GraceDays; days++ {
		inv := &invoice.OverdueInvoice{DueDate: now.AddDate(0, 0, -days)}
		assert.Equal(t, types.DunningStageNone, ResolveStage(inv, settings, now).Stage, "days overdue %d", days)
	}
}

func TestStageForDaysEqualThresholds(t *testing.T) {
	settings := config.DefaultDunningSettings()
	settings.Stage1Threshold = 10
	settings.Stage2Threshold = 10
	settings.Stage3Threshold = 10

	assert.Equal(t, types.DunningStageNone, StageForDays(9, settings))
	assert.Equal(t, types.DunningStage3, StageForDays(10, settings))
}

func TestEscalationDelayDays(t *testing.T) {
	settings := config.DefaultDunningSettings()
	assert.Equal(t, 11, EscalationDelayDays(types.DunningStage1, settings))
	assert.Equal(t, 16, EscalationDelayDays(types.DunningStage2, settings))
	assert.Equal(t, 0, EscalationDelayDays(types.DunningStage3, settings))
}
