package config

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, GetDefaultConfig().Validate())
}

func TestForTenantMergesOverrides(t *testing.T) {
	cfg := DunningConfig{
		Defaults: DefaultDunningSettings(),
		Tenants: map[string]TenantOverrides{
			"Tenant-A": {
				GraceDays:             lo.ToPtr(5),
				StopListPatterns:      []string{"^VIP-"},
				RequireApprovalStage1: lo.ToPtr(true),
				Cooldown:              lo.ToPtr(48 * time.Hour),
			},
		},
	}

	a := cfg.ForTenant("  tenant-a ")
	assert.Equal(t, 5, a.GraceDays)
	assert.Equal(t, []string{"^VIP-"}, a.StopListPatterns)
	assert.True(t, a.RequireApprovalStage1)
	assert.Equal(t, 48*time.Hour, a.Cooldown)
	assert.Equal(t, 14, a.Stage2Threshold)

	b := cfg.ForTenant("tenant-b")
	assert.Equal(t, DefaultDunningSettings(), b)
}

func TestDunningSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *DunningSettings)
		wantErr bool
	}{
		{name: "defaults", mutate: func(s *DunningSettings) {}},
		{name: "descending thresholds", mutate: func(s *DunningSettings) { s.Stage2Threshold = 40 }, wantErr: true},
		{name: "zero rate limit", mutate: func(s *DunningSettings) { s.MaxNoticesPerHour = 0 }, wantErr: true},
		{name: "negative grace", mutate: func(s *DunningSettings) { s.GraceDays = -1 }, wantErr: true},
		{name: "broken pattern", mutate: func(s *DunningSettings) { s.StopListPatterns = []string{"("} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultDunningSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCompileStopListIsCaseInsensitive(t *testing.T) {
	s := DefaultDunningSettings()
	s.StopListPatterns = []string{"^test-", "  "}

	res, err := s.CompileStopList()
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, res[0].MatchString("TEST-123"))
	assert.False(t, res[0].MatchString("INV-TEST-1"))
}
