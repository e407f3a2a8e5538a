package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DunningConfig holds the escalation policy defaults, per-tenant overrides
// and the tenants a cycle runs for
type DunningConfig struct {
	Defaults     DunningSettings            `mapstructure:"defaults"`
	Tenants      map[string]TenantOverrides `mapstructure:"tenants"`
	TenantIDs    []string                   `mapstructure:"tenant_ids"`
	InvoiceLimit int                        `mapstructure:"invoice_limit" validate:"gt=0"`
	Requester    string                     `mapstructure:"requester" validate:"required"`
}

// DunningSettings is the effective policy for one tenant
type DunningSettings struct {
	Stage1Threshold       int           `mapstructure:"stage_1_threshold" validate:"gte=0"`
	Stage2Threshold       int           `mapstructure:"stage_2_threshold" validate:"gte=0"`
	Stage3Threshold       int           `mapstructure:"stage_3_threshold" validate:"gte=0"`
	GraceDays             int           `mapstructure:"grace_days" validate:"gte=0"`
	MinAmountCents        int64         `mapstructure:"min_amount_cents" validate:"gte=0"`
	MaxNoticesPerHour     int           `mapstructure:"max_notices_per_hour" validate:"gt=0"`
	StopListPatterns      []string      `mapstructure:"stop_list_patterns"`
	RequireApprovalStage1 bool          `mapstructure:"require_approval_stage_1"`
	Cooldown              time.Duration `mapstructure:"cooldown" validate:"gte=0"`
}

// TenantOverrides replaces individual settings for one tenant. Nil fields
// inherit the defaults.
type TenantOverrides struct {
	Stage1Threshold       *int           `mapstructure:"stage_1_threshold"`
	Stage2Threshold       *int           `mapstructure:"stage_2_threshold"`
	Stage3Threshold       *int           `mapstructure:"stage_3_threshold"`
	GraceDays             *int           `mapstructure:"grace_days"`
	MinAmountCents        *int64         `mapstructure:"min_amount_cents"`
	MaxNoticesPerHour     *int           `mapstructure:"max_notices_per_hour"`
	StopListPatterns      []string       `mapstructure:"stop_list_patterns"`
	RequireApprovalStage1 *bool          `mapstructure:"require_approval_stage_1"`
	Cooldown              *time.Duration `mapstructure:"cooldown"`
}

func DefaultDunningSettings() DunningSettings {
	return DunningSettings{
		Stage1Threshold:   3,
		Stage2Threshold:   14,
		Stage3Threshold:   30,
		GraceDays:         0,
		MinAmountCents:    100,
		MaxNoticesPerHour: 200,
		StopListPatterns:  []string{},
		Cooldown:          24 * time.Hour,
	}
}

// ForTenant resolves the effective settings of a tenant. Tenant ids are
// matched case-insensitively.
func (c DunningConfig) ForTenant(tenantID string) DunningSettings {
	s := c.Defaults
	s.StopListPatterns = append([]string{}, c.Defaults.StopListPatterns...)

	o, ok := c.lookup(tenantID)
	if !ok {
		return s
	}

	if o.Stage1Threshold != nil {
		s.Stage1Threshold = *o.Stage1Threshold
	}
	if o.Stage2Threshold != nil {
		s.Stage2Threshold = *o.Stage2Threshold
	}
	if o.Stage3Threshold != nil {
		s.Stage3Threshold = *o.Stage3Threshold
	}
	if o.GraceDays != nil {
		s.GraceDays = *o.GraceDays
	}
	if o.MinAmountCents != nil {
		s.MinAmountCents = *o.MinAmountCents
	}
	if o.MaxNoticesPerHour != nil {
		s.MaxNoticesPerHour = *o.MaxNoticesPerHour
	}
	if o.StopListPatterns != nil {
		s.StopListPatterns = append([]string{}, o.StopListPatterns...)
	}
	if o.RequireApprovalStage1 != nil {
		s.RequireApprovalStage1 = *o.RequireApprovalStage1
	}
	if o.Cooldown != nil {
		s.Cooldown = *o.Cooldown
	}
	return s
}

func (c DunningConfig) lookup(tenantID string) (TenantOverrides, bool) {
	key := strings.ToLower(strings.TrimSpace(tenantID))
	for id, o := range c.Tenants {
		if strings.ToLower(strings.TrimSpace(id)) == key {
			return o, true
		}
	}
	return TenantOverrides{}, false
}

// Validate checks the defaults and every tenant override
func (c DunningConfig) Validate() error {
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("dunning.defaults: %w", err)
	}
	for tenantID := range c.Tenants {
		if err := c.ForTenant(tenantID).Validate(); err != nil {
			return fmt.Errorf("dunning.tenants.%s: %w", tenantID, err)
		}
	}
	return nil
}

func (s DunningSettings) Validate() error {
	if s.Stage1Threshold < 0 || s.GraceDays < 0 || s.MinAmountCents < 0 {
		return fmt.Errorf("thresholds, grace days and minimum amount must not be negative")
	}
	if !(s.Stage1Threshold <= s.Stage2Threshold && s.Stage2Threshold <= s.Stage3Threshold) {
		return fmt.Errorf("stage thresholds must be ascending: %d, %d, %d",
			s.Stage1Threshold, s.Stage2Threshold, s.Stage3Threshold)
	}
	if s.MaxNoticesPerHour <= 0 {
		return fmt.Errorf("max_notices_per_hour must be positive")
	}
	if _, err := s.CompileStopList(); err != nil {
		return err
	}
	return nil
}

// CompileStopList compiles the stop-list patterns for case-insensitive search
func (s DunningSettings) CompileStopList() ([]*regexp.Regexp, error) {
	patterns := lo.Filter(s.StopListPatterns, func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	})
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid stop-list pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
