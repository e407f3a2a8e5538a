package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/flexprice/dunning/internal/types"
)

// Scope represents the scope of idempotency
type Scope string

const (
	// ScopeDunningDecision keys approval requests and decisions
	ScopeDunningDecision Scope = "dunning_decision"
	// ScopeDunningDispatch keys the sent-set of the outbox
	ScopeDunningDispatch Scope = "dunning_dispatch"
)

// Generator generates idempotency keys
type Generator struct{}

// NewGenerator creates a new idempotency key generator
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey generates an idempotency key from a scope and parameters.
// String values are trimmed and lower-cased before hashing.
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, normalizeValue(params[k])))
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%s", scope, hex.EncodeToString(hash[:8]))
}

// ValidateKey validates if an idempotency key matches expected parameters
func (g *Generator) ValidateKey(scope Scope, params map[string]interface{}, key string) bool {
	return g.GenerateKey(scope, params) == strings.ToLower(strings.TrimSpace(key))
}

// DecisionKey derives the decision-level key of (tenant, invoice, stage).
// It keys approval records.
func (g *Generator) DecisionKey(tenantID, invoiceID string, stage types.DunningStage) string {
	return g.GenerateKey(ScopeDunningDecision, map[string]interface{}{
		"tenant_id":  tenantID,
		"invoice_id": invoiceID,
		"stage":      int(stage),
	})
}

// DispatchKey derives the dispatch-level key of (tenant, invoice, stage):
// the full sha256 hex of "tenant|invoice|stage" over normalized ids.
func (g *Generator) DispatchKey(tenantID, invoiceID string, stage types.DunningStage) string {
	raw := fmt.Sprintf("%s|%s|%d", normalize(tenantID), normalize(invoiceID), int(stage))
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeValue(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return normalize(s)
	}
	return v
}
