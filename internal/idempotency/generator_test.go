package idempotency

import (
	"fmt"
	"testing"

	"github.com/flexprice/dunning/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestKeysArePure(t *testing.T) {
	g := NewGenerator()

	assert.Equal(t,
		g.DecisionKey("tenant-1", "INV-1", types.DunningStage2),
		g.DecisionKey("tenant-1", "INV-1", types.DunningStage2))
	assert.Equal(t,
		g.DispatchKey("tenant-1", "INV-1", types.DunningStage2),
		g.DispatchKey("tenant-1", "INV-1", types.DunningStage2))
}

func TestKeysAreNormalizationStable(t *testing.T) {
	g := NewGenerator()

	assert.Equal(t,
		g.DecisionKey("tenant-1", "INV-1", types.DunningStage1),
		g.DecisionKey("  TENANT-1 ", "inv-1", types.DunningStage1))
	assert.Equal(t,
		g.DispatchKey("tenant-1", "INV-1", types.DunningStage1),
		g.DispatchKey("Tenant-1\t", " inv-1", types.DunningStage1))
}

func TestKeysDifferOnAnySingleInput(t *testing.T) {
	g := NewGenerator()
	seenDecision := map[string]string{}
	seenDispatch := map[string]string{}

	for tenant := 0; tenant < 5; tenant++ {
		for invoice := 0; invoice < 20; invoice++ {
			for _, stage := range types.DunningStages {
				tenantID := fmt.Sprintf("tenant-%d", tenant)
				invoiceID := fmt.Sprintf("INV-%04d", invoice)
				label := fmt.Sprintf("%s/%s/%d", tenantID, invoiceID, stage)

				dk := g.DecisionKey(tenantID, invoiceID, stage)
				if prev, ok := seenDecision[dk]; ok {
					t.Fatalf("decision key collision between %s and %s", prev, label)
				}
				seenDecision[dk] = label

				sk := g.DispatchKey(tenantID, invoiceID, stage)
				if prev, ok := seenDispatch[sk]; ok {
					t.Fatalf("dispatch key collision between %s and %s", prev, label)
				}
				seenDispatch[sk] = label
			}
		}
	}
}

func TestKeyFormats(t *testing.T) {
	g := NewGenerator()

	decision := g.DecisionKey("t", "i", types.DunningStage3)
	assert.Regexp(t, `^dunning_decision-[0-9a-f]{16}$`, decision)
	assert.True(t, g.ValidateKey(ScopeDunningDecision, map[string]interface{}{
		"tenant_id": "T", "invoice_id": "I", "stage": 3,
	}, decision))

	assert.Regexp(t, `^[0-9a-f]{64}$`, g.DispatchKey("t", "i", types.DunningStage3))
	assert.NotEqual(t, decision, g.DispatchKey("t", "i", types.DunningStage3))
}
