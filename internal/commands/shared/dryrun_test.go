package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDryRunPlan(t *testing.T) {
	plan := NewDryRunPlan()
	plan.Create("tool", "send_email")
	plan.Modify("agent", "Router", []string{"instructions", "model"})
	plan.Skip("agent", "Ghost", "agent Ghost not found")

	assert.Equal(t, 3, plan.Len())
	assert.Equal(t, `Dry run: the following changes would be made:

CREATE: tool send_email
MODIFY: agent Router (instructions, model)
SKIP: agent Ghost (agent Ghost not found)

Run without --dry-run to apply.
`, plan.String())
}

func TestDryRunPlanEmpty(t *testing.T) {
	assert.Equal(t, "Dry run: no changes would be made.\n", NewDryRunPlan().String())
}
