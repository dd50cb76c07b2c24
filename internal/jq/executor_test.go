package jq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

func testDoc() *workflow.Document {
	return &workflow.Document{
		Name: "support",
		Agents: []workflow.Agent{
			{Name: "Router", Model: "gpt-4.1"},
			{Name: "Billing", Model: "gpt-4.1-mini", Disabled: true},
		},
		Tools:      []workflow.Tool{{Name: "lookup"}},
		Prompts:    []workflow.Prompt{},
		StartAgent: "Router",
	}
}

func TestExecutor_Query(t *testing.T) {
	e := NewExecutor(0)

	tests := []struct {
		name       string
		expression string
		want       []any
	}{
		{name: "field", expression: ".startAgent", want: []any{"Router"}},
		{name: "stream", expression: ".agents[].name", want: []any{"Router", "Billing"}},
		{name: "filter", expression: `[.agents[] | select(.disabled) | .name]`, want: []any{[]any{"Billing"}}},
		{name: "count", expression: ".tools | length", want: []any{1}},
		{name: "empty stream", expression: "empty", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Query(context.Background(), tt.expression, testDoc())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutor_EmptyExpressionReturnsDocument(t *testing.T) {
	got, err := NewExecutor(0).Query(context.Background(), "", testDoc())
	require.NoError(t, err)
	require.Len(t, got, 1)
	doc, ok := got[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "support", doc["name"])
}

func TestExecutor_Errors(t *testing.T) {
	e := NewExecutor(0)

	_, err := e.Query(context.Background(), ".agents[", testDoc())
	assert.ErrorContains(t, err, "invalid jq expression")

	_, err = e.Query(context.Background(), ".name | error(\"boom\")", testDoc())
	assert.ErrorContains(t, err, "query failed")

	assert.NoError(t, e.Validate(".agents | map(.name)"))
	assert.Error(t, e.Validate("map("))
}

func TestExecutor_Timeout(t *testing.T) {
	e := NewExecutor(20 * time.Millisecond)
	_, err := e.Query(context.Background(), "last(range(1e12))", testDoc())
	assert.ErrorContains(t, err, "timed out")
}
