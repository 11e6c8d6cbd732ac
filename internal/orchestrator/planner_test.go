package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/shellagent/internal/llm"
	"github.com/harrison/shellagent/internal/models"
)

func TestParseCapability(t *testing.T) {
	for _, c := range AllCapabilities() {
		got, ok := ParseCapability(c.String())
		require.True(t, ok, c.String())
		assert.Equal(t, c, got)
	}

	got, ok := ParseCapability("  EXECUTE ")
	assert.True(t, ok)
	assert.Equal(t, CapExecute, got)

	_, ok = ParseCapability("delete_everything")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Capability(99).String())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "persisting", StatePersisting.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestRulePlanner(t *testing.T) {
	tests := []struct {
		snap Snapshot
		want Capability
	}{
		{Snapshot{State: StateIdle}, CapRetrieve},
		{Snapshot{State: StateRetrieving}, CapSynthesize},
		{Snapshot{State: StateSynthesizing}, CapExecute},
		{Snapshot{State: StateExecuting, Executed: true, Succeeded: true}, CapPersist},
		{Snapshot{State: StateExecuting, Executed: true}, CapAnalyze},
		{Snapshot{State: StateAnalyzing}, CapFinish},
		{Snapshot{State: StatePersisting}, CapFinish},
	}

	for _, tt := range tests {
		t.Run(tt.snap.State.String(), func(t *testing.T) {
			d, err := RulePlanner{}.Next(context.Background(), tt.snap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Capability)
		})
	}
}

func TestDecisionSchema_ListsCapabilities(t *testing.T) {
	schema := DecisionSchema()
	for _, c := range AllCapabilities() {
		assert.Contains(t, schema, `"`+c.String()+`"`)
	}
}

func TestLLMPlanner_Next(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		snap   Snapshot
		want   Capability
		reason string
	}{
		{
			name:   "valid decision",
			reply:  `{"capability":"synthesize","reason":"have matches"}`,
			snap:   Snapshot{State: StateRetrieving},
			want:   CapSynthesize,
			reason: "have matches",
		},
		{
			name:   "decision in prose",
			reply:  "Sure:\n```json\n{\"capability\":\"persist\"}\n```",
			snap:   Snapshot{State: StateExecuting, Executed: true, Succeeded: true},
			want:   CapPersist,
			reason: "",
		},
		{
			name:   "unknown capability",
			reply:  `{"capability":"reboot"}`,
			snap:   Snapshot{State: StateIdle},
			want:   CapRetrieve,
			reason: "rule",
		},
		{
			name:   "extra property",
			reply:  `{"capability":"retrieve","force":true}`,
			snap:   Snapshot{State: StateIdle},
			want:   CapRetrieve,
			reason: "rule",
		},
		{
			name:   "not JSON",
			reply:  "execute it",
			snap:   Snapshot{State: StateSynthesizing},
			want:   CapExecute,
			reason: "rule",
		},
		{
			name:   "disallowed from state",
			reply:  `{"capability":"persist","reason":"skip"}`,
			snap:   Snapshot{State: StateExecuting, Executed: true},
			want:   CapAnalyze,
			reason: "rule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLLMPlanner(llm.NewEcho(tt.reply))
			require.NoError(t, err)

			d, err := p.Next(context.Background(), tt.snap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Capability)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestLLMPlanner_ModelErrorIsFault(t *testing.T) {
	p, err := NewLLMPlanner(llm.NewEcho("").FailWith(errors.New("quota")))
	require.NoError(t, err)

	_, err = p.Next(context.Background(), Snapshot{})
	assert.ErrorContains(t, err, "quota")
}

func TestLLMPlanner_SendsSchemaAndState(t *testing.T) {
	echo := llm.NewEcho(`{"capability":"retrieve"}`)
	p, err := NewLLMPlanner(echo)
	require.NoError(t, err)

	_, err = p.Next(context.Background(), Snapshot{Intent: "list files", State: StateIdle, Step: 1})
	require.NoError(t, err)

	calls := echo.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, DecisionSchema(), calls[0].Schema)
	assert.Contains(t, calls[0].Prompt, "Request: list files")
	assert.Contains(t, calls[0].Prompt, "State: idle")
}

func TestHandle_WithLLMPlanner(t *testing.T) {
	echo := llm.NewEcho(`{"capability":"finish"}`).Queue(
		`{"capability":"retrieve"}`,
		`{"capability":"synthesize"}`,
		`{"capability":"execute"}`,
		`{"capability":"persist"}`,
	)
	planner, err := NewLLMPlanner(echo)
	require.NoError(t, err)

	h := newHarness()
	h.synth.command = "ls"
	h.exec.results["ls"] = models.ExecutionResult{Succeeded: true, Output: "x"}

	res := h.build(t, planner, Config{}).Handle(context.Background(), "list files")

	assert.True(t, res.Succeeded)
	assert.False(t, res.Fallback)
	assert.Len(t, echo.Calls(), 5)
	assert.Len(t, h.mem.persisted, 1)
}

func TestHandle_LLMPlannerOutageFallsBack(t *testing.T) {
	planner, err := NewLLMPlanner(llm.NewEcho("").FailWith(errors.New("offline")))
	require.NoError(t, err)

	h := newHarness()
	h.synth.command = "ls"
	h.exec.results["ls"] = models.ExecutionResult{Succeeded: true, Output: "x"}

	res := h.build(t, planner, Config{}).Handle(context.Background(), "list files")

	assert.True(t, res.Fallback)
	assert.True(t, res.Succeeded)
	assert.Len(t, h.exec.commands, 1)
}
