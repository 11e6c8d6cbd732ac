package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureKindString(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want string
	}{
		{FailureNone, "none"},
		{FailureSpawn, "spawn_failure"},
		{FailureTimeout, "timeout"},
		{FailureNonZeroExit, "nonzero_exit"},
		{FailureKind(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestStructuredResultNormalize(t *testing.T) {
	t.Run("nil matches become empty", func(t *testing.T) {
		r := StructuredResult{}.Normalize()
		require.NotNil(t, r.SimilarMatches)
		assert.Empty(t, r.SimilarMatches)
	})

	t.Run("analysis dropped on success", func(t *testing.T) {
		r := StructuredResult{Succeeded: true, ErrorAnalysis: "stale"}.Normalize()
		assert.False(t, r.HasAnalysis())
	})

	t.Run("analysis kept on failure", func(t *testing.T) {
		r := StructuredResult{Succeeded: false, ErrorAnalysis: "missing file"}.Normalize()
		assert.True(t, r.HasAnalysis())
	})
}

func TestStructuredResultJSON(t *testing.T) {
	r := StructuredResult{Command: "ls", Succeeded: true, Output: "a.txt"}.Normalize()

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "error_analysis")
	assert.Equal(t, []any{}, decoded["similar_matches"])
}

func TestTraceCount(t *testing.T) {
	var trace OrchestrationTrace
	trace.Record(ToolRetrieve, "list files", []SimilarityMatch{})
	trace.Record(ToolExecute, "ls", ExecutionResult{Succeeded: true})
	trace.Record(ToolExecute, "ls -a", ExecutionResult{Succeeded: true})

	assert.Equal(t, 2, trace.Count(ToolExecute))
	assert.Equal(t, 0, trace.Count(ToolAnalyze))
}

func TestNewCommandRecord(t *testing.T) {
	rec := NewCommandRecord("list files", "ls", ExecutionResult{Succeeded: true, Output: "a.txt"})
	assert.Equal(t, "list files", rec.Intent)
	assert.Equal(t, "ls", rec.Command)
	assert.Equal(t, "a.txt", rec.Output)
	assert.True(t, rec.Success)
	assert.False(t, rec.CreatedAt.IsZero())
}
