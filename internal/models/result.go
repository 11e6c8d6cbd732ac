package models

// Tool names recorded in an OrchestrationTrace.
const (
	ToolRetrieve   = "retrieve"
	ToolSynthesize = "synthesize"
	ToolExecute    = "execute"
	ToolAnalyze    = "analyze"
	ToolPersist    = "persist"
)

// ToolCall is one capability invocation made while handling a request.
type ToolCall struct {
	Tool   string `json:"tool"`
	Input  any    `json:"input"`
	Output any    `json:"output"`
}

// OrchestrationTrace is the ordered record of a single request's tool calls
// plus an optional free-text summary. It only lives long enough to be
// turned into a StructuredResult.
type OrchestrationTrace struct {
	RunID   string     `json:"run_id"`
	Calls   []ToolCall `json:"calls"`
	Summary string     `json:"summary,omitempty"`
}

// Record appends a tool call to the trace.
func (t *OrchestrationTrace) Record(tool string, input, output any) {
	t.Calls = append(t.Calls, ToolCall{Tool: tool, Input: input, Output: output})
}

// Count reports how many times the named tool was invoked.
func (t *OrchestrationTrace) Count(tool string) int {
	n := 0
	for _, c := range t.Calls {
		if c.Tool == tool {
			n++
		}
	}
	return n
}

// StructuredResult is the externally visible outcome of handling an intent.
type StructuredResult struct {
	RunID          string            `json:"run_id,omitempty"`
	Command        string            `json:"command"`
	Succeeded      bool              `json:"succeeded"`
	Output         string            `json:"output"`
	ErrorAnalysis  string            `json:"error_analysis,omitempty"`
	SimilarMatches []SimilarityMatch `json:"similar_matches"`
	Fallback       bool              `json:"fallback,omitempty"`
}

// HasAnalysis reports whether an error analysis is attached.
func (r StructuredResult) HasAnalysis() bool {
	return r.ErrorAnalysis != ""
}

// Normalize enforces the result shape: matches are never nil and an
// analysis only accompanies a failure.
func (r StructuredResult) Normalize() StructuredResult {
	if r.SimilarMatches == nil {
		r.SimilarMatches = []SimilarityMatch{}
	}
	if r.Succeeded {
		r.ErrorAnalysis = ""
	}
	return r
}
