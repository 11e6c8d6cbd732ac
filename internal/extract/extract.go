// Package extract rebuilds the canonical result of a request from its
// orchestration trace, and parses the legacy free-text record encodings.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harrison/shellagent/internal/models"
)

// Extract reconstructs the structured result from trace.
//
// The last execute call supplies the command and outcome. The last analyze
// call supplies the error analysis. Without any execute call the command is
// empty and the result is a failure, unless the trace summary holds a
// recognizable text record. SimilarMatches is left empty for the caller.
func Extract(trace models.OrchestrationTrace) models.StructuredResult {
	res := models.StructuredResult{RunID: trace.RunID}

	executed := false
	for _, call := range trace.Calls {
		switch call.Tool {
		case models.ToolExecute:
			executed = true
			res.Command = commandFromInput(call.Input)
			exec := executionFromOutput(call.Output)
			res.Succeeded = exec.Succeeded
			res.Output = exec.Output
		case models.ToolAnalyze:
			res.ErrorAnalysis = textFromOutput(call.Output)
		}
	}

	if !executed && strings.TrimSpace(trace.Summary) != "" {
		f := ParseText(trace.Summary)
		res.Command = f.Command
		res.Succeeded = f.Succeeded
		res.Output = f.Output
	}

	return res.Normalize()
}

// commandFromInput accepts a bare string or anything carrying a "command" field.
func commandFromInput(in any) string {
	switch v := in.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]string:
		return v["command"]
	case map[string]any:
		s, _ := v["command"].(string)
		return s
	case json.RawMessage:
		return commandFromJSON(v)
	case []byte:
		return commandFromJSON(v)
	}

	data, err := json.Marshal(in)
	if err != nil {
		return ""
	}
	return commandFromJSON(data)
}

func commandFromJSON(data []byte) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.Command
	}
	return string(data)
}

// executionResultJSON accepts both "succeeded" and the older "success" key.
type executionResultJSON struct {
	Succeeded *bool  `json:"succeeded"`
	Success   *bool  `json:"success"`
	Output    string `json:"output"`
}

func (r executionResultJSON) result() models.ExecutionResult {
	ok := false
	switch {
	case r.Succeeded != nil:
		ok = *r.Succeeded
	case r.Success != nil:
		ok = *r.Success
	}
	return models.ExecutionResult{Succeeded: ok, Output: r.Output}
}

// executionFromOutput reads the ExecutionResult shape. Anything else is
// kept as failure output so the text is not lost.
func executionFromOutput(out any) models.ExecutionResult {
	switch v := out.(type) {
	case models.ExecutionResult:
		return v
	case *models.ExecutionResult:
		if v != nil {
			return *v
		}
		return models.ExecutionResult{}
	case nil:
		return models.ExecutionResult{}
	case string:
		if r, ok := executionFromJSON([]byte(v)); ok {
			return r
		}
		return models.ExecutionResult{Output: v}
	case json.RawMessage:
		if r, ok := executionFromJSON(v); ok {
			return r
		}
		return models.ExecutionResult{Output: string(v)}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return models.ExecutionResult{Output: fmt.Sprint(out)}
	}
	if r, ok := executionFromJSON(data); ok {
		return r
	}
	return models.ExecutionResult{Output: fmt.Sprint(out)}
}

func executionFromJSON(data []byte) (models.ExecutionResult, bool) {
	var r executionResultJSON
	if err := json.Unmarshal(data, &r); err != nil {
		return models.ExecutionResult{}, false
	}
	if r.Succeeded == nil && r.Success == nil {
		return models.ExecutionResult{}, false
	}
	return r.result(), true
}

// textFromOutput returns the explanation carried by an analyze call.
func textFromOutput(out any) string {
	switch v := out.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case map[string]any:
		for _, key := range []string{"explanation", "analysis", "text"} {
			if s, ok := v[key].(string); ok {
				return s
			}
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprint(out)
	}
	var obj struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Explanation != "" {
		return obj.Explanation
	}
	return string(data)
}
