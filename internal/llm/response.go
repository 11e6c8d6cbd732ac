package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// cliResponse is the envelope printed by claude --output-format json.
type cliResponse struct {
	Type             string          `json:"type"`
	Result           *string         `json:"result"`
	Content          *string         `json:"content"`
	StructuredOutput json.RawMessage `json:"structured_output"`
	SessionID        string          `json:"session_id"`
	IsError          bool            `json:"is_error"`
}

// ParseResponse extracts the reply text and session id from CLI output.
//
// Structured output wins over the plain result. Output that is not a JSON
// envelope is searched for an embedded object (code fences or a prefixed
// warning line); plain text without any object yields "".
func ParseResponse(raw []byte) (content, sessionID string, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", "", nil
	}

	var env cliResponse
	if err := json.Unmarshal(trimmed, &env); err != nil {
		extracted := ExtractJSON(string(trimmed))
		if extracted == "" {
			return "", "", nil
		}
		if err := json.Unmarshal([]byte(extracted), &env); err != nil {
			return "", "", fmt.Errorf("invalid JSON in output: %w", err)
		}
		if env.Result == nil && env.Content == nil && len(env.StructuredOutput) == 0 {
			return extracted, "", nil
		}
	}

	if env.IsError {
		msg := ""
		if env.Result != nil {
			msg = *env.Result
		}
		return "", env.SessionID, fmt.Errorf("claude reported an error: %s", msg)
	}

	switch {
	case len(env.StructuredOutput) > 0 && string(env.StructuredOutput) != "null":
		return string(env.StructuredOutput), env.SessionID, nil
	case env.Result != nil:
		return *env.Result, env.SessionID, nil
	case env.Content != nil:
		return *env.Content, env.SessionID, nil
	case env.Type == "" && env.SessionID == "":
		// A bare JSON object rather than an envelope.
		return string(trimmed), "", nil
	}
	return "", env.SessionID, nil
}

// ExtractJSON returns the substring from the first '{' to the last '}', or
// "" when there is no such span.
func ExtractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return ""
}

// truncate returns s cut to maxLen bytes with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
