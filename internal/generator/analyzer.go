package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/shellagent/internal/llm"
)

const analysisSystem = "You diagnose failed shell commands. " +
	"Explain the cause in one or two sentences and suggest a fix."

// maxAnalysisOutput bounds how much failure output goes into the prompt.
const maxAnalysisOutput = 4000

// ErrorAnalyzer explains failed executions.
type ErrorAnalyzer struct {
	client    llm.Client
	MaxTokens int
}

func NewErrorAnalyzer(client llm.Client) *ErrorAnalyzer {
	return &ErrorAnalyzer{client: client, MaxTokens: 512}
}

// Prompt builds the analysis prompt.
func (a *ErrorAnalyzer) Prompt(intent, command, errorOutput string) string {
	if len(errorOutput) > maxAnalysisOutput {
		errorOutput = errorOutput[len(errorOutput)-maxAnalysisOutput:]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Request: %s\n", intent)
	fmt.Fprintf(&sb, "Command: %s\n", command)
	sb.WriteString("Output:\n")
	sb.WriteString(errorOutput)
	sb.WriteString("\n\nWhy did it fail?")
	return sb.String()
}

// Analyze returns the trimmed explanation.
func (a *ErrorAnalyzer) Analyze(ctx context.Context, intent, command, errorOutput string) (string, error) {
	reply, err := a.client.Complete(ctx, llm.Request{
		System:    analysisSystem,
		Prompt:    a.Prompt(intent, command, errorOutput),
		MaxTokens: a.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("analyze failure: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
