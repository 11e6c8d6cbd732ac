// Package generator turns intents into shell commands and failed runs into
// explanations, using an llm.Client.
package generator

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/harrison/shellagent/internal/executor"
	"github.com/harrison/shellagent/internal/extract"
	"github.com/harrison/shellagent/internal/llm"
	"github.com/harrison/shellagent/internal/models"
)

// DefaultMaxExamples caps how many past commands go into a prompt.
const DefaultMaxExamples = 3

const synthesisSystem = "You translate requests into a single shell command. " +
	"Reply with only the command, optionally in one fenced code block. No explanation."

// CommandGenerator synthesizes commands for intents.
type CommandGenerator struct {
	client      llm.Client
	goos        string
	shell       executor.Shell
	MaxExamples int
	MaxTokens   int
}

// NewCommandGenerator targets the running OS.
func NewCommandGenerator(client llm.Client) *CommandGenerator {
	return NewCommandGeneratorForOS(client, runtime.GOOS)
}

// NewCommandGeneratorForOS targets goos, e.g. "windows".
func NewCommandGeneratorForOS(client llm.Client, goos string) *CommandGenerator {
	return &CommandGenerator{
		client:      client,
		goos:        goos,
		shell:       executor.ShellFor(goos),
		MaxExamples: DefaultMaxExamples,
		MaxTokens:   256,
	}
}

// Prompt builds the synthesis prompt for intent.
func (g *CommandGenerator) Prompt(intent string, matches []models.SimilarityMatch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Operating system: %s\n", g.goos)
	fmt.Fprintf(&sb, "Shell: %s\n\n", strings.Join(g.shell.Command("<command>"), " "))

	limit := g.MaxExamples
	if limit <= 0 || limit > len(matches) {
		limit = len(matches)
	}
	if limit > 0 {
		sb.WriteString("Similar past commands:\n\n")
		for _, m := range matches[:limit] {
			r := m.Record
			sb.WriteString(extract.Format(r.Intent, r.Command, r.Success, ""))
			sb.WriteString("\n\n")
		}
	}

	fmt.Fprintf(&sb, "Request: %s\n", intent)
	sb.WriteString("Command:")
	return sb.String()
}

// Synthesize asks the model for a command. The reply is reduced to the
// command text; it may be empty.
func (g *CommandGenerator) Synthesize(ctx context.Context, intent string, matches []models.SimilarityMatch) (string, error) {
	reply, err := g.client.Complete(ctx, llm.Request{
		System:    synthesisSystem,
		Prompt:    g.Prompt(intent, matches),
		MaxTokens: g.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize command: %w", err)
	}
	return ExtractCommand(reply), nil
}
