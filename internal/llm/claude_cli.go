package llm

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// DefaultSystemPrompt is used when a request carries no system prompt.
const DefaultSystemPrompt = "You are a precise shell assistant. Answer with exactly what was asked for and nothing else."

// ClaudeCLI completes prompts by running the claude CLI in print mode.
// Create once, use many times; safe for concurrent use.
type ClaudeCLI struct {
	// ClaudePath is the CLI binary. Defaults to "claude" on PATH.
	ClaudePath string

	// Model is passed with --model when set.
	Model string

	// Timeout bounds each invocation when positive.
	Timeout time.Duration
}

// NewClaudeCLI returns a ClaudeCLI with default settings.
func NewClaudeCLI() *ClaudeCLI {
	return &ClaudeCLI{ClaudePath: "claude"}
}

func (c *ClaudeCLI) Name() string {
	if c.Model != "" {
		return "claude-cli:" + c.Model
	}
	return "claude-cli"
}

// Args builds the CLI arguments for req.
func (c *ClaudeCLI) Args(req Request) ([]string, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	system := req.System
	if system == "" {
		system = DefaultSystemPrompt
	}

	args := []string{"--system-prompt", system, "-p", req.Prompt}
	if req.Schema != "" {
		args = append(args, "--json-schema", req.Schema)
	}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	args = append(args, "--output-format", "json")
	// Hooks in the user's settings must not run for automated calls.
	args = append(args, "--settings", `{"disableAllHooks": true}`)
	return args, nil
}

// Complete runs the CLI and returns the reply text. With a schema the
// reply is the structured JSON object.
func (c *ClaudeCLI) Complete(ctx context.Context, req Request) (string, error) {
	args, err := c.Args(req)
	if err != nil {
		return "", err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	path := c.ClaudePath
	if path == "" {
		path = "claude"
	}

	cmd := exec.CommandContext(ctx, path, args...)
	SetCleanEnv(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("claude invocation failed: %w (output: %s)", err, truncate(string(output), 500))
	}

	content, _, err := ParseResponse(output)
	if err != nil {
		return "", fmt.Errorf("failed to parse claude output: %w", err)
	}
	if content == "" {
		return "", fmt.Errorf("empty response from claude")
	}
	return content, nil
}
