// Package llm provides the text-generation clients used for command
// synthesis, error analysis and adaptive step selection.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderClaudeCLI = "claude-cli"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderEcho      = "echo"
)

// DefaultMaxTokens bounds a completion when the request sets no limit.
const DefaultMaxTokens = 1024

// Request is a single completion request.
type Request struct {
	// System is the system prompt. Optional.
	System string

	// Prompt is the user prompt (required).
	Prompt string

	// Schema is a JSON schema the reply must satisfy. Optional; backends
	// that cannot enforce it append it to the prompt instead.
	Schema string

	// MaxTokens caps the reply length. Zero means DefaultMaxTokens.
	MaxTokens int
}

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return DefaultMaxTokens
}

// promptWithSchema inlines the schema for backends without native support.
func (r Request) promptWithSchema() string {
	if r.Schema == "" {
		return r.Prompt
	}
	return r.Prompt + "\n\nRespond with a single JSON object matching this JSON schema, and nothing else:\n" + r.Schema
}

// Client completes prompts. Implementations are safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	ClaudePath        string
	Timeout           time.Duration
	RequestsPerMinute int
	EchoReply         string
}

// New builds the backend named by cfg.Provider, wrapped in a rate limiter
// when cfg.RequestsPerMinute is positive.
func New(cfg Config) (Client, error) {
	var (
		c   Client
		err error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderClaudeCLI:
		inv := NewClaudeCLI()
		if cfg.ClaudePath != "" {
			inv.ClaudePath = cfg.ClaudePath
		}
		inv.Model = cfg.Model
		inv.Timeout = cfg.Timeout
		c = inv
	case ProviderAnthropic:
		c, err = NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case ProviderOpenAI:
		c, err = NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case ProviderEcho:
		c = NewEcho(cfg.EchoReply)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (use claude-cli, anthropic, openai or echo)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerMinute > 0 {
		c = NewRateLimited(c, cfg.RequestsPerMinute)
	}
	return c, nil
}
