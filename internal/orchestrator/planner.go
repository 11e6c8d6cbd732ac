package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/harrison/shellagent/internal/llm"
)

// Snapshot is what a planner sees before choosing the next step.
type Snapshot struct {
	Intent    string
	State     State
	Step      int
	Matches   int
	Command   string
	Executed  bool
	Succeeded bool
	Output    string
	Analyzed  bool
	Persisted bool
}

// Decision is a planner's choice of next capability.
type Decision struct {
	Capability Capability
	Reason     string
}

// Planner chooses the next capability for a request.
type Planner interface {
	Next(ctx context.Context, snap Snapshot) (Decision, error)
}

// Allowed returns the only capability permitted after snap.State.
func Allowed(snap Snapshot) Capability {
	switch snap.State {
	case StateIdle:
		return CapRetrieve
	case StateRetrieving:
		return CapSynthesize
	case StateSynthesizing:
		return CapExecute
	case StateExecuting:
		if snap.Succeeded {
			return CapPersist
		}
		return CapAnalyze
	default:
		return CapFinish
	}
}

// RulePlanner follows the fixed transition table.
type RulePlanner struct{}

func (RulePlanner) Next(_ context.Context, snap Snapshot) (Decision, error) {
	return Decision{Capability: Allowed(snap), Reason: "rule"}, nil
}

const decisionSchemaURL = "https://shellagent.local/schemas/decision.schema.json"

// DecisionSchema is the JSON schema an LLM decision must satisfy.
func DecisionSchema() string {
	names := make([]string, 0, len(capabilityNames))
	for _, c := range AllCapabilities() {
		names = append(names, fmt.Sprintf("%q", c))
	}
	return `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "capability": {"type": "string", "enum": [` + strings.Join(names, ", ") + `]},
    "reason": {"type": "string"}
  },
  "required": ["capability"],
  "additionalProperties": false
}`
}

// PlannerLogger receives planner diagnostics.
type PlannerLogger interface {
	LogDebug(message string)
	LogWarn(message string)
}

// LLMPlanner asks a model for each step. Replies that fail validation, name
// an unknown capability, or pick one the current state does not allow are
// replaced by the rule step. Only a failed model call is an error.
type LLMPlanner struct {
	client llm.Client
	schema *jsonschema.Schema
	rules  RulePlanner
	Logger PlannerLogger
}

// NewLLMPlanner compiles the decision schema.
func NewLLMPlanner(client llm.Client) (*LLMPlanner, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(decisionSchemaURL, strings.NewReader(DecisionSchema())); err != nil {
		return nil, fmt.Errorf("decision schema load failed: %w", err)
	}
	schema, err := c.Compile(decisionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("decision schema compile failed: %w", err)
	}
	return &LLMPlanner{client: client, schema: schema}, nil
}

func (p *LLMPlanner) Next(ctx context.Context, snap Snapshot) (Decision, error) {
	reply, err := p.client.Complete(ctx, llm.Request{
		System:    "You drive a shell assistant one step at a time. Pick the next capability.",
		Prompt:    p.prompt(snap),
		Schema:    DecisionSchema(),
		MaxTokens: 128,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("planner model call: %w", err)
	}

	d, err := p.parse(reply)
	if err != nil {
		p.warn(fmt.Sprintf("planner reply rejected, using rule step: %v", err))
		return p.rules.Next(ctx, snap)
	}
	if want := Allowed(snap); d.Capability != want {
		p.warn(fmt.Sprintf("planner chose %s from %s, using %s", d.Capability, snap.State, want))
		return p.rules.Next(ctx, snap)
	}
	p.debug(fmt.Sprintf("planner chose %s: %s", d.Capability, d.Reason))
	return d, nil
}

func (p *LLMPlanner) parse(reply string) (Decision, error) {
	raw := llm.ExtractJSON(reply)
	if raw == "" {
		return Decision{}, fmt.Errorf("no JSON object in reply")
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Decision{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return Decision{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var body struct {
		Capability string `json:"capability"`
		Reason     string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return Decision{}, err
	}
	c, ok := ParseCapability(body.Capability)
	if !ok {
		return Decision{}, fmt.Errorf("unknown capability %q", body.Capability)
	}
	return Decision{Capability: c, Reason: body.Reason}, nil
}

func (p *LLMPlanner) prompt(snap Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Request: %s\n", snap.Intent)
	fmt.Fprintf(&sb, "State: %s (step %d)\n", snap.State, snap.Step)
	fmt.Fprintf(&sb, "Similar commands found: %d\n", snap.Matches)
	if snap.State >= StateSynthesizing {
		fmt.Fprintf(&sb, "Command: %s\n", snap.Command)
	}
	if snap.Executed {
		fmt.Fprintf(&sb, "Execution succeeded: %t\n", snap.Succeeded)
	}
	sb.WriteString("\nCapabilities:\n")
	sb.WriteString("- retrieve: look up similar past commands\n")
	sb.WriteString("- synthesize: generate the shell command\n")
	sb.WriteString("- execute: run the command\n")
	sb.WriteString("- analyze: explain a failed run\n")
	sb.WriteString("- persist: store a successful run\n")
	sb.WriteString("- finish: return the result\n")
	return sb.String()
}

func (p *LLMPlanner) debug(msg string) {
	if p.Logger != nil {
		p.Logger.LogDebug(msg)
	}
}

func (p *LLMPlanner) warn(msg string) {
	if p.Logger != nil {
		p.Logger.LogWarn(msg)
	}
}
