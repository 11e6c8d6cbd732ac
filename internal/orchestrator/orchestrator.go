// Package orchestrator drives a request from intent to structured result:
// retrieve similar past commands, synthesize a command, execute it, then
// persist a success or analyze a failure.
//
// In adaptive mode a Planner picks each step. Any fault of the loop itself
// hands the request to a fixed sequence that reuses the work already done,
// so a command never runs twice for one request.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/harrison/shellagent/internal/extract"
	"github.com/harrison/shellagent/internal/models"
)

// Modes accepted by Config.Mode.
const (
	ModeAdaptive      = "adaptive"
	ModeDeterministic = "deterministic"
)

const (
	DefaultK        = 3
	DefaultMaxSteps = 12
)

// Memory is the semantic memory the loop reads and writes.
type Memory interface {
	Query(ctx context.Context, intent string, k int) ([]models.SimilarityMatch, error)
	Persist(ctx context.Context, rec models.CommandRecord) error
}

// Synthesizer turns an intent into a command.
type Synthesizer interface {
	Synthesize(ctx context.Context, intent string, matches []models.SimilarityMatch) (string, error)
}

// Analyzer explains a failed execution.
type Analyzer interface {
	Analyze(ctx context.Context, intent, command, errorOutput string) (string, error)
}

// Executor runs a command.
type Executor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) models.ExecutionResult
}

// Logger receives orchestration progress.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// Config tunes the loop.
type Config struct {
	Mode        string
	K           int
	MaxSteps    int
	ExecTimeout time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Outcome is what the adaptive loop produces. A non-nil Fault means Result
// is incomplete and the fallback must finish the request.
type Outcome struct {
	Result models.StructuredResult
	Fault  *MechanismFault
}

// Orchestrator handles intents. Safe for concurrent use when its
// collaborators are.
type Orchestrator struct {
	memory      Memory
	synthesizer Synthesizer
	analyzer    Analyzer
	executor    Executor
	planner     Planner
	logger      Logger
	cfg         Config
	inst        *instruments
}

// New creates an Orchestrator. planner may be nil, in which case the rule
// table is used; logger may be nil.
func New(mem Memory, synth Synthesizer, analyzer Analyzer, exec Executor, planner Planner, logger Logger, cfg Config) (*Orchestrator, error) {
	if mem == nil || synth == nil || analyzer == nil || exec == nil {
		return nil, fmt.Errorf("memory, synthesizer, analyzer and executor are required")
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeAdaptive
	case ModeAdaptive, ModeDeterministic:
	default:
		return nil, fmt.Errorf("unknown orchestrator mode %q (use adaptive or deterministic)", cfg.Mode)
	}
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if planner == nil {
		planner = RulePlanner{}
	}

	inst, err := newInstruments(cfg.TracerProvider, cfg.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	return &Orchestrator{
		memory:      mem,
		synthesizer: synth,
		analyzer:    analyzer,
		executor:    exec,
		planner:     planner,
		logger:      logger,
		cfg:         cfg,
		inst:        inst,
	}, nil
}

// Mode reports the configured mode.
func (o *Orchestrator) Mode() string { return o.cfg.Mode }

// run is the mutable progress of one request.
type run struct {
	id     string
	intent string
	state  State
	steps  int
	trace  models.OrchestrationTrace

	retrieved bool
	matches   []models.SimilarityMatch

	synthesized bool
	command     string

	attempted bool
	execution *models.ExecutionResult

	analyzed  bool
	persisted bool
}

func (r *run) snapshot() Snapshot {
	s := Snapshot{
		Intent:    r.intent,
		State:     r.state,
		Step:      r.steps,
		Matches:   len(r.matches),
		Command:   r.command,
		Analyzed:  r.analyzed,
		Persisted: r.persisted,
	}
	if r.execution != nil {
		s.Executed = true
		s.Succeeded = r.execution.Succeeded
		s.Output = r.execution.Output
	}
	return s
}

func (r *run) result() models.StructuredResult {
	res := extract.Extract(r.trace)
	res.RunID = r.id
	res.SimilarMatches = r.matches
	return res.Normalize()
}

// Handle processes one intent. It never panics and always returns a result.
func (o *Orchestrator) Handle(ctx context.Context, intent string) (res models.StructuredResult) {
	r := &run{id: uuid.NewString(), intent: intent}
	r.trace.RunID = r.id

	ctx, span := o.inst.tracer.Start(ctx, "shellagent.handle", trace.WithAttributes(
		attribute.String("shellagent.run_id", r.id),
		attribute.String("shellagent.mode", o.cfg.Mode),
	))
	defer span.End()
	o.inst.requests.Add(ctx, 1)

	defer func() {
		if p := recover(); p != nil {
			o.logError(fmt.Sprintf("run %s: internal error: %v\n%s", r.id, p, debug.Stack()))
			span.SetStatus(codes.Error, "panic")
			res = models.StructuredResult{
				RunID:          r.id,
				Succeeded:      false,
				Output:         fmt.Sprintf("internal error: %v", p),
				Command:        r.command,
				SimilarMatches: r.matches,
			}.Normalize()
		}
	}()

	o.logInfo(fmt.Sprintf("run %s: handling %q", r.id, intent))

	if o.cfg.Mode == ModeDeterministic {
		res = o.complete(ctx, r)
	} else {
		out := o.adapt(ctx, r)
		res = out.Result
		if out.Fault != nil {
			o.logWarn(fmt.Sprintf("run %s: %v; finishing with fallback", r.id, out.Fault))
			span.RecordError(out.Fault)
			o.inst.fallbacks.Add(ctx, 1)
			res = o.complete(ctx, r)
			res.Fallback = true
		}
	}

	span.SetAttributes(
		attribute.String("shellagent.command", res.Command),
		attribute.Bool("shellagent.succeeded", res.Succeeded),
		attribute.Bool("shellagent.fallback", res.Fallback),
	)
	if !res.Succeeded {
		span.SetStatus(codes.Error, "command failed")
	}
	return res
}

// adapt runs the planner-driven loop until Finish or a mechanism fault.
func (o *Orchestrator) adapt(ctx context.Context, r *run) Outcome {
	for {
		if r.steps >= o.cfg.MaxSteps {
			return o.fault(r, newFault(r.state, fmt.Sprintf("exceeded %d steps", o.cfg.MaxSteps), nil))
		}
		r.steps++

		d, fault := o.decide(ctx, r)
		if fault != nil {
			return o.fault(r, fault)
		}
		if want := Allowed(r.snapshot()); d.Capability != want {
			return o.fault(r, newFault(r.state,
				fmt.Sprintf("capability %s not allowed, expected %s", d.Capability, want), nil))
		}

		if d.Capability == CapFinish {
			r.state = StateDone
			return Outcome{Result: r.result()}
		}
		if fault := o.performGuarded(ctx, r, d.Capability); fault != nil {
			return o.fault(r, fault)
		}
	}
}

// performGuarded turns a collaborator panic into a fault. perform marks a
// step done before calling out, so the fallback will not repeat it.
func (o *Orchestrator) performGuarded(ctx context.Context, r *run, c Capability) (fault *MechanismFault) {
	defer func() {
		if p := recover(); p != nil {
			fault = newFault(r.state, c.String()+" panicked", fmt.Errorf("%v", p))
		}
	}()
	o.perform(ctx, r, c)
	return nil
}

// decide asks the planner, converting errors and panics into faults.
func (o *Orchestrator) decide(ctx context.Context, r *run) (d Decision, fault *MechanismFault) {
	defer func() {
		if p := recover(); p != nil {
			fault = newFault(r.state, "planner panicked", fmt.Errorf("%v", p))
		}
	}()

	d, err := o.planner.Next(ctx, r.snapshot())
	if err != nil {
		return Decision{}, newFault(r.state, "planner failed", err)
	}
	o.logDebug(fmt.Sprintf("run %s: step %d %s -> %s (%s)", r.id, r.steps, r.state, d.Capability, d.Reason))
	return d, nil
}

func (o *Orchestrator) fault(r *run, f *MechanismFault) Outcome {
	r.state = StateFailed
	return Outcome{Result: r.result(), Fault: f}
}

// complete finishes r with the fixed sequence, skipping whatever is done.
func (o *Orchestrator) complete(ctx context.Context, r *run) models.StructuredResult {
	if !r.retrieved {
		o.perform(ctx, r, CapRetrieve)
	}
	if !r.synthesized && !r.attempted {
		o.perform(ctx, r, CapSynthesize)
	}
	if !r.attempted {
		o.perform(ctx, r, CapExecute)
	} else if r.execution == nil {
		// The executor was entered but never returned.
		aborted := models.ExecutionResult{Output: "execution aborted", Kind: models.FailureSpawn, ExitCode: -1}
		r.execution = &aborted
		r.trace.Record(models.ToolExecute, ExecuteInput{Command: r.command}, aborted)
	}
	if r.execution.Succeeded {
		if !r.persisted {
			o.perform(ctx, r, CapPersist)
		}
	} else if !r.analyzed {
		o.perform(ctx, r, CapAnalyze)
	}
	r.state = StateDone
	return r.result()
}

// perform runs one capability and records it in the trace.
func (o *Orchestrator) perform(ctx context.Context, r *run, c Capability) {
	ctx, span := o.inst.tracer.Start(ctx, "shellagent."+c.String())
	defer span.End()

	switch c {
	case CapRetrieve:
		r.state = StateRetrieving
		r.retrieved = true
		r.matches = []models.SimilarityMatch{}
		in := RetrieveInput{Intent: r.intent, K: o.cfg.K}
		matches, err := o.memory.Query(ctx, r.intent, o.cfg.K)
		if err != nil {
			o.logWarn(fmt.Sprintf("run %s: retrieval failed, continuing without matches: %v", r.id, err))
			span.RecordError(err)
			matches = nil
		}
		if matches == nil {
			matches = []models.SimilarityMatch{}
		}
		r.matches = matches
		span.SetAttributes(attribute.Int("shellagent.matches", len(matches)))
		r.trace.Record(models.ToolRetrieve, in, RetrieveOutput{Matches: matches})

	case CapSynthesize:
		r.state = StateSynthesizing
		r.synthesized = true
		cmd, err := o.synthesizer.Synthesize(ctx, r.intent, r.matches)
		if err != nil {
			o.logWarn(fmt.Sprintf("run %s: synthesis failed: %v", r.id, err))
			span.RecordError(err)
			cmd = ""
		}
		r.command = cmd
		r.trace.Record(models.ToolSynthesize, SynthesizeInput{Intent: r.intent, Matches: len(r.matches)}, SynthesizeOutput{Command: cmd})

	case CapExecute:
		r.state = StateExecuting
		r.attempted = true
		o.logInfo(fmt.Sprintf("run %s: executing %q", r.id, r.command))
		result := o.executor.Execute(ctx, r.command, o.cfg.ExecTimeout)
		r.execution = &result
		o.inst.recordExecution(ctx, result.Succeeded, result.Duration)
		span.SetAttributes(
			attribute.Bool("shellagent.succeeded", result.Succeeded),
			attribute.String("shellagent.failure_kind", result.Kind.String()),
		)
		r.trace.Record(models.ToolExecute, ExecuteInput{Command: r.command}, result)

	case CapAnalyze:
		r.state = StateAnalyzing
		r.analyzed = true
		in := AnalyzeInput{Intent: r.intent, Command: r.command, Output: r.execution.Output}
		analysis, err := o.analyzer.Analyze(ctx, in.Intent, in.Command, in.Output)
		if err != nil {
			o.logWarn(fmt.Sprintf("run %s: analysis failed: %v", r.id, err))
			span.RecordError(err)
			analysis = ""
		}
		r.trace.Record(models.ToolAnalyze, in, analysis)

	case CapPersist:
		r.state = StatePersisting
		r.persisted = true
		rec := models.NewCommandRecord(r.intent, r.command, *r.execution)
		out := PersistOutput{Stored: true}
		if err := o.memory.Persist(ctx, rec); err != nil {
			o.logWarn(fmt.Sprintf("run %s: persist failed: %v", r.id, err))
			span.RecordError(err)
			out = PersistOutput{Error: err.Error()}
		}
		r.trace.Record(models.ToolPersist, PersistInput{Record: rec}, out)
	}
}

func (o *Orchestrator) logDebug(msg string) {
	if o.logger != nil {
		o.logger.LogDebug(msg)
	}
}

func (o *Orchestrator) logInfo(msg string) {
	if o.logger != nil {
		o.logger.LogInfo(msg)
	}
}

func (o *Orchestrator) logWarn(msg string) {
	if o.logger != nil {
		o.logger.LogWarn(msg)
	}
}

func (o *Orchestrator) logError(msg string) {
	if o.logger != nil {
		o.logger.LogError(msg)
	}
}
