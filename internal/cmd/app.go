package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/shellagent/internal/config"
	"github.com/harrison/shellagent/internal/display"
	"github.com/harrison/shellagent/internal/executor"
	"github.com/harrison/shellagent/internal/generator"
	"github.com/harrison/shellagent/internal/llm"
	"github.com/harrison/shellagent/internal/logger"
	"github.com/harrison/shellagent/internal/memory"
	"github.com/harrison/shellagent/internal/orchestrator"
	"github.com/harrison/shellagent/internal/similarity"
	"github.com/harrison/shellagent/internal/telemetry"
)

// shutdownTimeout bounds the telemetry flush on exit.
const shutdownTimeout = 5 * time.Second

// newLLMClient is replaced in tests.
var newLLMClient = llm.New

// globalOptions holds the persistent root flags.
type globalOptions struct {
	configPath string
	home       string
	logLevel   string
	mode       string
	provider   string
	model      string
}

// loadConfig resolves home, reads the config file and applies flags.
func loadConfig(opts *globalOptions) (cfg *config.Config, home, path string, err error) {
	home, err = config.GetHome(opts.home)
	if err != nil {
		return nil, "", "", err
	}

	path = opts.configPath
	if path == "" {
		path = config.PathIn(home)
	}

	cfg, err = config.LoadConfig(path)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.MergeWithFlags(opts.provider, opts.model, opts.mode, opts.logLevel)
	cfg.ResolvePaths(home)
	if err := cfg.Validate(); err != nil {
		return nil, "", "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, home, path, nil
}

// app is the wired runtime behind every command that touches memory.
type app struct {
	cfg  *config.Config
	home string

	out    io.Writer
	errOut io.Writer

	log       logger.Logger
	fileLog   *logger.FileLogger
	telemetry *telemetry.Providers
	store     *memory.Store
	orch      *orchestrator.Orchestrator
}

// openApp loads configuration and opens logging, telemetry and memory.
// The orchestrator is built on first use so commands that only read
// memory never need model credentials.
func openApp(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, home, _, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		home:   home,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}

	console := logger.NewConsoleLogger(a.errOut, cfg.Log.Level)
	if cfg.Log.File {
		fl, err := logger.NewFileLogger(cfg.Log.Dir, cfg.Log.Level)
		if err != nil {
			display.Warning{
				Title:      "File logging disabled",
				Message:    err.Error(),
				Suggestion: "Check permissions on " + cfg.Log.Dir + " or set log.file: false",
			}.Display(a.errOut)
		} else {
			a.fileLog = fl
		}
	}
	if a.fileLog != nil {
		a.log = logger.NewMultiLogger(console, a.fileLog)
	} else {
		a.log = console
	}

	a.telemetry, err = telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	embedder, err := similarity.NewEmbedder(ctx, similarity.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Endpoint:   cfg.Embedding.Endpoint,
		APIKey:     embeddingKey(cfg),
		Dimensions: cfg.Embedding.Dimensions,
		TaskType:   cfg.Embedding.TaskType,
	})
	if err != nil {
		display.Warning{
			Title:      "Embedding provider unavailable",
			Message:    err.Error(),
			Suggestion: "Falling back to the offline hash embedder; past matches from other embedders are ignored",
		}.Display(a.errOut)
		embedder = similarity.NewHashEmbedder(cfg.Embedding.Dimensions)
	}

	a.store, err = memory.Open(ctx, memory.Options{
		Dir:          cfg.Memory.Dir,
		Embedder:     embedder,
		Logger:       a.log,
		ChunkSize:    cfg.Memory.ChunkSize,
		ChunkOverlap: cfg.Memory.ChunkOverlap,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open memory: %w", err)
	}

	a.log.LogDebug(fmt.Sprintf("memory at %s (embedder %s)", a.store.Path(), embedder.Name()))
	return a, nil
}

func embeddingKey(cfg *config.Config) string {
	switch cfg.Embedding.Provider {
	case similarity.ProviderGenAI:
		return cfg.Credentials.GeminiAPIKey
	case similarity.ProviderOpenAI:
		return cfg.Credentials.OpenAIAPIKey
	default:
		return ""
	}
}

func llmKey(cfg *config.Config) string {
	switch cfg.LLM.Provider {
	case llm.ProviderAnthropic:
		return cfg.Credentials.AnthropicAPIKey
	case llm.ProviderOpenAI:
		return cfg.Credentials.OpenAIAPIKey
	default:
		return ""
	}
}

// orchestrator wires the model, executor and planner on first call.
func (a *app) orchestrator() (*orchestrator.Orchestrator, error) {
	if a.orch != nil {
		return a.orch, nil
	}
	cfg := a.cfg

	client, err := newLLMClient(llm.Config{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		APIKey:            llmKey(cfg),
		BaseURL:           cfg.LLM.BaseURL,
		ClaudePath:        cfg.LLM.ClaudePath,
		Timeout:           cfg.LLM.Timeout.Std(),
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	synth := generator.NewCommandGenerator(client)
	analyzer := generator.NewErrorAnalyzer(client)
	analyzer.MaxTokens = cfg.LLM.MaxTokens

	engine := executor.NewEngine()
	engine.DefaultTimeout = cfg.Execution.Timeout.Std()
	engine.MaxOutputBytes = cfg.Execution.MaxOutputBytes
	engine.WorkDir = cfg.Execution.WorkDir
	engine.Logger = a.log

	var planner orchestrator.Planner
	if cfg.Orchestrator.Planner == "llm" {
		p, err := orchestrator.NewLLMPlanner(client)
		if err != nil {
			return nil, fmt.Errorf("failed to create planner: %w", err)
		}
		p.Logger = a.log
		planner = p
	}

	a.orch, err = orchestrator.New(a.store, synth, analyzer, engine, planner, a.log, orchestrator.Config{
		Mode:           cfg.Orchestrator.Mode,
		K:              cfg.Memory.K,
		MaxSteps:       cfg.Orchestrator.MaxSteps,
		ExecTimeout:    cfg.Execution.Timeout.Std(),
		TracerProvider: a.telemetry.TracerProvider,
		MeterProvider:  a.telemetry.MeterProvider,
	})
	if err != nil {
		return nil, err
	}

	a.log.LogDebug(fmt.Sprintf("orchestrator ready: mode=%s planner=%s model=%s",
		cfg.Orchestrator.Mode, cfg.Orchestrator.Planner, client.Name()))
	return a.orch, nil
}

// close releases everything openApp acquired. Safe on a partial app.
func (a *app) close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, a.telemetry.Shutdown(ctx))
		cancel()
	}
	if a.fileLog != nil {
		errs = append(errs, a.fileLog.Close())
	}
	return errors.Join(errs...)
}
