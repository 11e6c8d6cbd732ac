package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/harrison/shellagent/internal/filelock"
)

// EnvPrefix prefixes every environment override, e.g. SHELLAGENT_LLM_PROVIDER.
const EnvPrefix = "SHELLAGENT_"

// Duration is a time.Duration written as "30s" in YAML and env values.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// LLMConfig selects the text-generation backend.
type LLMConfig struct {
	// Provider is one of claude-cli, anthropic, openai, echo
	Provider string `yaml:"provider" env:"PROVIDER"`

	// Model overrides the backend's default model
	Model string `yaml:"model,omitempty" env:"MODEL"`

	// ClaudePath is the claude binary used by the claude-cli provider
	ClaudePath string `yaml:"claude_path,omitempty" env:"CLAUDE_PATH"`

	// BaseURL points the API providers at a compatible server
	BaseURL string `yaml:"base_url,omitempty" env:"BASE_URL"`

	// Timeout bounds each model call
	Timeout Duration `yaml:"timeout" env:"TIMEOUT"`

	// MaxTokens caps each completion
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`

	// RequestsPerMinute throttles model calls (0 = unlimited)
	RequestsPerMinute int `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
}

// EmbeddingConfig selects the embedder behind semantic memory.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" env:"PROVIDER"`
	Model      string `yaml:"model,omitempty" env:"MODEL"`
	Endpoint   string `yaml:"endpoint,omitempty" env:"ENDPOINT"`
	Dimensions int    `yaml:"dimensions" env:"DIMENSIONS"`
	TaskType   string `yaml:"task_type,omitempty" env:"TASK_TYPE"`
}

// MemoryConfig configures the semantic memory store.
type MemoryConfig struct {
	// Dir holds memory.db; empty means <home>/memory
	Dir string `yaml:"dir,omitempty" env:"DIR"`

	ChunkSize    int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap int `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`

	// K is how many similar commands a request retrieves
	K int `yaml:"k" env:"K"`
}

// ExecutionConfig bounds command execution.
type ExecutionConfig struct {
	Timeout        Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxOutputBytes int      `yaml:"max_output_bytes" env:"MAX_OUTPUT_BYTES"`
	WorkDir        string   `yaml:"work_dir,omitempty" env:"WORK_DIR"`
}

// OrchestratorConfig selects how steps are chosen.
type OrchestratorConfig struct {
	// Mode is adaptive or deterministic
	Mode string `yaml:"mode" env:"MODE"`

	// Planner is rule or llm (adaptive mode only)
	Planner string `yaml:"planner" env:"PLANNER"`

	MaxSteps int `yaml:"max_steps" env:"MAX_STEPS"`
}

// LogConfig controls console and file logging.
type LogConfig struct {
	// Level sets the logging verbosity (trace, debug, info, warn, error)
	Level string `yaml:"level" env:"LEVEL"`

	// Dir is where run logs are written; empty means <home>/logs
	Dir string `yaml:"dir,omitempty" env:"DIR"`

	// File enables JSON run logs
	File bool `yaml:"file" env:"FILE"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	Insecure    bool   `yaml:"insecure,omitempty" env:"INSECURE"`
}

// Credentials come from the environment only and are never saved.
type Credentials struct {
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
}

// Config represents shellagent configuration options
type Config struct {
	LLM          LLMConfig          `yaml:"llm" envPrefix:"LLM_"`
	Embedding    EmbeddingConfig    `yaml:"embedding" envPrefix:"EMBEDDING_"`
	Memory       MemoryConfig       `yaml:"memory" envPrefix:"MEMORY_"`
	Execution    ExecutionConfig    `yaml:"execution" envPrefix:"EXECUTION_"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" envPrefix:"ORCHESTRATOR_"`
	Log          LogConfig          `yaml:"log" envPrefix:"LOG_"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" envPrefix:"TELEMETRY_"`

	Credentials Credentials `yaml:"-"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "claude-cli",
			Timeout:   Duration(2 * time.Minute),
			MaxTokens: 1024,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: 256,
		},
		Memory: MemoryConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			K:            3,
		},
		Execution: ExecutionConfig{
			Timeout:        Duration(30 * time.Second),
			MaxOutputBytes: 1 << 20,
		},
		Orchestrator: OrchestratorConfig{
			Mode:     "adaptive",
			Planner:  "rule",
			MaxSteps: 12,
		},
		Log: LogConfig{
			Level: "info",
			File:  true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "shellagent",
		},
	}
}

// LoadConfig loads configuration from the specified file path and applies
// environment overrides.
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// Keys absent from the file keep their defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SHELLAGENT_* variables and reads API keys.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := env.Parse(&c.Credentials); err != nil {
		return fmt.Errorf("failed to parse credentials: %w", err)
	}
	return nil
}

// MergeWithFlags merges CLI flags into the configuration
// Non-empty flag values override configuration values
func (c *Config) MergeWithFlags(provider, model, mode, logLevel string) {
	if provider != "" {
		c.LLM.Provider = provider
	}
	if model != "" {
		c.LLM.Model = model
	}
	if mode != "" {
		c.Orchestrator.Mode = mode
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
}

// ResolvePaths fills directory defaults relative to home.
func (c *Config) ResolvePaths(home string) {
	if c.Memory.Dir == "" {
		c.Memory.Dir = filepath.Join(home, "memory")
	}
	if c.Log.Dir == "" {
		c.Log.Dir = filepath.Join(home, "logs")
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if !oneOf(c.LLM.Provider, "claude-cli", "anthropic", "openai", "echo") {
		return fmt.Errorf("invalid llm.provider %q, must be one of: claude-cli, anthropic, openai, echo", c.LLM.Provider)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must be >= 0, got %v", c.LLM.Timeout)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be > 0, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must be >= 0, got %d", c.LLM.RequestsPerMinute)
	}

	if !oneOf(c.Embedding.Provider, "hash", "ollama", "genai", "openai") {
		return fmt.Errorf("invalid embedding.provider %q, must be one of: hash, ollama, genai, openai", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be >= 0, got %d", c.Embedding.Dimensions)
	}

	if c.Memory.ChunkSize <= 0 {
		return fmt.Errorf("memory.chunk_size must be > 0, got %d", c.Memory.ChunkSize)
	}
	if c.Memory.ChunkOverlap < 0 || c.Memory.ChunkOverlap >= c.Memory.ChunkSize {
		return fmt.Errorf("memory.chunk_overlap must be in [0, chunk_size), got %d", c.Memory.ChunkOverlap)
	}
	if c.Memory.K <= 0 {
		return fmt.Errorf("memory.k must be > 0, got %d", c.Memory.K)
	}

	if c.Execution.Timeout <= 0 {
		return fmt.Errorf("execution.timeout must be > 0, got %v", c.Execution.Timeout)
	}
	if c.Execution.MaxOutputBytes <= 0 {
		return fmt.Errorf("execution.max_output_bytes must be > 0, got %d", c.Execution.MaxOutputBytes)
	}

	if !oneOf(c.Orchestrator.Mode, "adaptive", "deterministic") {
		return fmt.Errorf("invalid orchestrator.mode %q, must be one of: adaptive, deterministic", c.Orchestrator.Mode)
	}
	if !oneOf(c.Orchestrator.Planner, "rule", "llm") {
		return fmt.Errorf("invalid orchestrator.planner %q, must be one of: rule, llm", c.Orchestrator.Planner)
	}
	if c.Orchestrator.MaxSteps <= 0 {
		return fmt.Errorf("orchestrator.max_steps must be > 0, got %d", c.Orchestrator.MaxSteps)
	}

	if !oneOf(c.Log.Level, "trace", "debug", "info", "warn", "error") {
		return fmt.Errorf("invalid log.level %q, must be one of: trace, debug, info, warn, error", c.Log.Level)
	}

	return nil
}

// Save writes the configuration as YAML under a file lock. Credentials are
// never written.
func (c *Config) Save(ctx context.Context, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return filelock.LockAndWrite(ctx, path, data, 0644)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
