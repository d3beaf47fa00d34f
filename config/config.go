package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/promptmesh/engine"
	"github.com/hupe1980/promptmesh/memory"
	"github.com/hupe1980/promptmesh/retry"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	FetcherHTTP   = "http"
	FetcherRod    = "rod"
)

var (
	// ValidProviders lists the supported model providers.
	ValidProviders = []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderMock}

	// ErrNoAgents is returned by Validate when no agent is configured.
	ErrNoAgents = errors.New("no agents configured")
)

// Config holds the configuration of a mesh.
type Config struct {
	Agents     []AgentConfig    `yaml:"agents"`
	Retry      RetryConfig      `yaml:"retry"`
	Search     SearchConfig     `yaml:"search"`
	Memory     MemoryConfig     `yaml:"memory"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Chains     ChainsConfig     `yaml:"chains"`
	Templates  TemplatesConfig  `yaml:"templates"`
	Logging    LoggingConfig    `yaml:"logging"`
	Pool       PoolConfig       `yaml:"pool"`
}

// AgentConfig configures one agent.
type AgentConfig struct {
	Name     string            `yaml:"name"`
	Provider ProviderConfig    `yaml:"provider"`
	Settings map[string]string `yaml:"settings,omitempty"`
	// ToolTimeout bounds one command execution.
	ToolTimeout time.Duration `yaml:"tool_timeout,omitempty"`
}

// ProviderConfig selects and configures the model behind an agent.
type ProviderConfig struct {
	Name          string  `yaml:"name"` // openai, anthropic, gemini, mock
	Model         string  `yaml:"model"`
	APIKey        string  `yaml:"api_key,omitempty"`
	BaseURL       string  `yaml:"base_url,omitempty"`
	Temperature   float64 `yaml:"temperature,omitempty"`
	MaxTokens     int64   `yaml:"max_tokens,omitempty"`
	ContextWindow int     `yaml:"context_window,omitempty"`
	Stream        bool    `yaml:"stream,omitempty"`
	Instructions  string  `yaml:"instructions,omitempty"`
}

// RetryConfig configures the provider failure budget.
type RetryConfig struct {
	MaxFailures int           `yaml:"max_failures"`
	Backoff     time.Duration `yaml:"backoff"`
}

// SearchConfig configures the SearXNG collaborator.
type SearchConfig struct {
	InstanceURL string        `yaml:"instance_url,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
}

// MemoryConfig configures agent memories and page fetching.
type MemoryConfig struct {
	Backend       string      `yaml:"backend"` // memory, redis
	Redis         RedisConfig `yaml:"redis"`
	ChunkWords    int         `yaml:"chunk_words"`
	Fetcher       string      `yaml:"fetcher"` // http, rod
	RodControlURL string      `yaml:"rod_control_url,omitempty"`
}

// RedisConfig configures the Redis memory backend.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// TranscriptConfig configures the transcript log.
type TranscriptConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite
	Path    string `yaml:"path,omitempty"`
}

// ChainsConfig configures chain storage and the known chains.
type ChainsConfig struct {
	Root        string                 `yaml:"root"`
	Definitions map[string]ChainConfig `yaml:"definitions,omitempty"`
}

// ChainConfig is one named chain.
type ChainConfig struct {
	Agent string        `yaml:"agent"`
	Steps []engine.Step `yaml:"steps"`
}

// TemplatesConfig configures the template store. An empty Root uses the
// embedded defaults only.
type TemplatesConfig struct {
	Root  string `yaml:"root,omitempty"`
	Watch bool   `yaml:"watch,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json, zap
}

// PoolConfig configures the per agent engine pools.
type PoolConfig struct {
	Size int64 `yaml:"size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Retry: RetryConfig{
			MaxFailures: retry.DefaultMaxFailures,
			Backoff:     retry.DefaultBackoff,
		},
		Search: SearchConfig{
			Timeout: 30 * time.Second,
		},
		Memory: MemoryConfig{
			Backend:    BackendMemory,
			ChunkWords: memory.DefaultChunkWords,
			Fetcher:    FetcherHTTP,
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "promptmesh:memory",
			},
		},
		Transcript: TranscriptConfig{
			Backend: BackendMemory,
		},
		Chains: ChainsConfig{
			Root: "chains",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Pool: PoolConfig{
			Size: engine.DefaultPoolSize,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides fills missing API keys of agents from the environment
// of their provider.
func (c *Config) applyEnvOverrides() {
	keys := map[string]string{
		ProviderOpenAI:    os.Getenv("OPENAI_API_KEY"),
		ProviderAnthropic: os.Getenv("ANTHROPIC_API_KEY"),
		ProviderGemini:    os.Getenv("GEMINI_API_KEY"),
	}

	for i := range c.Agents {
		p := &c.Agents[i].Provider
		if p.APIKey == "" {
			p.APIKey = keys[p.Name]
		}
	}

	if u := os.Getenv("SEARXNG_INSTANCE_URL"); u != "" {
		c.Search.InstanceURL = u
	}
}

// Agent returns the configuration of the named agent.
func (c *Config) Agent(name string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}

	return AgentConfig{}, false
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return ErrNoAgents
	}

	seen := make(map[string]bool, len(c.Agents))

	for _, a := range c.Agents {
		if a.Name == "" {
			return errors.New("agent without name")
		}

		if seen[a.Name] {
			return fmt.Errorf("duplicate agent: %s", a.Name)
		}

		seen[a.Name] = true

		if !slices.Contains(ValidProviders, a.Provider.Name) {
			return fmt.Errorf("agent %s: invalid provider: %s (valid: %v)", a.Name, a.Provider.Name, ValidProviders)
		}

		if a.Provider.Name != ProviderMock && a.Provider.APIKey == "" && a.Provider.BaseURL == "" {
			return fmt.Errorf("agent %s: %s API key not configured", a.Name, a.Provider.Name)
		}
	}

	switch c.Memory.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("invalid memory backend: %s", c.Memory.Backend)
	}

	switch c.Memory.Fetcher {
	case FetcherHTTP, FetcherRod:
	default:
		return fmt.Errorf("invalid page fetcher: %s", c.Memory.Fetcher)
	}

	switch c.Transcript.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Transcript.Path == "" {
			return errors.New("sqlite transcript requires a path")
		}
	default:
		return fmt.Errorf("invalid transcript backend: %s", c.Transcript.Backend)
	}

	for name, chain := range c.Chains.Definitions {
		if !seen[chain.Agent] {
			return fmt.Errorf("chain %s: unknown agent: %s", name, chain.Agent)
		}
	}

	if c.Retry.MaxFailures < 1 {
		return errors.New("retry.max_failures must be positive")
	}

	return nil
}
