package promptmesh

import (
	"context"
	"fmt"
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/promptmesh/agent"
	"github.com/hupe1980/promptmesh/browse"
	"github.com/hupe1980/promptmesh/browse/rod"
	"github.com/hupe1980/promptmesh/chain"
	"github.com/hupe1980/promptmesh/config"
	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/engine"
	"github.com/hupe1980/promptmesh/logging"
	"github.com/hupe1980/promptmesh/memory"
	"github.com/hupe1980/promptmesh/memory/redis"
	"github.com/hupe1980/promptmesh/model"
	"github.com/hupe1980/promptmesh/model/anthropic"
	"github.com/hupe1980/promptmesh/model/gemini"
	"github.com/hupe1980/promptmesh/model/openai"
	"github.com/hupe1980/promptmesh/search"
	"github.com/hupe1980/promptmesh/templates"
	"github.com/hupe1980/promptmesh/transcript"
	"github.com/hupe1980/promptmesh/transcript/sqlite"
)

// NewLogger builds the logger described by cfg.
func NewLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	level := logging.ParseLevel(cfg.Level)

	if cfg.Format == "zap" {
		z, err := logging.NewZapLogger(level)
		if err != nil {
			return nil, err
		}
		return z, nil
	}

	return logging.NewSlogLogger(level, cfg.Format, false).WithComponent("promptmesh"), nil
}

// NewFromConfig creates a Mesh from a validated configuration. Resources
// opened here (browser, Redis, SQLite) are released by Mesh.Close.
func NewFromConfig(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Mesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	var closers []io.Closer

	fail := func(err error) (*Mesh, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	var tmpl core.TemplateStore = templates.Defaults()
	if cfg.Templates.Root != "" {
		tmpl = templates.NewFileStore(cfg.Templates.Root, func(o *templates.FileOptions) { o.Logger = logger })
	}

	steps, err := chain.NewStore(cfg.Chains.Root, func(o *chain.Options) { o.Logger = logger })
	if err != nil {
		return nil, err
	}

	var fetcher core.PageFetcher
	switch cfg.Memory.Fetcher {
	case config.FetcherRod:
		f := rod.New(func(o *rod.Options) {
			o.ControlURL = cfg.Memory.RodControlURL
			o.Logger = logger
		})
		closers = append(closers, f)
		fetcher = f
	default:
		fetcher = browse.NewHTTPFetcher(func(o *browse.HTTPOptions) { o.Logger = logger })
	}

	var backend memory.Backend
	switch cfg.Memory.Backend {
	case config.BackendRedis:
		b := redis.New(func(o *redis.Options) {
			o.Address = cfg.Memory.Redis.Address
			o.Password = cfg.Memory.Redis.Password
			o.DB = cfg.Memory.Redis.DB
			if cfg.Memory.Redis.Prefix != "" {
				o.Prefix = cfg.Memory.Redis.Prefix
			}
		})
		closers = append(closers, b)
		backend = b
	default:
		backend = memory.NewInMemoryBackend()
	}

	var log core.TranscriptStore
	switch cfg.Transcript.Backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.Transcript.Path)
		if err != nil {
			return fail(fmt.Errorf("transcript: %w", err))
		}
		closers = append(closers, s)
		log = s
	default:
		log = transcript.NewInMemory()
	}

	specs := make([]AgentSpec, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		provider, err := NewProvider(ctx, ac.Provider)
		if err != nil {
			return fail(fmt.Errorf("agent %s: %w", ac.Name, err))
		}

		settings := make(map[string]string, len(ac.Settings)+1)
		for k, v := range ac.Settings {
			settings[k] = v
		}
		if settings[search.SettingInstanceURL] == "" && cfg.Search.InstanceURL != "" {
			settings[search.SettingInstanceURL] = cfg.Search.InstanceURL
		}

		mem := memory.New(ac.Name, func(o *memory.Options) {
			o.Backend = backend
			o.Fetcher = fetcher
			o.ChunkWords = cfg.Memory.ChunkWords
			o.Logger = logger
		})

		spec := AgentSpec{
			Name: ac.Name,
			Options: []func(o *agent.Options){func(o *agent.Options) {
				o.ModelID = ac.Provider.Model
				o.Provider = provider
				o.Memory = mem
				o.Transcript = log
				o.Settings = settings
				if ac.ToolTimeout > 0 {
					o.ToolTimeout = ac.ToolTimeout
				}
			}},
		}

		if u := settings[search.SettingInstanceURL]; u != "" {
			searcher := search.NewSearXNG(u, func(o *search.Options) {
				o.Timeout = cfg.Search.Timeout
				o.Logger = logger
			})
			spec.Engine = []func(o *engine.Options){func(o *engine.Options) { o.Searcher = searcher }}
		}

		specs = append(specs, spec)
	}

	chains := make(map[string]ChainSpec, len(cfg.Chains.Definitions))
	for name, c := range cfg.Chains.Definitions {
		chains[name] = ChainSpec{Agent: c.Agent, Steps: c.Steps}
	}

	retryOpts := func(o *engine.Options) {
		o.MaxFailures = cfg.Retry.MaxFailures
		o.Backoff = cfg.Retry.Backoff
	}

	opts := []func(o *Options){func(o *Options) {
		o.Agents = specs
		o.Chains = chains
		o.Templates = tmpl
		o.Steps = steps
		o.PoolSize = cfg.Pool.Size
		o.Engine = []func(o *engine.Options){retryOpts}
		o.Closers = closers
		o.Logger = logger
	}}

	m, err := New(append(opts, optFns...)...)
	if err != nil {
		return fail(err)
	}

	return m, nil
}

// NewProvider builds the core.Provider of one agent.
func NewProvider(ctx context.Context, cfg config.ProviderConfig) (core.Provider, error) {
	var m model.Model

	switch cfg.Name {
	case config.ProviderOpenAI:
		m = openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
			o.ContextWindow = cfg.ContextWindow
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	case config.ProviderAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = sdk.Model(cfg.Model)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			if cfg.ContextWindow > 0 {
				o.ContextWindow = cfg.ContextWindow
			}
			o.APIKey = cfg.APIKey
		})
	case config.ProviderGemini:
		g, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.Temperature > 0 {
				o.Temperature = float32(cfg.Temperature)
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int32(cfg.MaxTokens)
			}
			if cfg.ContextWindow > 0 {
				o.ContextWindow = cfg.ContextWindow
			}
			o.APIKey = cfg.APIKey
		})
		if err != nil {
			return nil, err
		}
		m = g
	case config.ProviderMock:
		name := cfg.Model
		if name == "" {
			name = "mock"
		}
		m = model.NewMockModel(name, config.ProviderMock)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Name)
	}

	return model.NewProvider(m, func(o *model.ProviderOptions) {
		o.Instructions = cfg.Instructions
		o.Stream = cfg.Stream
	}), nil
}
