package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/promptmesh/engine"
)

const sample = `
agents:
  - name: AGiXT
    provider:
      name: openai
      model: gpt-4o-mini
      stream: true
    settings:
      SEARXNG_INSTANCE_URL: http://searx.local
  - name: Local
    provider:
      name: mock
retry:
  max_failures: 3
  backoff: 250ms
memory:
  backend: redis
  redis:
    address: redis:6379
chains:
  root: /tmp/chains
  definitions:
    Write:
      agent: AGiXT
      steps:
        - template: instruct
          websearch: true
        - template: chat
          bindings:
            tone: dry
pool:
  size: 2
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "promptmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("SEARXNG_INSTANCE_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ParsesSections(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SEARXNG_INSTANCE_URL", "")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, "gpt-4o-mini", cfg.Agents[0].Provider.Model)
	assert.True(t, cfg.Agents[0].Provider.Stream)
	assert.Equal(t, "sk-test", cfg.Agents[0].Provider.APIKey)
	assert.Empty(t, cfg.Agents[1].Provider.APIKey)
	assert.Equal(t, "http://searx.local", cfg.Agents[0].Settings["SEARXNG_INSTANCE_URL"])

	assert.Equal(t, 3, cfg.Retry.MaxFailures)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Backoff)

	assert.Equal(t, BackendRedis, cfg.Memory.Backend)
	assert.Equal(t, "redis:6379", cfg.Memory.Redis.Address)
	assert.Equal(t, "promptmesh:memory", cfg.Memory.Redis.Prefix, "unset fields keep defaults")
	assert.Equal(t, FetcherHTTP, cfg.Memory.Fetcher)

	chain := cfg.Chains.Definitions["Write"]
	assert.Equal(t, "AGiXT", chain.Agent)
	assert.Equal(t, []engine.Step{
		{Template: "instruct", WebSearch: true},
		{Template: "chat", Bindings: map[string]any{"tone": "dry"}},
	}, chain.Steps)

	assert.EqualValues(t, 2, cfg.Pool.Size)
	require.NoError(t, cfg.Validate())
}

func TestLoad_KeepsExplicitKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	cfg, err := Load(writeConfig(t, `
agents:
  - name: A
    provider:
      name: anthropic
      api_key: from-file
`))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Agents[0].Provider.APIKey)
}

func TestLoad_SearchURLFromEnv(t *testing.T) {
	t.Setenv("SEARXNG_INSTANCE_URL", "http://env.searx")

	cfg, err := Load(writeConfig(t, "search:\n  instance_url: http://file.searx\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://env.searx", cfg.Search.InstanceURL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "agents: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestSave_RoundTrip(t *testing.T) {
	t.Setenv("SEARXNG_INSTANCE_URL", "")

	cfg := DefaultConfig()
	cfg.Agents = []AgentConfig{{Name: "A", Provider: ProviderConfig{Name: ProviderMock}, ToolTimeout: 5 * time.Second}}

	path := filepath.Join(t.TempDir(), "nested", "promptmesh.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Agents = []AgentConfig{{Name: "A", Provider: ProviderConfig{Name: ProviderMock}}}
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no agents", func(c *Config) { c.Agents = nil }, "no agents"},
		{"unnamed", func(c *Config) { c.Agents[0].Name = "" }, "without name"},
		{"duplicate", func(c *Config) { c.Agents = append(c.Agents, c.Agents[0]) }, "duplicate agent"},
		{"provider", func(c *Config) { c.Agents[0].Provider.Name = "llama" }, "invalid provider"},
		{"api key", func(c *Config) { c.Agents[0].Provider.Name = ProviderOpenAI }, "API key"},
		{"memory", func(c *Config) { c.Memory.Backend = "etcd" }, "memory backend"},
		{"fetcher", func(c *Config) { c.Memory.Fetcher = "curl" }, "page fetcher"},
		{"sqlite path", func(c *Config) { c.Transcript.Backend = BackendSQLite }, "requires a path"},
		{"chain agent", func(c *Config) {
			c.Chains.Definitions = map[string]ChainConfig{"X": {Agent: "B"}}
		}, "unknown agent"},
		{"retry", func(c *Config) { c.Retry.MaxFailures = 0 }, "max_failures"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAgent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agents = []AgentConfig{{Name: "A"}, {Name: "B"}}

	a, ok := cfg.Agent("B")
	assert.True(t, ok)
	assert.Equal(t, "B", a.Name)

	_, ok = cfg.Agent("C")
	assert.False(t, ok)
}
