package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithEnv(envMap(nil)),
		WithFileReader(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
	)
	require.NoError(t, err)

	assert.Equal(t, DefaultLLMModel, cfg.LLMModel)
	assert.Equal(t, DefaultTimeout, cfg.TimeoutSeconds)
	assert.Equal(t, DefaultDatabase, cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "mock", cfg.LLMProvider, "no API key forces the offline provider")
}

func TestLoadFileLayer(t *testing.T) {
	file := []byte(`
llm:
  provider: openai
  model: gpt-4.1
  api_key: file-key
  timeout_seconds: 30
log:
  level: debug
scrapers:
  directory_base_url: https://directory.example
  delay_ms: 100
`)
	cfg, err := Load(
		WithEnv(envMap(nil)),
		WithPath("/etc/dealflow.yaml"),
		WithFileReader(func(path string) ([]byte, error) {
			assert.Equal(t, "/etc/dealflow.yaml", path)
			return file, nil
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "gpt-4.1", cfg.LLMModel)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://directory.example", cfg.DirectoryBaseURL)
	assert.Equal(t, 100, cfg.ScrapeDelayMS)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	file := []byte("llm:\n  model: from-file\n  api_key: file-key\n")
	cfg, err := Load(
		WithEnv(envMap(map[string]string{
			"DEALFLOW_LLM_MODEL": "from-env",
			"OPENAI_API_KEY":     "openai-key",
			"DEALFLOW_API_KEY":   "dealflow-key",
		})),
		WithPath("config.yaml"),
		WithFileReader(func(string) ([]byte, error) { return file, nil }),
	)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLMModel)
	assert.Equal(t, "dealflow-key", cfg.APIKey, "the dedicated variable beats the generic one")
}

func TestLoadOpenAIKeyFallback(t *testing.T) {
	cfg, err := Load(
		WithEnv(envMap(map[string]string{"OPENAI_API_KEY": "openai-key"})),
		WithFileReader(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
	)
	require.NoError(t, err)

	assert.Equal(t, "openai-key", cfg.APIKey)
	assert.Equal(t, "openai", cfg.LLMProvider)
}

func TestLoadOverrideLayerWinsLast(t *testing.T) {
	cfg, err := Load(
		WithEnv(envMap(map[string]string{"DEALFLOW_DB": "env.db"})),
		WithFileReader(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
		WithOverride(func(cfg *Config) { cfg.DatabasePath = "override.db" }),
	)
	require.NoError(t, err)

	assert.Equal(t, "override.db", cfg.DatabasePath)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	read := ""
	_, err := Load(
		WithEnv(envMap(map[string]string{"DEALFLOW_CONFIG": "/opt/deal.yaml"})),
		WithFileReader(func(path string) ([]byte, error) {
			read = path
			return nil, os.ErrNotExist
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "/opt/deal.yaml", read)
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(
		WithEnv(envMap(nil)),
		WithPath("bad.yaml"),
		WithFileReader(func(string) ([]byte, error) { return []byte("llm: ["), nil }),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestNormalizeClampsValues(t *testing.T) {
	cfg, err := Load(
		WithEnv(envMap(map[string]string{
			"DEALFLOW_LLM_PROVIDER":    "  OpenAI ",
			"DEALFLOW_API_KEY":         "k",
			"DEALFLOW_SCRAPE_DELAY_MS": "-5",
		})),
		WithFileReader(func(string) ([]byte, error) { return nil, os.ErrNotExist }),
	)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Zero(t, cfg.ScrapeDelayMS)
}
