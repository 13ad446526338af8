package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvLookup resolves an environment variable, os.LookupEnv shaped.
type EnvLookup func(key string) (string, bool)

type loadOptions struct {
	envLookup EnvLookup
	readFile  func(string) ([]byte, error)
	homeDir   func() (string, error)
	path      string
	overrides []func(*Config)
}

// Option customizes Load, mainly so tests can inject environment and
// file access.
type Option func(*loadOptions)

// WithEnv replaces the environment lookup.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithFileReader replaces the config file reader.
func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(o *loadOptions) { o.readFile = read }
}

// WithPath pins the config file path instead of the default search.
func WithPath(path string) Option {
	return func(o *loadOptions) { o.path = path }
}

// WithOverride applies a caller override after all other layers.
func WithOverride(override func(*Config)) Option {
	return func(o *loadOptions) { o.overrides = append(o.overrides, override) }
}

// Load resolves the runtime configuration: defaults, then the optional
// YAML file, then environment variables, then caller overrides. When no
// API key is resolved the provider falls back to mock so the tool stays
// usable offline.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{
		envLookup: os.LookupEnv,
		readFile:  os.ReadFile,
		homeDir:   os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Config{
		LLMProvider:    DefaultLLMProvider,
		LLMModel:       DefaultLLMModel,
		TimeoutSeconds: DefaultTimeout,
		LogLevel:       "info",
		LogFormat:      "text",
		DatabasePath:   DefaultDatabase,
		ScrapeDelayMS:  DefaultScrapeDelay,
	}

	if err := applyFile(&cfg, options); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg, options.envLookup)
	for _, override := range options.overrides {
		override(&cfg)
	}

	normalize(&cfg)

	if cfg.APIKey == "" && cfg.LLMProvider != "mock" {
		cfg.LLMProvider = "mock"
	}

	return cfg, nil
}

func applyFile(cfg *Config, options loadOptions) error {
	path := options.path
	if path == "" {
		if env, ok := options.envLookup("DEALFLOW_CONFIG"); ok && env != "" {
			path = env
		} else if home, err := options.homeDir(); err == nil {
			path = filepath.Join(home, ".dealflow.yaml")
		}
	}
	if path == "" {
		return nil
	}

	data, err := options.readFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.LLMProvider, file.LLM.Provider)
	setString(&cfg.LLMModel, file.LLM.Model)
	setString(&cfg.APIKey, file.LLM.APIKey)
	setString(&cfg.BaseURL, file.LLM.BaseURL)
	setInt(&cfg.TimeoutSeconds, file.LLM.Timeout)
	setString(&cfg.LogLevel, file.Log.Level)
	setString(&cfg.LogFormat, file.Log.Format)
	setString(&cfg.AgentOverlayPath, file.Agents.OverlayPath)
	setString(&cfg.DatabasePath, file.Store.Path)
	setString(&cfg.DirectoryBaseURL, file.Scrapers.DirectoryBaseURL)
	setString(&cfg.RegistryBaseURL, file.Scrapers.RegistryBaseURL)
	setInt(&cfg.ScrapeDelayMS, file.Scrapers.DelayMS)
	return nil
}

func applyEnv(cfg *Config, lookup EnvLookup) {
	envString(lookup, "DEALFLOW_LLM_PROVIDER", &cfg.LLMProvider)
	envString(lookup, "DEALFLOW_LLM_MODEL", &cfg.LLMModel)
	envString(lookup, "OPENAI_API_KEY", &cfg.APIKey)
	envString(lookup, "DEALFLOW_API_KEY", &cfg.APIKey)
	envString(lookup, "DEALFLOW_BASE_URL", &cfg.BaseURL)
	envInt(lookup, "DEALFLOW_TIMEOUT_SECONDS", &cfg.TimeoutSeconds)
	envString(lookup, "DEALFLOW_LOG_LEVEL", &cfg.LogLevel)
	envString(lookup, "DEALFLOW_LOG_FORMAT", &cfg.LogFormat)
	envString(lookup, "DEALFLOW_AGENT_OVERLAY", &cfg.AgentOverlayPath)
	envString(lookup, "DEALFLOW_DB", &cfg.DatabasePath)
	envString(lookup, "DEALFLOW_DIRECTORY_URL", &cfg.DirectoryBaseURL)
	envString(lookup, "DEALFLOW_REGISTRY_URL", &cfg.RegistryBaseURL)
	envInt(lookup, "DEALFLOW_SCRAPE_DELAY_MS", &cfg.ScrapeDelayMS)
}

func envString(lookup EnvLookup, key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func envInt(lookup EnvLookup, key string, target *int) {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}

func setString(target *string, value string) {
	if strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func setInt(target *int, value int) {
	if value > 0 {
		*target = value
	}
}

func normalize(cfg *Config) {
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.LLMModel = strings.TrimSpace(cfg.LLMModel)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultTimeout
	}
	if cfg.ScrapeDelayMS < 0 {
		cfg.ScrapeDelayMS = 0
	}
}
