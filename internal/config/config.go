package config

// Config is the resolved runtime configuration. Values are layered:
// defaults, then the optional config file, then environment variables,
// then caller overrides.
type Config struct {
	LLMProvider    string // openai, mock
	LLMModel       string
	APIKey         string
	BaseURL        string
	TimeoutSeconds int

	LogLevel  string
	LogFormat string

	AgentOverlayPath string
	DatabasePath     string

	DirectoryBaseURL string
	RegistryBaseURL  string
	ScrapeDelayMS    int
}

// Defaults used before any layer applies.
const (
	DefaultLLMProvider = "openai"
	DefaultLLMModel    = "gpt-4o-mini"
	DefaultTimeout     = 120
	DefaultDatabase    = "dealflow.db"
	DefaultScrapeDelay = 250
)

// fileConfig mirrors the YAML config file shape.
type fileConfig struct {
	LLM struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
		Timeout  int    `yaml:"timeout_seconds"`
	} `yaml:"llm"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Agents struct {
		OverlayPath string `yaml:"overlay_path"`
	} `yaml:"agents"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Scrapers struct {
		DirectoryBaseURL string `yaml:"directory_base_url"`
		RegistryBaseURL  string `yaml:"registry_base_url"`
		DelayMS          int    `yaml:"delay_ms"`
	} `yaml:"scrapers"`
}
