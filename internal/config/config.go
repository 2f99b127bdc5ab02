package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MimeLyc/taskagent/internal/llm"
	"github.com/MimeLyc/taskagent/pkg/icron"
	"github.com/MimeLyc/taskagent/pkg/log"
)

// Config holds all application configuration
// Values come from the environment, optionally seeded from a .env file
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 4000)
// - LLM_TEMPERATURE: Temperature for free-text stages (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 120)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
// - LLM_REQUESTS_PER_MINUTE: Client-side request ceiling, 0 disables it (default: 0)
// - LLM_TRANSCRIPTION_MODEL: Audio transcription model (default: whisper-1)
//
// Agent Configuration:
// - AGENT_MAX_STEPS: Loop iterations per run (default: 10)
// - AGENT_TERMINAL_TOOL: Tool that ends a run (default: final_answer)
// - AGENT_REFLECT: Enable the reflection stage (default: true)
// - AGENT_STAGE_TIMEOUT: Deadline per gateway call, e.g. 60s (default: 60s)
// - AGENT_GATEWAY_RETRIES: Retries per failed gateway call (default: 0)
// - AGENT_GATEWAY_BACKOFF: Wait before the first retry (default: 2s)
// - AGENT_FANOUT_CONCURRENCY: Parallel tasks in batch mode (default: 4)
// - AGENT_JOURNAL: Markdown journal path, "off" disables it (default: log.md)
//
// Tools and integrations:
// - SEARCH_API_KEY / SEARCH_API_URL: Tavily web search (optional)
// - JINA_API_KEY / JINA_BASE_URL: Jina reader for web_scrape (optional key)
// - REPORT_URL / REPORT_API_KEY: Answer submission endpoint (optional)
// - STORE_PATH: SQLite run journal, "off" disables it (default: data/taskagent.db)
// - TOOLS_FILE: YAML manifest of extra HTTP tools (optional)
// - TOOLS_BASE_DIR: Directory file tools resolve relative paths against (default: .)
// - TOOLS_HTTP_TIMEOUT: Timeout for HTTP tools (default: 30s)
// - CRON_EXPR: Default schedule for repeated runs (optional)
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - ENV_FILE: .env file to load first (default: .env)
type Config struct {
	LLM      LLMConfig      `json:"llm"`
	Agent    AgentConfig    `json:"agent"`
	Search   SearchConfig   `json:"search"`
	Scrape   ScrapeConfig   `json:"scrape"`
	Report   ReportConfig   `json:"report"`
	Store    StoreConfig    `json:"store"`
	Tools    ToolsConfig    `json:"tools"`
	Schedule ScheduleConfig `json:"schedule"`
	LogLevel string         `json:"log_level"`
}

// LLMConfig holds the configuration for LLM client
// Supports any OpenAI-compatible provider (OpenRouter, OpenAI, etc.)
type LLMConfig struct {
	APIKey             string  `json:"api_key"`
	APIURL             string  `json:"api_url"`
	Model              string  `json:"model"`
	MaxTokens          int     `json:"max_tokens"`
	Temperature        float64 `json:"temperature"`
	Timeout            int     `json:"timeout"`
	SiteURL            string  `json:"site_url"`
	AppName            string  `json:"app_name"`
	RequestsPerMinute  int     `json:"requests_per_minute"`
	TranscriptionModel string  `json:"transcription_model"`
}

// ClientConfig converts to the llm package configuration
func (c LLMConfig) ClientConfig() *llm.Config {
	return &llm.Config{
		APIKey:             c.APIKey,
		APIURL:             c.APIURL,
		Model:              c.Model,
		MaxTokens:          c.MaxTokens,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            c.SiteURL,
		AppName:            c.AppName,
		RequestsPerMinute:  c.RequestsPerMinute,
		TranscriptionModel: c.TranscriptionModel,
	}
}

// AgentConfig holds the configuration for the agent loop
type AgentConfig struct {
	MaxSteps          int           `json:"max_steps"`
	TerminalTool      string        `json:"terminal_tool"`
	Reflect           bool          `json:"reflect"`
	StageTimeout      time.Duration `json:"stage_timeout"`
	GatewayRetries    int           `json:"gateway_retries"`
	GatewayBackoff    time.Duration `json:"gateway_backoff"`
	FanOutConcurrency int           `json:"fanout_concurrency"`
	Journal           string        `json:"journal"`
}

// SearchConfig holds the configuration for web search tool
type SearchConfig struct {
	APIKey string `json:"api_key"` // Tavily API key
	APIURL string `json:"api_url"` // Tavily API URL
}

// ScrapeConfig holds the configuration for the web_scrape tool
type ScrapeConfig struct {
	JinaAPIKey  string `json:"jina_api_key"`
	JinaBaseURL string `json:"jina_base_url"`
}

// ReportConfig holds the answer submission endpoint
type ReportConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
}

// Enabled reports whether a submission endpoint is configured
func (c ReportConfig) Enabled() bool {
	return c.URL != ""
}

type StoreConfig struct {
	Path string `json:"path"`
}

// Disabled is the value that turns off an optional file-backed feature
const Disabled = "off"

// Enabled reports whether the SQLite journal is on
func (c StoreConfig) Enabled() bool {
	return c.Path != "" && c.Path != Disabled
}

// JournalEnabled reports whether the markdown journal is on
func (c AgentConfig) JournalEnabled() bool {
	return c.Journal != "" && c.Journal != Disabled
}

type ToolsConfig struct {
	File        string        `json:"file"`
	BaseDir     string        `json:"base_dir"`
	HTTPTimeout time.Duration `json:"http_timeout"`
}

type ScheduleConfig struct {
	CronExpr string `json:"cron_expr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	if err := loadDotEnv(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	config := &Config{
		LLM: LLMConfig{
			APIKey:             getEnvString("LLM_API_KEY", ""),
			APIURL:             getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:              getEnvString("LLM_MODEL", "openai/gpt-4o"),
			MaxTokens:          getEnvInt("LLM_MAX_TOKENS", 4000),
			Temperature:        getEnvFloat("LLM_TEMPERATURE", 0.7),
			Timeout:            getEnvInt("LLM_TIMEOUT", 120),
			SiteURL:            getEnvString("LLM_SITE_URL", ""),
			AppName:            getEnvString("LLM_APP_NAME", ""),
			RequestsPerMinute:  getEnvInt("LLM_REQUESTS_PER_MINUTE", 0),
			TranscriptionModel: getEnvString("LLM_TRANSCRIPTION_MODEL", llm.DefaultTranscriptionModel),
		},
		Agent: AgentConfig{
			MaxSteps:          getEnvInt("AGENT_MAX_STEPS", 10),
			TerminalTool:      getEnvString("AGENT_TERMINAL_TOOL", "final_answer"),
			Reflect:           getEnvBool("AGENT_REFLECT", true),
			StageTimeout:      getEnvDuration("AGENT_STAGE_TIMEOUT", 60*time.Second),
			GatewayRetries:    getEnvInt("AGENT_GATEWAY_RETRIES", 0),
			GatewayBackoff:    getEnvDuration("AGENT_GATEWAY_BACKOFF", 2*time.Second),
			FanOutConcurrency: getEnvInt("AGENT_FANOUT_CONCURRENCY", 4),
			Journal:           getEnvString("AGENT_JOURNAL", "log.md"),
		},
		Search: SearchConfig{
			APIKey: getEnvString("SEARCH_API_KEY", ""),
			APIURL: getEnvString("SEARCH_API_URL", "https://api.tavily.com/search"),
		},
		Scrape: ScrapeConfig{
			JinaAPIKey:  getEnvString("JINA_API_KEY", ""),
			JinaBaseURL: getEnvString("JINA_BASE_URL", "https://r.jina.ai"),
		},
		Report: ReportConfig{
			URL:    getEnvString("REPORT_URL", ""),
			APIKey: getEnvString("REPORT_API_KEY", ""),
		},
		Store: StoreConfig{
			Path: getEnvString("STORE_PATH", "data/taskagent.db"),
		},
		Tools: ToolsConfig{
			File:        getEnvString("TOOLS_FILE", ""),
			BaseDir:     getEnvString("TOOLS_BASE_DIR", "."),
			HTTPTimeout: getEnvDuration("TOOLS_HTTP_TIMEOUT", 30*time.Second),
		},
		Schedule: ScheduleConfig{
			CronExpr: getEnvString("CRON_EXPR", ""),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Info("Config: model=%s url=%s max_steps=%d reflect=%t stage_timeout=%s retries=%d store=%q journal=%q",
		config.LLM.Model, config.LLM.APIURL, config.Agent.MaxSteps, config.Agent.Reflect,
		config.Agent.StageTimeout, config.Agent.GatewayRetries, config.Store.Path, config.Agent.Journal)

	return config, nil
}

// WithMaxSteps overrides the step budget when n is positive
func WithMaxSteps(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Agent.MaxSteps = n
		}
	}
}

// WithSchedule overrides the cron expression when expr is not empty
func WithSchedule(expr string) Option {
	return func(c *Config) {
		if strings.TrimSpace(expr) != "" {
			c.Schedule.CronExpr = expr
		}
	}
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if err := c.LLM.ClientConfig().Validate(); err != nil {
		return fmt.Errorf("invalid LLM configuration: %w", err)
	}
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("AGENT_MAX_STEPS must be greater than 0")
	}
	if strings.TrimSpace(c.Agent.TerminalTool) == "" {
		return fmt.Errorf("AGENT_TERMINAL_TOOL must not be empty")
	}
	if c.Agent.GatewayRetries < 0 {
		return fmt.Errorf("AGENT_GATEWAY_RETRIES must not be negative")
	}
	if c.Agent.FanOutConcurrency < 1 {
		return fmt.Errorf("AGENT_FANOUT_CONCURRENCY must be greater than 0")
	}
	if c.Schedule.CronExpr != "" {
		if _, err := icron.Parser.Parse(c.Schedule.CronExpr); err != nil {
			return fmt.Errorf("invalid CRON_EXPR: %w", err)
		}
	}
	return nil
}

// loadDotEnv seeds the environment from path. Variables already set win.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	log.Debug("Loaded environment from %s", path)
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "2m") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
