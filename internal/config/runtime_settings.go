package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/taskagent/pkg/icron"
)

const DefaultRuntimeSettingsFile = "config/settings.json"

// RuntimeSettings are operator overrides saved by `taskagent settings`.
// Non-empty fields win over the environment.
type RuntimeSettings struct {
	LLMAPIURL string `json:"llm_api_url,omitempty"`
	LLMAPIKey string `json:"llm_api_key,omitempty"`
	LLMModel  string `json:"llm_model,omitempty"`
	CronExpr  string `json:"cron_expr,omitempty"`
	MaxSteps  int    `json:"max_steps,omitempty"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.CronExpr) != "" {
		if _, err := icron.Parser.Parse(s.CronExpr); err != nil {
			return fmt.Errorf("invalid cron_expr: %w", err)
		}
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}
	return nil
}

// Merge returns s with the non-empty fields of next applied
func (s RuntimeSettings) Merge(next RuntimeSettings) RuntimeSettings {
	if strings.TrimSpace(next.LLMAPIURL) != "" {
		s.LLMAPIURL = next.LLMAPIURL
	}
	if strings.TrimSpace(next.LLMAPIKey) != "" {
		s.LLMAPIKey = next.LLMAPIKey
	}
	if strings.TrimSpace(next.LLMModel) != "" {
		s.LLMModel = next.LLMModel
	}
	if strings.TrimSpace(next.CronExpr) != "" {
		s.CronExpr = next.CronExpr
	}
	if next.MaxSteps > 0 {
		s.MaxSteps = next.MaxSteps
	}
	return s
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.LLMAPIURL) != "" {
			c.LLM.APIURL = settings.LLMAPIURL
		}
		if strings.TrimSpace(settings.LLMAPIKey) != "" {
			c.LLM.APIKey = settings.LLMAPIKey
		}
		if strings.TrimSpace(settings.LLMModel) != "" {
			c.LLM.Model = settings.LLMModel
		}
		if strings.TrimSpace(settings.CronExpr) != "" {
			c.Schedule.CronExpr = settings.CronExpr
		}
		if settings.MaxSteps > 0 {
			c.Agent.MaxSteps = settings.MaxSteps
		}
	}
}

// LoadRuntimeSettingsFile reads the settings file. A missing file yields
// empty settings and ok=false.
func LoadRuntimeSettingsFile(path string) (settings RuntimeSettings, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeSettings{}, false, nil
		}
		return RuntimeSettings{}, false, err
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, false, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, true, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
