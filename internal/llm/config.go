package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultTranscriptionModel is used when Config.TranscriptionModel is empty
const DefaultTranscriptionModel = "whisper-1"

// Config describes the model gateway the agent stages talk to. Any endpoint
// speaking the OpenAI chat completions dialect works; internal/config fills it
// from the LLM_* environment variables.
type Config struct {
	APIKey string `json:"api_key"`
	// APIURL is the base URL; /chat/completions, /models and
	// /audio/transcriptions are appended to it
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	// Timeout bounds one HTTP exchange, in seconds. Stage deadlines are
	// applied on top of it by the caller's context.
	Timeout int `json:"timeout"`

	// SiteURL and AppName identify the caller to OpenRouter-style gateways
	SiteURL string `json:"site_url"`
	AppName string `json:"app_name"`

	// RequestsPerMinute throttles all calls made through one client, 0 disables it
	RequestsPerMinute  int    `json:"requests_per_minute"`
	TranscriptionModel string `json:"transcription_model"`
}

// Validate reports every unusable setting at once
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("gateway api key is empty"))
	}
	if c.APIURL == "" {
		errs = append(errs, errors.New("gateway url is empty"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("no model selected"))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("max tokens %d, need at least 1", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %g outside [0, 2]", c.Temperature))
	}
	if c.Timeout < 1 {
		errs = append(errs, fmt.Errorf("timeout %ds, need at least 1s", c.Timeout))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("requests per minute %d is negative", c.RequestsPerMinute))
	}
	return errors.Join(errs...)
}

// Headers returns the headers sent with every gateway request. Content-Type
// defaults to JSON; multipart uploads override it.
func (c *Config) Headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.APIKey)
	h.Set("Content-Type", "application/json")
	if c.SiteURL != "" {
		h.Set("HTTP-Referer", c.SiteURL)
	}
	if c.AppName != "" {
		h.Set("X-Title", c.AppName)
	}
	return h
}
