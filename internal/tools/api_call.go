package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/MimeLyc/taskagent/pkg/log"
)

const apiCallBodyLimit = 8000

var placeholderPattern = regexp.MustCompile(`\[\[([A-Za-z0-9_]+)\]\]`)

var allowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// APICallTool performs arbitrary HTTP requests on behalf of the model
type APICallTool struct {
	client *resty.Client
	lookup func(string) (string, bool)
}

// NewAPICallTool creates the make_api_call tool
func NewAPICallTool(timeout time.Duration) *APICallTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APICallTool{
		client: resty.New().SetTimeout(timeout),
		lookup: os.LookupEnv,
	}
}

func (t *APICallTool) Spec() Spec {
	return Spec{
		Name:        "make_api_call",
		Description: "Makes an HTTP request to an API endpoint. Supports GET, POST, PUT, PATCH and DELETE with JSON payloads. Secrets can be referenced in the URL as [[ENV_NAME]] placeholders.",
		Required: map[string]string{
			"url":    "The API endpoint URL to call",
			"method": "HTTP method to use (GET, POST, PUT, PATCH, DELETE)",
		},
		Optional: map[string]string{
			"payload": "JSON body for POST, PUT and PATCH, or query parameters for GET",
			"headers": "Extra request headers as a JSON object",
		},
	}
}

func (t *APICallTool) Execute(ctx context.Context, payload Payload) (ToolResult, error) {
	method := strings.ToUpper(strings.TrimSpace(payload.String("method")))
	if !slices.Contains(allowedMethods, method) {
		return Errorf("invalid HTTP method %q, must be one of %s", method, strings.Join(allowedMethods, ", ")), nil
	}

	url, err := ExpandPlaceholders(payload.String("url"), t.lookup)
	if err != nil {
		return ToolResult{}, err
	}

	req := t.client.R().SetContext(ctx)
	if headers, ok := payload.Value("headers").(map[string]any); ok {
		for k, v := range headers {
			req.SetHeader(k, fmt.Sprint(v))
		}
	}

	if payload.Has("payload") {
		switch method {
		case http.MethodGet, http.MethodDelete:
			if query, ok := payload.Value("payload").(map[string]any); ok {
				for k, v := range query {
					req.SetQueryParam(k, stringify(v))
				}
			}
		default:
			req.SetHeader("Content-Type", "application/json").SetBody(jsonBody(payload.Value("payload")))
		}
	}

	// the unexpanded URL keeps secrets out of the log
	log.Info("make_api_call %s %s", method, truncate(payload.String("url"), 200))
	resp, err := req.Execute(method, url)
	if err != nil {
		return Errorf("request failed: %v", err), nil
	}

	body := truncate(resp.String(), apiCallBodyLimit)
	if !resp.IsSuccess() {
		return Errorf("API returned status %d: %s", resp.StatusCode(), body), nil
	}
	return ToolResult{Content: body}, nil
}

// ExpandPlaceholders replaces [[NAME]] markers with values from lookup.
// A marker without a value is an error.
func ExpandPlaceholders(s string, lookup func(string) (string, bool)) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := lookup(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable %s not found for placeholder [[%s]]", missing[0], missing[0])
	}
	return out, nil
}

func jsonBody(v any) any {
	if s, ok := v.(string); ok {
		if json.Valid([]byte(s)) {
			return json.RawMessage(s)
		}
	}
	return v
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}
