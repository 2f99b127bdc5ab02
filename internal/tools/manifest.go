package tools

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v3"
)

// manifestFile is the top-level structure of a tools.yaml
type manifestFile struct {
	Defaults *manifestDefaults `yaml:"defaults"`
	Tools    []*HTTPToolConfig `yaml:"tools"`
}

type manifestDefaults struct {
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// HTTPToolConfig declares an HTTP endpoint exposed to the model as a tool
//
// URL may reference parameters as {name} and environment variables as [[NAME]].
// Parameters not consumed by the URL become query parameters for GET and DELETE
// and a JSON body otherwise.
type HTTPToolConfig struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Method      string            `yaml:"method"`
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers"`
	Required    map[string]string `yaml:"required"`
	Optional    map[string]string `yaml:"optional"`
	Timeout     time.Duration     `yaml:"timeout"`
}

var pathParamPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// LoadManifest reads HTTP tool declarations from a YAML file
func LoadManifest(path string) ([]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes HTTP tool declarations
func ParseManifest(data []byte) ([]Tool, error) {
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse tool manifest: %w", err)
	}

	tools := make([]Tool, 0, len(mf.Tools))
	for i, cfg := range mf.Tools {
		if cfg == nil {
			continue
		}
		if mf.Defaults != nil {
			if cfg.Timeout == 0 {
				cfg.Timeout = mf.Defaults.Timeout
			}
			for k, v := range mf.Defaults.Headers {
				if _, ok := cfg.Headers[k]; !ok {
					if cfg.Headers == nil {
						cfg.Headers = map[string]string{}
					}
					cfg.Headers[k] = v
				}
			}
		}
		tool, err := NewHTTPTool(*cfg)
		if err != nil {
			return nil, fmt.Errorf("tool #%d: %w", i+1, err)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// HTTPTool is a tool declared in a manifest
type HTTPTool struct {
	cfg    HTTPToolConfig
	client *resty.Client
	lookup func(string) (string, bool)
}

// NewHTTPTool validates cfg and builds the tool
func NewHTTPTool(cfg HTTPToolConfig) (*HTTPTool, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	if cfg.Method == "" {
		cfg.Method = "GET"
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("tool %q: url is required", cfg.Name)
	}
	if !slices.Contains(allowedMethods, cfg.Method) {
		return nil, fmt.Errorf("tool %q: unsupported method %q", cfg.Name, cfg.Method)
	}
	for _, m := range pathParamPattern.FindAllStringSubmatch(cfg.URL, -1) {
		if _, ok := cfg.Required[m[1]]; !ok {
			return nil, fmt.Errorf("tool %q: url parameter {%s} must be a required parameter", cfg.Name, m[1])
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPTool{
		cfg:    cfg,
		client: resty.New().SetTimeout(cfg.Timeout),
		lookup: os.LookupEnv,
	}, nil
}

func (t *HTTPTool) Spec() Spec {
	return Spec{
		Name:        t.cfg.Name,
		Description: t.cfg.Description,
		Required:    t.cfg.Required,
		Optional:    t.cfg.Optional,
	}.clone()
}

func (t *HTTPTool) Execute(ctx context.Context, payload Payload) (ToolResult, error) {
	params := payload.Map()

	target := pathParamPattern.ReplaceAllStringFunc(t.cfg.URL, func(m string) string {
		name := m[1 : len(m)-1]
		v := payload.String(name)
		delete(params, name)
		return url.PathEscape(v)
	})
	target, err := ExpandPlaceholders(target, t.lookup)
	if err != nil {
		return ToolResult{}, err
	}

	req := t.client.R().SetContext(ctx)
	for k, v := range t.cfg.Headers {
		expanded, err := ExpandPlaceholders(v, t.lookup)
		if err != nil {
			return ToolResult{}, err
		}
		req.SetHeader(k, expanded)
	}

	switch t.cfg.Method {
	case "GET", "DELETE":
		for k, v := range params {
			req.SetQueryParam(k, stringify(v))
		}
	default:
		req.SetHeader("Content-Type", "application/json").SetBody(params)
	}

	resp, err := req.Execute(t.cfg.Method, target)
	if err != nil {
		return Errorf("request failed: %v", err), nil
	}
	body := truncate(resp.String(), apiCallBodyLimit)
	if !resp.IsSuccess() {
		return Errorf("%s returned status %d: %s", t.cfg.Name, resp.StatusCode(), body), nil
	}
	return ToolResult{Content: body}, nil
}
