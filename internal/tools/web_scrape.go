package tools

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const scrapeContentLimit = 20000

// WebScrapeTool reads a page through the Jina reader API
type WebScrapeTool struct {
	apiKey  string
	baseURL string
	client  *resty.Client
}

type jinaResponse struct {
	Code int `json:"code"`
	Data struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"data"`
}

// NewWebScrapeTool creates the web_scrape tool
func NewWebScrapeTool(apiKey, baseURL string) *WebScrapeTool {
	if baseURL == "" {
		baseURL = "https://r.jina.ai"
	}
	return &WebScrapeTool{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  resty.New().SetTimeout(60 * time.Second),
	}
}

func (t *WebScrapeTool) Spec() Spec {
	return Spec{
		Name:        "web_scrape",
		Description: "Fetches a web page and returns its main content as markdown, with a summary of the links it contains.",
		Required: map[string]string{
			"url": "The URL of the webpage to scrape",
		},
	}
}

func (t *WebScrapeTool) Execute(ctx context.Context, payload Payload) (ToolResult, error) {
	target := strings.TrimSpace(payload.String("url"))
	if target == "" {
		return Errorf("url must not be empty"), nil
	}

	var out jinaResponse
	req := t.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("X-With-Links-Summary", "true").
		SetResult(&out)
	if t.apiKey != "" {
		req.SetAuthToken(t.apiKey)
	}

	resp, err := req.Get(t.baseURL + "/" + target)
	if err != nil {
		return Errorf("scrape failed: %v", err), nil
	}
	if !resp.IsSuccess() {
		return Errorf("scrape failed with status %d: %s", resp.StatusCode(), truncate(resp.String(), 500)), nil
	}

	return ToolResult{Content: truncate(out.Data.Content, scrapeContentLimit)}, nil
}
