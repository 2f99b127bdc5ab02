package tools

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebSearchTool implements web search using Tavily API
type WebSearchTool struct {
	apiKey string
	apiURL string
	client *resty.Client
}

// WebSearchArgs represents the arguments for web search
type WebSearchArgs struct {
	Query      string
	Topic      string
	SearchType string // facts, people, places, all
	MaxResults int
}

// TavilyRequest represents a request to Tavily API
type TavilyRequest struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth,omitempty"`
	IncludeAnswer     bool     `json:"include_answer,omitempty"`
	IncludeRawContent bool     `json:"include_raw_content,omitempty"`
	MaxResults        int      `json:"max_results,omitempty"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
}

// TavilyResponse represents a response from Tavily API
type TavilyResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer,omitempty"`
	Results []TavilyResult `json:"results"`
}

// TavilyResult represents a single search result
type TavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// NewWebSearchTool creates a new web search tool
func NewWebSearchTool(apiKey, apiURL string) *WebSearchTool {
	if apiURL == "" {
		apiURL = "https://api.tavily.com/search"
	}
	return &WebSearchTool{
		apiKey: apiKey,
		apiURL: apiURL,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

func (t *WebSearchTool) Spec() Spec {
	return Spec{
		Name: "web_search",
		Description: `Search the web and return a short summary with the top matching pages.
Use this tool to find facts, people, places and documentation that are not in the conversation yet.
Follow up with web_scrape to read a result in full.`,
		Required: map[string]string{
			"query": "The search query. Be specific.",
		},
		Optional: map[string]string{
			"topic":       "Subject that scopes the query, e.g. a product, person or organisation",
			"search_type": "One of facts, people, places, all",
			"max_results": "Number of results to return (default 5)",
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, payload Payload) (ToolResult, error) {
	args := WebSearchArgs{
		Query:      payload.String("query"),
		Topic:      payload.String("topic"),
		SearchType: payload.String("search_type"),
		MaxResults: payload.Int("max_results", 5),
	}
	if args.Query == "" {
		return Errorf("Failed to parse search arguments: query is empty"), nil
	}

	// Build the search query
	query := t.buildQuery(args)

	// Make the API request
	results, err := t.search(ctx, query, args.MaxResults)
	if err != nil {
		return ToolResult{
			Content: fmt.Sprintf("Search failed: %v", err),
			IsError: true,
		}, nil
	}

	return ToolResult{
		Content: t.formatResults(results),
		IsError: false,
	}, nil
}

func (t *WebSearchTool) buildQuery(args WebSearchArgs) string {
	query := args.Query

	// Enhance query based on search type and context
	if args.Topic != "" {
		switch args.SearchType {
		case "people":
			query = fmt.Sprintf("%s people names roles %s", args.Topic, query)
		case "places":
			query = fmt.Sprintf("%s locations addresses %s", args.Topic, query)
		case "facts":
			query = fmt.Sprintf("%s facts %s", args.Topic, query)
		default:
			query = fmt.Sprintf("%s %s", args.Topic, query)
		}
	}

	return query
}

func (t *WebSearchTool) search(ctx context.Context, query string, maxResults int) (*TavilyResponse, error) {
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 5
	}
	request := TavilyRequest{
		APIKey:        t.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
		MaxResults:    maxResults,
	}

	var tavilyResp TavilyResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		SetResult(&tavilyResp).
		Post(t.apiURL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	return &tavilyResp, nil
}

func (t *WebSearchTool) formatResults(resp *TavilyResponse) string {
	var result bytes.Buffer

	result.WriteString(fmt.Sprintf("Search Query: %s\n\n", resp.Query))

	if resp.Answer != "" {
		result.WriteString(fmt.Sprintf("Summary: %s\n\n", resp.Answer))
	}

	if len(resp.Results) == 0 {
		result.WriteString("No results found.\n")
		return result.String()
	}

	result.WriteString("Search Results:\n")
	for i, r := range resp.Results {
		result.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, r.Title))
		result.WriteString(fmt.Sprintf("   URL: %s\n", r.URL))
		// Truncate content if too long
		content := r.Content
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		result.WriteString(fmt.Sprintf("   Content: %s\n", content))
	}

	return result.String()
}
