package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client represents a generic LLM API client
// Provides methods for chat completions, streaming and audio transcription
// Thread-safe for concurrent use
//
// config: Configuration for the LLM API
// httpClient: HTTP client for API requests
// baseURL: Base URL for the LLM API
// limiter: Optional request limiter, nil when RequestsPerMinute is 0
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient creates a new LLM client with the given configuration
//
// config: Configuration for the LLM API
//
// Returns a new Client instance or an error if configuration is invalid
// Example:
//
//	client, err := llm.NewClient(&cfg.LLM)
//	if err != nil {
//		log.Fatal(err)
//	}
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config:  config,
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}
	if config.RequestsPerMinute > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1)
	}

	return client, nil
}

// ChatCompletion creates a chat completion request to the configured LLM API
//
// ctx: Context for the request
// messages: Array of messages in the conversation
// options: Optional configuration for the request
//
// # Returns the chat completion response or an error
//
// Example:
//
//	messages := []llm.Message{
//		{Role: "user", Content: "Hello, how are you?"},
//	}
//	response, err := client.ChatCompletion(ctx, messages, nil)
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	request := c.buildRequest(messages, opts)
	request.Stream = false

	var response ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/completions", request, &response); err != nil {
		if response.Error != nil && response.Error.Message != "" {
			return &response, fmt.Errorf("chat completion failed: %w", err)
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return &response, nil
}

// Complete runs a chat completion and returns the first choice's content
func (c *Client) Complete(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (string, error) {
	response, err := c.ChatCompletion(ctx, messages, opts)
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return response.Choices[0].Message.Content, nil
}

// SimpleChat provides a simple interface for chat completion
//
// ctx: Context for the request
// prompt: The user prompt
// systemPrompt: Optional system prompt for context
//
// # Returns the assistant's response content or an error
//
// Example:
//
//	response, err := client.SimpleChat(ctx, "What is Go?", "You are a helpful assistant.")
func (c *Client) SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	messages := []Message{
		{Role: RoleUser, Content: prompt},
	}

	opts := NewChatCompletionOptions()
	if systemPrompt != "" {
		opts = opts.WithSystemPrompt(systemPrompt)
	}

	return c.Complete(ctx, messages, opts)
}

// ChatWithFiles sends the prompt together with file attachments in a single user message
//
// Images are attached as image parts, text files are inlined.
//
// Example:
//
//	file, err := llm.NewFileFromPath("chart.png")
//	if err != nil {
//		log.Fatal(err)
//	}
//	response, err := client.ChatWithFiles(ctx, "Describe this chart", []llm.File{*file}, "")
func (c *Client) ChatWithFiles(ctx context.Context, prompt string, files []File, systemPrompt string) (string, error) {
	parts := []ContentPart{TextPart(prompt)}
	for _, file := range files {
		part, err := file.ToContentPart()
		if err != nil {
			return "", fmt.Errorf("failed to process file %s: %w", file.Name, err)
		}
		parts = append(parts, part)
	}

	opts := NewChatCompletionOptions()
	if systemPrompt != "" {
		opts = opts.WithSystemPrompt(systemPrompt)
	}

	return c.Complete(ctx, []Message{{Role: RoleUser, Content: prompt, Parts: parts}}, opts)
}

// StreamChatCompletion streams a chat completion over server-sent events
//
// The returned channel is closed when the stream ends. A transport or decode
// failure is delivered as a final chunk with Err set.
func (c *Client) StreamChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (<-chan StreamChunk, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	request := c.buildRequest(messages, opts)
	request.Stream = true

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	// The client-wide timeout would cut long streams; the caller's ctx bounds the call instead.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		send := func(chunk StreamChunk) bool {
			select {
			case chunks <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				send(StreamChunk{Err: fmt.Errorf("failed to parse stream event: %w", err)})
				return
			}
			if event.Error != nil && event.Error.Message != "" {
				send(StreamChunk{Err: event.Error})
				return
			}
			for _, choice := range event.Choices {
				chunk := StreamChunk{Content: choice.Delta.Content}
				if choice.FinishReason != nil {
					chunk.FinishReason = *choice.FinishReason
				}
				if chunk.Content == "" && chunk.FinishReason == "" {
					continue
				}
				if !send(chunk) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			send(StreamChunk{Err: fmt.Errorf("failed to read stream: %w", err)})
		}
	}()

	return chunks, nil
}

// StreamComplete streams a completion, hands every fragment to onChunk and
// returns the assembled text
func (c *Client) StreamComplete(ctx context.Context, messages []Message, opts *ChatCompletionOptions, onChunk func(string)) (string, error) {
	chunks, err := c.StreamChatCompletion(ctx, messages, opts)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return sb.String(), chunk.Err
		}
		sb.WriteString(chunk.Content)
		if onChunk != nil && chunk.Content != "" {
			onChunk(chunk.Content)
		}
	}
	if err := ctx.Err(); err != nil {
		return sb.String(), err
	}

	return sb.String(), nil
}

// Transcribe uploads an audio file to the transcription endpoint and returns the text
//
// prompt: Optional hint passed to the transcription model
func (c *Client) Transcribe(ctx context.Context, file *File, prompt string) (string, error) {
	if file == nil || len(file.Content) == 0 {
		return "", fmt.Errorf("audio file is empty")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := file.ToMultipart(writer, "file"); err != nil {
		return "", err
	}
	model := c.config.TranscriptionModel
	if model == "" {
		model = DefaultTranscriptionModel
	}
	if err := writer.WriteField("model", model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if prompt != "" {
		if err := writer.WriteField("prompt", prompt); err != nil {
			return "", fmt.Errorf("failed to write prompt field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var response TranscriptionResponse
	if err := c.send(req, &response); err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	if response.Error != nil && response.Error.Message != "" {
		return "", fmt.Errorf("transcription failed: %w", response.Error)
	}

	return response.Text, nil
}

// GetModels returns a list of available models from the configured LLM provider
//
// ctx: Context for the request
//
// # Returns an array of model information or an error
func (c *Client) GetModels(ctx context.Context) ([]ModelInfo, error) {
	var response struct {
		Data []ModelInfo `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/models", nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get models: %w", err)
	}

	if len(response.Data) == 0 {
		return []ModelInfo{{ID: c.config.Model, Name: c.config.Model}}, nil
	}
	return response.Data, nil
}

// ModelInfo represents basic model information
//
// ID: Model identifier
// Name: Human-readable model name
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Client) buildRequest(messages []Message, opts *ChatCompletionOptions) ChatRequest {
	// Add system prompt if provided
	if opts.SystemPrompt != "" {
		systemMessage := Message{
			Role:    RoleSystem,
			Content: opts.SystemPrompt,
		}
		messages = append([]Message{systemMessage}, messages...)
	}

	temperature := c.getTemperature(opts)
	request := ChatRequest{
		Model:       c.getModel(opts),
		Messages:    messages,
		MaxTokens:   c.getMaxTokens(opts),
		Temperature: &temperature,
	}
	if opts.JSONMode {
		request.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	return request
}

// doJSON makes a raw JSON request to the configured LLM API and decodes the reply into out
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return fmt.Errorf("request timed out: %w", err)
		}
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	decodeErr := json.Unmarshal(responseBody, out)

	// Check for API errors
	var envelope struct {
		Error *Error `json:"error"`
	}
	if json.Unmarshal(responseBody, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error
	}

	// Check HTTP status
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	if decodeErr != nil {
		return fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	for key, values := range c.config.Headers() {
		req.Header[key] = values
	}
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// getModel returns the model to use for the request
func (c *Client) getModel(opts *ChatCompletionOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.config.Model
}

// getMaxTokens returns the max tokens to use for the request
func (c *Client) getMaxTokens(opts *ChatCompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.config.MaxTokens
}

// getTemperature returns the temperature to use for the request
func (c *Client) getTemperature(opts *ChatCompletionOptions) float64 {
	if opts.Temperature >= 0 && opts.Temperature <= 2 {
		return opts.Temperature
	}
	return c.config.Temperature
}
