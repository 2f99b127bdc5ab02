package llm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// Message roles understood by the chat completions API
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message
// Supports plain text content and multimodal parts
//
// Role: "system", "user", or "assistant"
// Content: Text content of the message
// Parts: Optional multimodal parts; when set they replace Content on the wire
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content"`
	Parts   []ContentPart `json:"-"`
}

// ContentPart is one element of a multimodal message
//
// Type: "text" or "image_url"
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL points at an image, either remote or inlined as a data URL
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// TextPart builds a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart builds an image content part
func ImagePart(url, detail string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url, Detail: detail}}
}

// ResponseFormat asks the provider for structured output
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest represents a chat completion request
// Compatible with OpenAI API format. Temperature is a pointer so an explicit 0
// still reaches the provider.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatResponse represents a chat completion response
// Compatible with OpenAI API format
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Error   *Error   `json:"error,omitempty"`
}

// Choice represents a completion choice
//
// FinishReason values: "stop", "length", "content_filter", "tool_calls", "function_call"
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one fragment of a streamed completion.
// A chunk with Err set is the last value sent on the channel.
type StreamChunk struct {
	Content      string
	FinishReason string
	Err          error
}

// streamEvent mirrors the "chat.completion.chunk" payload of a server-sent event
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *Error `json:"error,omitempty"`
}

// TranscriptionResponse is returned by the audio transcription endpoint
type TranscriptionResponse struct {
	Text  string `json:"text"`
	Error *Error `json:"error,omitempty"`
}

// Error represents an API error
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("LLM API Error: %s (type: %s, code: %s)", e.Message, e.Type, e.Code)
}

// UnmarshalJSON accepts both string and numeric error codes
func (e *Error) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Param   string          `json:"param"`
		Code    json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Message = raw.Message
	e.Type = raw.Type
	e.Param = raw.Param
	e.Code = strings.Trim(string(raw.Code), `"`)
	if e.Code == "null" {
		e.Code = ""
	}
	return nil
}

// File represents a file attachment
//
// Name: Original file name
// ContentType: MIME type of the file
// Content: File content as bytes
// URL: Optional URL for the file
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
	URL         string `json:"url,omitempty"`
}

// ChatCompletionOptions represents options for chat completion
//
// SystemPrompt: System prompt to set context
// Model: Overrides the configured model when set
// MaxTokens: Maximum tokens for the response
// Temperature: Temperature for the response
// JSONMode: Ask the provider for a single JSON object
// Stream: Whether to stream the response
type ChatCompletionOptions struct {
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
	JSONMode     bool
	Stream       bool
}

// NewChatCompletionOptions creates a new chat completion options with defaults
func NewChatCompletionOptions() *ChatCompletionOptions {
	return &ChatCompletionOptions{
		MaxTokens:   0, // Use model default
		Temperature: 0.7,
	}
}

// WithSystemPrompt sets the system prompt
func (o *ChatCompletionOptions) WithSystemPrompt(prompt string) *ChatCompletionOptions {
	o.SystemPrompt = prompt
	return o
}

// WithModel overrides the model
func (o *ChatCompletionOptions) WithModel(model string) *ChatCompletionOptions {
	o.Model = model
	return o
}

// WithMaxTokens sets the max tokens
func (o *ChatCompletionOptions) WithMaxTokens(maxTokens int) *ChatCompletionOptions {
	o.MaxTokens = maxTokens
	return o
}

// WithTemperature sets the temperature
func (o *ChatCompletionOptions) WithTemperature(temperature float64) *ChatCompletionOptions {
	o.Temperature = temperature
	return o
}

// WithJSONMode requests structured JSON output
func (o *ChatCompletionOptions) WithJSONMode(enabled bool) *ChatCompletionOptions {
	o.JSONMode = enabled
	return o
}

// WithStream enables streaming response
func (o *ChatCompletionOptions) WithStream(stream bool) *ChatCompletionOptions {
	o.Stream = stream
	return o
}

// NewFileFromPath creates a new file from a file path
// Automatically detects content type based on file extension
func NewFileFromPath(filePath string) (*File, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return &File{
		Name:        filepath.Base(filePath),
		ContentType: getContentTypeFromExtension(filePath),
		Content:     content,
	}, nil
}

// IsImage reports whether the file can be sent as an image part
func (f *File) IsImage() bool {
	return strings.HasPrefix(f.ContentType, "image/")
}

// ToContentPart converts the file into a message part.
// Images become inline data URLs, text files become text parts.
func (f *File) ToContentPart() (ContentPart, error) {
	if f.URL != "" {
		if strings.HasPrefix(getContentTypeFromExtension(f.URL), "image/") {
			return ImagePart(f.URL, "high"), nil
		}
		return TextPart(fmt.Sprintf("File URL: %s\nFile name: %s", f.URL, f.Name)), nil
	}

	if f.IsImage() {
		encoded := base64.StdEncoding.EncodeToString(f.Content)
		return ImagePart(fmt.Sprintf("data:%s;base64,%s", f.ContentType, encoded), "high"), nil
	}

	if isTextFile(f.ContentType) {
		return TextPart(fmt.Sprintf("File: %s\nContent:\n%s", f.Name, string(f.Content))), nil
	}

	return ContentPart{}, fmt.Errorf("file %s has unsupported content type %s", f.Name, f.ContentType)
}

// ToMultipart converts the file to a multipart form field
func (f *File) ToMultipart(writer *multipart.Writer, fieldName string) error {
	part, err := writer.CreateFormFile(fieldName, f.Name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}

	_, err = part.Write(f.Content)
	return err
}

func getContentTypeFromExtension(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".csv":
		return "text/csv"
	case ".html", ".htm":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func isTextFile(contentType string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	switch contentType {
	case "application/json", "application/xml", "application/javascript":
		return true
	}
	return false
}

// MarshalJSON sends Parts as the content array when present and plain text otherwise
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) > 0 {
		return json.Marshal(&struct {
			Role    string        `json:"role"`
			Content []ContentPart `json:"content"`
		}{
			Role:    m.Role,
			Content: m.Parts,
		})
	}
	return json.Marshal(&struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{
		Role:    m.Role,
		Content: m.Content,
	})
}
