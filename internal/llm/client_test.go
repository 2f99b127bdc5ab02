package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *Config {
	return &Config{
		APIKey:      "test-key",
		APIURL:      url,
		Model:       "test-model",
		MaxTokens:   1000,
		Temperature: 0.7,
		Timeout:     30,
	}
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "test-id",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	})
	return string(body)
}

func TestNewClient(t *testing.T) {
	config := testConfig("https://api.example.com/")

	client, err := NewClient(config)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, config, client.config)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.Nil(t, client.limiter)

	config.RequestsPerMinute = 30
	client, err = NewClient(config)
	require.NoError(t, err)
	assert.NotNil(t, client.limiter)

	// Test with invalid config
	_, err = NewClient(&Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestClientWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		_, _ = w.Write([]byte(completionBody("Hello! This is a test response.")))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	messages := []Message{
		{Role: "user", Content: "Hello, how are you?"},
	}

	response, err := client.ChatCompletion(context.Background(), messages, nil)
	require.NoError(t, err)
	assert.Equal(t, "test-id", response.ID)
	assert.Equal(t, "test-model", response.Model)
	assert.Len(t, response.Choices, 1)
	assert.Equal(t, "Hello! This is a test response.", response.Choices[0].Message.Content)
	assert.Equal(t, 30, response.Usage.TotalTokens)
}

func TestClientRequestShape(t *testing.T) {
	var got ChatRequest
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &raw)
		var req struct {
			Model          string          `json:"model"`
			MaxTokens      int             `json:"max_tokens"`
			ResponseFormat *ResponseFormat `json:"response_format"`
			Messages       []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)
		got.Model = req.Model
		got.MaxTokens = req.MaxTokens
		got.ResponseFormat = req.ResponseFormat
		for _, m := range req.Messages {
			got.Messages = append(got.Messages, Message{Role: m.Role, Content: string(m.Content)})
		}
		_, _ = w.Write([]byte(completionBody(`{"tool":"final_answer"}`)))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	opts := NewChatCompletionOptions().
		WithSystemPrompt("pick a tool").
		WithModel("override-model").
		WithJSONMode(true)
	content, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "task"}}, opts)
	require.NoError(t, err)
	assert.Equal(t, `{"tool":"final_answer"}`, content)

	assert.Equal(t, "override-model", got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	assert.Equal(t, `"pick a tool"`, got.Messages[0].Content)
	assert.NotContains(t, raw, "stream")
	assert.Equal(t, 0.7, raw["temperature"])
}

func TestClientSendsZeroTemperature(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &raw)
		_, _ = w.Write([]byte(completionBody(`{"tool":"final_answer"}`)))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	opts := NewChatCompletionOptions().WithJSONMode(true).WithTemperature(0)
	_, err = client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "task"}}, opts)
	require.NoError(t, err)

	require.Contains(t, raw, "temperature")
	assert.Equal(t, float64(0), raw["temperature"])
	assert.Equal(t, map[string]any{"type": "json_object"}, raw["response_format"])
}

func TestClientErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{
			"error": {
				"message": "Invalid API key",
				"type": "authentication_error",
				"code": "401"
			}
		}`))
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.APIKey = "invalid-key"
	client, err := NewClient(config)
	require.NoError(t, err)

	response, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	require.NotNil(t, response)
	require.NotNil(t, response.Error)
	assert.Equal(t, "Invalid API key", response.Error.Message)

	var apiErr *Error
	assert.ErrorAs(t, err, &apiErr)
}

func TestClientStatusErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestSimpleChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("Simple chat response")))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	response, err := client.SimpleChat(context.Background(), "Hello", "You are a helpful assistant")
	require.NoError(t, err)
	assert.Equal(t, "Simple chat response", response)
}

func TestCompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestChatWithFiles(t *testing.T) {
	var contentKinds []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content []ContentPart `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err == nil {
			for _, m := range req.Messages {
				for _, p := range m.Content {
					contentKinds = append(contentKinds, p.Type)
				}
			}
		}
		_, _ = w.Write([]byte(completionBody("I can see your file content")))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	files := []File{
		{Name: "test.txt", ContentType: "text/plain", Content: []byte("This is test file content")},
		{Name: "chart.png", ContentType: "image/png", Content: []byte{1, 2, 3}},
	}

	response, err := client.ChatWithFiles(context.Background(), "Summarize this", files, "")
	require.NoError(t, err)
	assert.Equal(t, "I can see your file content", response)
	assert.Equal(t, []string{"text", "text", "image_url"}, contentKinds)
}

func TestStreamComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, frag := range []string{"1. Search", " the web", "\n2. Answer"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", frag)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	var fragments []string
	text, err := client.StreamComplete(context.Background(), []Message{{Role: "user", Content: "plan"}}, nil, func(s string) {
		fragments = append(fragments, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "1. Search the web\n2. Answer", text)
	assert.Equal(t, []string{"1. Search", " the web", "\n2. Answer"}, fragments)
}

func TestStreamCompleteErrors(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
		}))
		defer server.Close()

		client, err := NewClient(testConfig(server.URL))
		require.NoError(t, err)

		_, err = client.StreamComplete(context.Background(), []Message{{Role: "user", Content: "plan"}}, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("malformed event", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
			fmt.Fprint(w, "data: {broken\n\n")
		}))
		defer server.Close()

		client, err := NewClient(testConfig(server.URL))
		require.NoError(t, err)

		text, err := client.StreamComplete(context.Background(), []Message{{Role: "user", Content: "plan"}}, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse stream event")
		assert.Equal(t, "ok", text)
	})
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "names are Polish", r.FormValue("prompt"))
		_, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			assert.Equal(t, "rafal.m4a", header.Filename)
		}

		_, _ = w.Write([]byte(`{"text":"transcribed speech"}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	text, err := client.Transcribe(context.Background(), &File{Name: "rafal.m4a", ContentType: "audio/mp4", Content: []byte("audio")}, "names are Polish")
	require.NoError(t, err)
	assert.Equal(t, "transcribed speech", text)

	_, err = client.Transcribe(context.Background(), &File{Name: "empty.mp3"}, "")
	assert.Error(t, err)
}

func TestClientGetModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"data": [
				{"id": "test-model-1", "name": "Test Model 1"},
				{"id": "test-model-2", "name": "Test Model 2"}
			]
		}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	models, err := client.GetModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "test-model-1", models[0].ID)
}

func TestClientRateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.RequestsPerMinute = 1
	client, err := NewClient(config)
	require.NoError(t, err)

	_, err = client.SimpleChat(context.Background(), "first", "")
	require.NoError(t, err)

	// The second call would wait a full minute for a token.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.SimpleChat(ctx, "second", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestClientConcurrentRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("Response")))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	ctx := context.Background()
	messages := []Message{
		{Role: "user", Content: "Hello"},
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.ChatCompletion(ctx, messages, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestInvalidJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "Hello"}}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}

const (
	defaultAPIURL = "https://openrouter.ai/api/v1"
	defaultModel  = "google/gemini-2.5-flash"
)

// TestOpenRouterIntegration tests actual connection to the provider
// This test is skipped unless LLM_API_KEY is set
func TestOpenRouterIntegration(t *testing.T) {
	_ = godotenv.Load("./.env")
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		t.Skip("Set LLM_API_KEY environment variable to run this test")
	}

	config := &Config{
		APIKey:      apiKey,
		APIURL:      defaultAPIURL,
		Model:       defaultModel,
		MaxTokens:   100,
		Temperature: 0.7,
		Timeout:     30,
	}

	client, err := NewClient(config)
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("SimpleChat", func(t *testing.T) {
		response, err := client.SimpleChat(ctx, "Hello, can you hear me?", "You are a helpful assistant. Reply briefly.")
		assert.NoError(t, err)
		assert.NotEmpty(t, response)
	})

	t.Run("JSONMode", func(t *testing.T) {
		opts := NewChatCompletionOptions().WithJSONMode(true).WithSystemPrompt(`Reply with {"ok": true} only.`)
		response, err := client.Complete(ctx, []Message{{Role: RoleUser, Content: "ping"}}, opts)
		assert.NoError(t, err)
		assert.True(t, json.Valid([]byte(strings.TrimSpace(response))))
	})
}
