package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestExpandPlaceholders(t *testing.T) {
	lookup := envLookup(map[string]string{"API_KEY": "secret", "REGION": "eu"})

	got, err := ExpandPlaceholders("https://api.example.com/[[REGION]]/data?key=[[API_KEY]]", lookup)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/eu/data?key=secret", got)

	got, err = ExpandPlaceholders("https://plain.example.com", lookup)
	require.NoError(t, err)
	assert.Equal(t, "https://plain.example.com", got)

	_, err = ExpandPlaceholders("https://api.example.com/[[MISSING]]", lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING")
}

func TestAPICallTool_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/verify/secret", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))

		body, _ := io.ReadAll(r.Body)
		var got map[string]any
		_ = json.Unmarshal(body, &got)
		assert.Equal(t, "READY", got["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"msg":"OK"}`))
	}))
	defer server.Close()

	tool := NewAPICallTool(0)
	tool.lookup = envLookup(map[string]string{"TOKEN": "secret"})

	result, err := tool.Execute(context.Background(), NewPayload(map[string]any{
		"url":     server.URL + "/verify/[[TOKEN]]",
		"method":  "post",
		"payload": map[string]any{"text": "READY"},
		"headers": map[string]any{"X-Test": "yes"},
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"code":0,"msg":"OK"}`, result.Content)
}

func TestAPICallTool_GetWithQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Warsaw", r.URL.Query().Get("city"))
		assert.Equal(t, "3", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte("sunny"))
	}))
	defer server.Close()

	payload, err := ParsePayload([]byte(`{"url": "` + server.URL + `", "method": "GET", "payload": {"city": "Warsaw", "days": 3}}`))
	require.NoError(t, err)

	result, err := NewAPICallTool(0).Execute(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "sunny", result.Content)
}

func TestAPICallTool_Failures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer server.Close()

	tool := NewAPICallTool(0)
	tool.lookup = envLookup(nil)

	t.Run("non-2xx is a recoverable result", func(t *testing.T) {
		result, err := tool.Execute(context.Background(), NewPayload(map[string]any{"url": server.URL, "method": "DELETE"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, result.Content, "403")
		assert.Contains(t, result.Content, "nope")
	})

	t.Run("invalid method", func(t *testing.T) {
		result, err := tool.Execute(context.Background(), NewPayload(map[string]any{"url": server.URL, "method": "TRACE"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, result.Content, "invalid HTTP method")
	})

	t.Run("missing placeholder aborts", func(t *testing.T) {
		_, err := tool.Execute(context.Background(), NewPayload(map[string]any{"url": server.URL + "/[[NOPE]]", "method": "GET"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NOPE")
	})
}

func TestWebScrapeTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/https://example.com/page", r.URL.Path)
		assert.Equal(t, "Bearer jina-key", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.Header.Get("X-With-Links-Summary"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":{"title":"Page","url":"https://example.com/page","content":"# Page\nhello"}}`))
	}))
	defer server.Close()

	tool := NewWebScrapeTool("jina-key", server.URL+"/")
	assert.Equal(t, "web_scrape", tool.Spec().Name)

	result, err := tool.Execute(context.Background(), NewPayload(map[string]any{"url": "https://example.com/page"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "# Page\nhello", result.Content)
}

func TestWebScrapeTool_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("cannot fetch"))
	}))
	defer server.Close()

	result, err := NewWebScrapeTool("", server.URL).Execute(context.Background(), NewPayload(map[string]any{"url": "https://bad"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "422")
}

func TestFinalAnswerTool(t *testing.T) {
	tool := NewFinalAnswerTool("")
	assert.Equal(t, DefaultTerminalTool, tool.Spec().Name)
	assert.Contains(t, tool.Spec().Required, "answer")

	result, err := tool.Execute(context.Background(), NewPayload(map[string]any{"answer": []any{"a", "b"}}))
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, result.Content)

	assert.Equal(t, "submit", NewFinalAnswerTool("submit").Spec().Name)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		// "é" is two bytes; a cut inside it backs off to the rune start
		{"aé", 2, "a..."},
		{"日本語", 4, "日..."},
		{"日本語", 6, "日本..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.limit)
		assert.Equal(t, tt.want, got, "truncate(%q, %d)", tt.in, tt.limit)
		assert.True(t, utf8.ValidString(got))
	}
}
