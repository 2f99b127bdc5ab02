package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
defaults:
  timeout: 5s
  headers:
    Accept: application/json
tools:
  - name: people_lookup
    description: Finds the cities a person was seen in
    method: post
    url: https://centrala.example.com/people
    required:
      query: First name in uppercase without Polish characters
  - name: weather
    description: Current weather for a city
    url: https://weather.example.com/{city}/now
    timeout: 1s
    required:
      city: City name
    optional:
      units: metric or imperial
`)

	manifestTools, err := ParseManifest(data)
	require.NoError(t, err)
	require.Len(t, manifestTools, 2)

	people := manifestTools[0].(*HTTPTool)
	assert.Equal(t, "POST", people.cfg.Method)
	assert.Equal(t, 5*time.Second, people.cfg.Timeout)
	assert.Equal(t, "application/json", people.cfg.Headers["Accept"])

	weather := manifestTools[1].(*HTTPTool)
	assert.Equal(t, "GET", weather.cfg.Method)
	assert.Equal(t, time.Second, weather.cfg.Timeout)

	spec := weather.Spec()
	assert.Equal(t, "weather", spec.Name)
	assert.Contains(t, spec.Required, "city")
	assert.Contains(t, spec.Optional, "units")
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"not yaml", "tools: [", "failed to parse"},
		{"missing name", "tools:\n  - url: https://x\n", "name is required"},
		{"missing url", "tools:\n  - name: a\n", "url is required"},
		{"bad method", "tools:\n  - name: a\n    url: https://x\n    method: TRACE\n", "unsupported method"},
		{"path param not required", "tools:\n  - name: a\n    url: https://x/{id}\n", "{id}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHTTPTool_Execute(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "/cities/New York/now", r.URL.Path)
			assert.Equal(t, "metric", r.URL.Query().Get("units"))
			assert.Empty(t, r.URL.Query().Get("city"))
			assert.Equal(t, "secret", r.Header.Get("X-Key"))
			_, _ = w.Write([]byte("12C"))
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &gotBody)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("bad query"))
		}
	}))
	defer server.Close()

	weather, err := NewHTTPTool(HTTPToolConfig{
		Name:     "weather",
		URL:      server.URL + "/cities/{city}/now",
		Headers:  map[string]string{"X-Key": "[[WEATHER_KEY]]"},
		Required: map[string]string{"city": "City"},
	})
	require.NoError(t, err)
	weather.lookup = envLookup(map[string]string{"WEATHER_KEY": "secret"})

	result, err := weather.Execute(context.Background(), NewPayload(map[string]any{"city": "New York", "units": "metric"}))
	require.NoError(t, err)
	assert.Equal(t, "12C", result.Content)

	people, err := NewHTTPTool(HTTPToolConfig{Name: "people", Method: "POST", URL: server.URL + "/people"})
	require.NoError(t, err)

	result, err = people.Execute(context.Background(), NewPayload(map[string]any{"query": "BARBARA"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "400")
	assert.Equal(t, "BARBARA", gotBody["query"])
}

func TestRegisterManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  - name: ping\n    url: https://example.com/ping\n"), 0o644))

	r := NewRegistry()
	n, err := RegisterManifest(r, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"ping"}, r.List())

	_, err = RegisterManifest(r, path)
	var dup *DuplicateToolError
	assert.ErrorAs(t, err, &dup)

	_, err = RegisterManifest(r, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
