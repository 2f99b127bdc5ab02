package tools

import (
	"fmt"
	"time"
)

// BuiltinOptions selects and configures the built-in tools
//
// Tools whose backend is not configured are skipped: web_search without a
// search key, describe_image without a vision model, transcribe_audio
// without a transcriber.
type BuiltinOptions struct {
	TerminalTool string
	HTTPTimeout  time.Duration
	SearchAPIKey string
	SearchAPIURL string
	JinaAPIKey   string
	JinaBaseURL  string
	BaseDir      string
	Vision       VisionModel
	Transcriber  Transcriber
}

// RegisterBuiltins registers the built-in tools on r
func RegisterBuiltins(r *Registry, opts BuiltinOptions) error {
	builtins := []Tool{
		NewFinalAnswerTool(opts.TerminalTool),
		NewAPICallTool(opts.HTTPTimeout),
		NewWebScrapeTool(opts.JinaAPIKey, opts.JinaBaseURL),
		NewReadFileTool(opts.BaseDir),
		NewListFilesTool(opts.BaseDir),
	}
	if opts.SearchAPIKey != "" {
		builtins = append(builtins, NewWebSearchTool(opts.SearchAPIKey, opts.SearchAPIURL))
	}
	if opts.Vision != nil {
		builtins = append(builtins, NewDescribeImageTool(opts.Vision, opts.BaseDir))
	}
	if opts.Transcriber != nil {
		builtins = append(builtins, NewTranscribeAudioTool(opts.Transcriber, opts.BaseDir))
	}

	for _, tool := range builtins {
		if err := r.Register(tool); err != nil {
			return fmt.Errorf("register builtin: %w", err)
		}
	}
	return nil
}

// RegisterManifest loads a YAML manifest and registers every tool it declares
func RegisterManifest(r *Registry, path string) (int, error) {
	manifestTools, err := LoadManifest(path)
	if err != nil {
		return 0, err
	}
	for _, tool := range manifestTools {
		if err := r.Register(tool); err != nil {
			return 0, fmt.Errorf("register %s: %w", path, err)
		}
	}
	return len(manifestTools), nil
}
