package tools

import (
	"context"
	"path"
	"strings"

	"github.com/MimeLyc/taskagent/internal/llm"
)

const defaultImagePrompt = "Describe this image in detail. Transcribe any visible text exactly."

// VisionModel answers a prompt about attached files
type VisionModel interface {
	ChatWithFiles(ctx context.Context, prompt string, files []llm.File, systemPrompt string) (string, error)
}

// Transcriber turns an audio file into text
type Transcriber interface {
	Transcribe(ctx context.Context, file *llm.File, prompt string) (string, error)
}

// DescribeImageTool asks a vision model about a local or remote image
type DescribeImageTool struct {
	model   VisionModel
	baseDir string
}

// NewDescribeImageTool creates the describe_image tool
func NewDescribeImageTool(model VisionModel, baseDir string) *DescribeImageTool {
	return &DescribeImageTool{model: model, baseDir: baseDir}
}

func (t *DescribeImageTool) Spec() Spec {
	return Spec{
		Name:        "describe_image",
		Description: "Looks at an image (local path or http URL) and answers a question about it.",
		Required: map[string]string{
			"path": "Local path or URL of the image",
		},
		Optional: map[string]string{
			"prompt": "What to look for in the image",
		},
	}
}

func (t *DescribeImageTool) Execute(ctx context.Context, payload Payload) (ToolResult, error) {
	f, err := t.load(payload.String("path"))
	if err != nil {
		return Errorf("%v", err), nil
	}
	if f.URL == "" && !f.IsImage() {
		return Errorf("%s is not an image (%s)", f.Name, f.ContentType), nil
	}

	prompt := payload.String("prompt")
	if prompt == "" {
		prompt = defaultImagePrompt
	}

	answer, err := t.model.ChatWithFiles(ctx, prompt, []llm.File{*f}, "")
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Content: answer}, nil
}

func (t *DescribeImageTool) load(location string) (*llm.File, error) {
	location = strings.TrimSpace(location)
	if isRemote(location) {
		return &llm.File{Name: path.Base(location), URL: location}, nil
	}
	return llm.NewFileFromPath(resolvePath(t.baseDir, location))
}

// TranscribeAudioTool converts a local audio file to text
type TranscribeAudioTool struct {
	transcriber Transcriber
	baseDir     string
}

// NewTranscribeAudioTool creates the transcribe_audio tool
func NewTranscribeAudioTool(transcriber Transcriber, baseDir string) *TranscribeAudioTool {
	return &TranscribeAudioTool{transcriber: transcriber, baseDir: baseDir}
}

func (t *TranscribeAudioTool) Spec() Spec {
	return Spec{
		Name:        "transcribe_audio",
		Description: "Transcribes a local audio recording to text.",
		Required: map[string]string{
			"path": "Path of the audio file",
		},
		Optional: map[string]string{
			"prompt": "Spelling hints such as names that appear in the recording",
		},
	}
}

func (t *TranscribeAudioTool) Execute(ctx context.Context, payload Payload) (ToolResult, error) {
	f, err := llm.NewFileFromPath(resolvePath(t.baseDir, payload.String("path")))
	if err != nil {
		return Errorf("%v", err), nil
	}

	text, err := t.transcriber.Transcribe(ctx, f, payload.String("prompt"))
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Content: text}, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
