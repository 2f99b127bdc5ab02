package tools

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/MimeLyc/taskagent/pkg/file"
)

const defaultReadLimit = 64 * 1024

// ReadFileTool returns the text content of a local file
type ReadFileTool struct {
	baseDir string
}

// NewReadFileTool creates the read_file tool. Relative paths resolve against baseDir.
func NewReadFileTool(baseDir string) *ReadFileTool {
	return &ReadFileTool{baseDir: baseDir}
}

func (t *ReadFileTool) Spec() Spec {
	return Spec{
		Name:        "read_file",
		Description: "Reads a local text file and returns its content.",
		Required: map[string]string{
			"path": "Path of the file to read",
		},
		Optional: map[string]string{
			"max_bytes": "Maximum number of bytes to return (default 65536)",
		},
	}
}

func (t *ReadFileTool) Execute(_ context.Context, payload Payload) (ToolResult, error) {
	path := resolvePath(t.baseDir, payload.String("path"))
	limit := payload.Int("max_bytes", defaultReadLimit)
	if limit <= 0 {
		limit = defaultReadLimit
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Errorf("file %s does not exist", path), nil
		}
		return Errorf("open %s: %v", path, err), nil
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return Errorf("read %s: %v", path, err), nil
	}
	truncated := len(data) > limit
	if truncated {
		data = data[:limit]
	}
	if !utf8.Valid(data) && !truncated {
		return Errorf("file %s is not a text file", path), nil
	}

	content := string(data)
	if truncated {
		content += "\n[truncated]"
	}
	return ToolResult{Content: content}, nil
}

// ListFilesTool lists the files of a directory
type ListFilesTool struct {
	baseDir string
}

// NewListFilesTool creates the list_files tool
func NewListFilesTool(baseDir string) *ListFilesTool {
	return &ListFilesTool{baseDir: baseDir}
}

func (t *ListFilesTool) Spec() Spec {
	return Spec{
		Name:        "list_files",
		Description: "Lists the files in a directory (not recursive).",
		Required: map[string]string{
			"dir": "Directory to list",
		},
		Optional: map[string]string{
			"ext": "Comma separated extensions to keep, e.g. .txt,.png",
		},
	}
}

func (t *ListFilesTool) Execute(_ context.Context, payload Payload) (ToolResult, error) {
	dir := resolvePath(t.baseDir, payload.String("dir"))

	var exts []string
	for _, ext := range strings.Split(payload.String("ext"), ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			exts = append(exts, ext)
		}
	}

	paths, err := file.ListFiles(dir, exts...)
	if err != nil {
		return Errorf("list %s: %v", dir, err), nil
	}
	if len(paths) == 0 {
		return ToolResult{Content: "No files found."}, nil
	}

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return ToolResult{Content: strings.Join(names, "\n")}, nil
}

func resolvePath(baseDir, path string) string {
	path = strings.TrimSpace(path)
	if baseDir == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}
