package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext. Dotfiles such as ".env"
// are treated as having no extension.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}

	dir, name := filepath.Split(path)
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return filepath.Join(dir, name+normalizeExtKeepCase(ext))
}

func normalizeExtKeepCase(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}
