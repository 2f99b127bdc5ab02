package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListFiles returns the regular files directly inside dir, sorted by name.
// When exts is non-empty only files with one of those extensions are kept
// (compared case-insensitively, with or without the leading dot).
func ListFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[normalizeExt(ext)] = struct{}{}
	}

	ret := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[normalizeExt(filepath.Ext(entry.Name()))]; !ok {
				continue
			}
		}
		ret = append(ret, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(ret)
	return ret, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
