package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp3", "a.MP3", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.mp3"), 0o755))

	all, err := ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.MP3"),
		filepath.Join(dir, "b.mp3"),
		filepath.Join(dir, "notes.txt"),
	}, all)

	audio, err := ListFiles(dir, "mp3")
	require.NoError(t, err)
	assert.Len(t, audio, 2)

	_, err = ListFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		want string
	}{
		{path: "/data/audio/rafal.m4a", ext: ".txt", want: "/data/audio/rafal.txt"},
		{path: "/data/audio/rafal.m4a", ext: "txt", want: "/data/audio/rafal.txt"},
		{path: "/data/archive.tar.gz", ext: ".zip", want: "/data/archive.tar.zip"},
		{path: "/data/.env", ext: ".bak", want: "/data/.env.bak"},
		{path: "README", ext: "md", want: "README.md"},
		{path: "", ext: ".txt", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.path+tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceExt(tt.path, tt.ext))
		})
	}
}
