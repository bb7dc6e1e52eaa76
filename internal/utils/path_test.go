package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty", input: "", wantErr: true},
		{name: "absolute", input: "/tmp/davsync/../davsync", want: "/tmp/davsync"},
		{name: "home", input: "~", want: home},
		{name: "home relative", input: "~/.davsync/config.json", want: filepath.Join(home, ".davsync", "config.json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePath_Relative(t *testing.T) {
	got, err := ResolvePath("./data")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "data", filepath.Base(got))
}

func TestEnsureParent(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a", "b", "store.db")

	require.NoError(t, EnsureParent(file))
	assert.True(t, DirExists(filepath.Join(root, "a", "b")))
	assert.False(t, FileExists(file))

	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.True(t, FileExists(file))
	assert.False(t, DirExists(file))

	// idempotent
	require.NoError(t, EnsureDir(filepath.Join(root, "a")))
}
