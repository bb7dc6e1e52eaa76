package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var ErrEmptyPath = errors.New("path cannot be empty")

// ResolvePath expands a leading `~` and returns a clean absolute path.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = filepath.Join(home, path[1:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func EnsureParent(path string) error {
	return EnsureDir(filepath.Dir(path))
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o700)
}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
