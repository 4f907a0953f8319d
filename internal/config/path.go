// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves the path forms accepted in residio configuration:
// a leading ~ for the home directory and $VAR environment references. Used
// for database.path and gmail.token_file, which operators commonly set
// relative to $HOME.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	switch {
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
