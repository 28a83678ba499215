// Package config holds path helpers and the pipeline tunables.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading tilde and any $VAR environment
// references in a configured file path. Unresolvable parts are left
// as-is rather than erroring, so a bad config still produces a usable
// error message downstream when the path is opened.
func ExpandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
