// Package paths resolves taskgraph's default locations under the user's
// home directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeDir returns the user's home directory.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return home, nil
}

// DefaultDataDir returns the default taskgraph data directory.
func DefaultDataDir() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "taskgraph"), nil
}

// GlobalConfigPath returns the path of the per-user config file.
func GlobalConfigPath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "taskgraph", "config.toml"), nil
}
