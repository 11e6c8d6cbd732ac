package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the config file inside the home directory.
const FileName = "config.yaml"

// GetHome returns the shellagent home directory
// Priority order:
//  1. override (the --home flag), if non-empty
//  2. SHELLAGENT_HOME environment variable (if set)
//  3. ~/.shellagent
//
// The directory is created if it doesn't exist
func GetHome(override string) (string, error) {
	home := override
	if home == "" {
		home = os.Getenv("SHELLAGENT_HOME")
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		home = filepath.Join(userHome, ".shellagent")
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create shellagent home directory: %w", err)
	}
	return home, nil
}

// PathIn returns the config file path for home.
func PathIn(home string) string {
	return filepath.Join(home, FileName)
}
