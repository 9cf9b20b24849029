package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// configDirName is a directory in the user's config directory where jiragate configuration is stored
	configDirName string = "jiragate"
)

func MustJiragateConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		panic(fmt.Errorf("cannot obtain user config dir: %w", err))
	}

	jiragateConfigDir := filepath.Join(configDir, configDirName)
	return jiragateConfigDir
}
