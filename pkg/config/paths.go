package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// windows: C:\Users\{user}\AppData\Roaming\tunekit
// macOS: ~/Library/Application Support/tunekit
// linux: ~/.config/tunekit
func GetConfigDir() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				panic(fmt.Sprintf("failed to get user home directory: %v", err))
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "tunekit")

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			panic(fmt.Sprintf("failed to get user home directory: %v", err))
		}
		configDir = filepath.Join(home, "Library", "Application Support", "tunekit")

	default:
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				panic(fmt.Sprintf("failed to get user home directory: %v", err))
			}
			xdgConfig = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(xdgConfig, "tunekit")
	}

	return configDir
}

// windows: C:\Users\{user}\AppData\Local\tunekit
// macOS: ~/Library/Caches/tunekit
// linux: ~/.cache/tunekit
func GetCacheDir() string {
	var cacheDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				panic(fmt.Sprintf("failed to get user home directory: %v", err))
			}
			localAppData = filepath.Join(home, "AppData", "Local")
		}
		cacheDir = filepath.Join(localAppData, "tunekit")

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			panic(fmt.Sprintf("failed to get user home directory: %v", err))
		}
		cacheDir = filepath.Join(home, "Library", "Caches", "tunekit")

	default:
		xdgCache := os.Getenv("XDG_CACHE_HOME")
		if xdgCache == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				panic(fmt.Sprintf("failed to get user home directory: %v", err))
			}
			xdgCache = filepath.Join(home, ".cache")
		}
		cacheDir = filepath.Join(xdgCache, "tunekit")
	}

	return cacheDir
}

func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

func GetHubCacheDir() string {
	return filepath.Join(GetCacheDir(), "hub")
}
