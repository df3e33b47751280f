package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/agentdk"
	projectConfigDir = ".agentdk"
	configFileName   = "config.yaml"
)

// LoadConfig loads the agentdk configuration by layering default, user, and
// project settings. The project file wins over the user file, which wins
// over the built-in defaults.
func LoadConfig() (Config, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional; warn and continue with defaults.
		fmt.Fprintf(os.Stderr, "Warning: could not determine user config path: %v\n", err)
	} else if fileExists(userConfigPath) {
		userConfig, err := loadConfigFromFile(userConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
		config = mergeConfigs(config, userConfig)
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not determine project config path: %v\n", err)
	} else if fileExists(projectConfigPath) {
		projectConfig, err := loadConfigFromFile(projectConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
		config = mergeConfigs(config, projectConfig)
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigFile loads a single configuration file layered over the defaults,
// bypassing the user/project search. Used by the --config flag.
func LoadConfigFile(path string) (Config, error) {
	fileConfig, err := loadConfigFromFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	config := mergeConfigs(GetDefaultConfig(), fileConfig)
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// loadConfigFromFile loads a Config from a YAML file.
func loadConfigFromFile(filePath string) (Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error parsing YAML: %w", err)
	}
	return config, nil
}

// mergeConfigs overlays the non-zero fields of overlay on top of base.
// Server lists are merged by name: an overlay entry replaces a base entry
// with the same name, otherwise it is appended.
func mergeConfigs(base, overlay Config) Config {
	merged := base

	if overlay.Agent.Name != "" {
		merged.Agent.Name = overlay.Agent.Name
	}
	if overlay.Agent.LogLevel != "" {
		merged.Agent.LogLevel = overlay.Agent.LogLevel
	}
	if overlay.Agent.CloseTimeout != 0 {
		merged.Agent.CloseTimeout = overlay.Agent.CloseTimeout
	}
	if overlay.Agent.ShutdownTimeout != 0 {
		merged.Agent.ShutdownTimeout = overlay.Agent.ShutdownTimeout
	}
	if overlay.Agent.ToolRetries != 0 {
		merged.Agent.ToolRetries = overlay.Agent.ToolRetries
	}

	for _, spec := range overlay.Servers {
		replaced := false
		for i, existing := range merged.Servers {
			if existing.Name == spec.Name {
				merged.Servers[i] = spec
				replaced = true
				break
			}
		}
		if !replaced {
			merged.Servers = append(merged.Servers, spec)
		}
	}

	return merged
}
