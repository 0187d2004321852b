package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

var DebugLog func(string, ...interface{})

type Config struct {
	Registry        Registry        `yaml:"registry"`
	Elastic         Elastic         `yaml:"elastic"`
	Harness         Harness         `yaml:"harness"`
	Hub             Hub             `yaml:"hub"`
	DefaultSettings DefaultSettings `yaml:"default_settings"`
}

type Registry struct {
	Enabled  bool   `yaml:"enabled"`
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
}

type Elastic struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"`
}

type Harness struct {
	Endpoint string `yaml:"endpoint"`
	TokenEnv string `yaml:"token_env"`
}

type Hub struct {
	Endpoint string `yaml:"endpoint"`
	TokenEnv string `yaml:"token_env"`
	Offline  bool   `yaml:"offline"`
}

type DefaultSettings struct {
	Timeout int  `yaml:"timeout"`
	Strict  bool `yaml:"strict"`
	GPUs    int  `yaml:"gpus"`
}

// DefaultConfig is what the tool runs with when no config file exists:
// hub lookups on, registry off until the user opts in.
func DefaultConfig() *Config {
	return &Config{
		Registry: Registry{
			Driver: "sqlite",
			Port:   5432,
			Name:   "tunekit",
			Path:   filepath.Join(GetConfigDir(), "runs.db"),
		},
		Elastic: Elastic{
			Index: "tunekit_runs",
		},
		Harness: Harness{
			TokenEnv: "TUNEKIT_HARNESS_TOKEN",
		},
		Hub: Hub{
			Endpoint: "https://huggingface.co",
			TokenEnv: "HF_TOKEN",
		},
		DefaultSettings: DefaultSettings{
			Timeout: 15,
		},
	}
}

type Manager struct {
	config     *Config
	configPath string
}

func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
	}
}

// LoadConfig reads the tool config, layering file values over the
// defaults and environment overrides over both. A missing file is not
// an error; the defaults keep every local command working.
func (m *Manager) LoadConfig() error {
	if m.configPath == "" {
		m.configPath = m.findConfigFile()
	}

	config := DefaultConfig()

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		if DebugLog != nil {
			DebugLog("no config file at %s, using defaults", m.configPath)
		}
	} else {
		if DebugLog != nil {
			DebugLog("loading tool config from %s", m.configPath)
		}

		data, err := os.ReadFile(m.configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := m.validateConfig(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if DebugLog != nil {
		m.logConfiguredSections(config)
	}

	m.config = config
	return nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TUNEKIT_DB_DRIVER"); v != "" {
		config.Registry.Driver = v
		config.Registry.Enabled = true
	}
	if v := os.Getenv("TUNEKIT_DB_PATH"); v != "" {
		config.Registry.Path = v
		config.Registry.Enabled = true
	}
	if v := os.Getenv("TUNEKIT_DB_HOST"); v != "" {
		config.Registry.Host = v
	}
	if v := os.Getenv("TUNEKIT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Registry.Port = port
		}
	}
	if v := os.Getenv("TUNEKIT_DB_USER"); v != "" {
		config.Registry.User = v
	}
	if v := os.Getenv("TUNEKIT_DB_PASSWORD"); v != "" {
		config.Registry.Password = v
	}
	if v := os.Getenv("TUNEKIT_ES_URL"); v != "" {
		config.Elastic.URL = v
	}
	if v := os.Getenv("TUNEKIT_ES_INDEX"); v != "" {
		config.Elastic.Index = v
	}
	if v := os.Getenv("TUNEKIT_HARNESS_ENDPOINT"); v != "" {
		config.Harness.Endpoint = v
	}
	if v := os.Getenv("TUNEKIT_HUB_ENDPOINT"); v != "" {
		config.Hub.Endpoint = v
	}
	if v := os.Getenv("TUNEKIT_HUB_OFFLINE"); v != "" {
		config.Hub.Offline = v == "1" || v == "true"
	}
}

func (m *Manager) logConfiguredSections(config *Config) {
	if config.Registry.Enabled {
		DebugLog("registry enabled: driver %s", config.Registry.Driver)
	}
	if config.Elastic.URL != "" {
		DebugLog("elastic indexing configured: %s", config.Elastic.URL)
	}
	if config.Harness.Endpoint != "" {
		DebugLog("harness endpoint configured: %s", config.Harness.Endpoint)
	}
	if config.Hub.Offline {
		DebugLog("hub lookups disabled (offline)")
	}
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

func (m *Manager) ConfigPath() string {
	return m.configPath
}

func (m *Manager) findConfigFile() string {
	if _, err := os.Stat("tunekit.yaml"); err == nil {
		return "tunekit.yaml"
	}

	return GetDefaultConfigPath()
}

func (m *Manager) validateConfig(config *Config) error {
	if config.DefaultSettings.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}

	if config.Registry.Enabled {
		switch config.Registry.Driver {
		case "sqlite":
			if config.Registry.Path == "" {
				return fmt.Errorf("registry driver sqlite requires a path")
			}
		case "postgres":
			if config.Registry.Host == "" {
				return fmt.Errorf("registry driver postgres requires a host")
			}
			if config.Registry.Port <= 0 || config.Registry.Port > 65535 {
				return fmt.Errorf("registry port %d is out of range", config.Registry.Port)
			}
		default:
			return fmt.Errorf("unknown registry driver: %s", config.Registry.Driver)
		}
	}

	if config.Elastic.URL != "" && config.Elastic.Index == "" {
		return fmt.Errorf("elastic indexing requires an index name")
	}

	return nil
}

// Save writes the loaded config back to its path, creating the config
// directory on first use.
func (m *Manager) Save() error {
	if m.config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if DebugLog != nil {
		DebugLog("wrote tool config to %s", m.configPath)
	}
	return nil
}

// HubToken resolves the hub auth token from the configured environment
// variable. Empty when unset.
func (c *Config) HubToken() string {
	if c.Hub.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Hub.TokenEnv)
}

// HarnessToken resolves the submission auth token from the configured
// environment variable.
func (c *Config) HarnessToken() string {
	if c.Harness.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Harness.TokenEnv)
}
