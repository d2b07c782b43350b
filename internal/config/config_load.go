package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

const CurrentSchemaVersion = 1

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		SchemaVersion: CurrentSchemaVersion,
		HomeDir:       "~/.clade",
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Model:           "claude-sonnet-4-5-20250929",
				Preset:          "coding",
				MaxTurns:        20,
				ReflectionEvery: 25,
			},
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18790,
		},
		Cron: CronConfig{
			MaxRetries:     3,
			RetryBaseDelay: "2s",
			RetryMaxDelay:  "30s",
		},
		TaskQueue: TaskQueueConfig{
			TickInterval:  "15s",
			MaxConcurrent: 4,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error: it yields defaults with env overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HOME_DIR_OVERRIDE"); v != "" {
		c.HomeDir = v
	}
	if v := os.Getenv("CLADE_MODEL"); v != "" {
		c.Agents.Defaults.Model = v
	}
	if v := os.Getenv("CLADE_HOST"); v != "" {
		c.Gateway.Host = v
	}
	if v := os.Getenv("CLADE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
