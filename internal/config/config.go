package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/tidwall/jsonc"
)

// AppName names the configuration directory and log file.
const AppName = "adaguc-checker"

// Load reads and merges configuration. Resolution order: defaults, the user
// config (~/.config/adaguc-checker/config.jsonc), the file given with
// --config (which must exist when set), then environment variables.
func Load(explicitPath string) (*Config, error) {
	cfg := DefaultConfig()

	if userPath := UserConfigPath(); userPath != "" {
		if userMap, err := loadJSONC(userPath); err == nil {
			if err := mergeIntoConfig(&cfg, userMap); err != nil {
				return nil, fmt.Errorf("merging user config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if explicitPath != "" {
		m, err := loadJSONC(explicitPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if err := mergeIntoConfig(&cfg, m); err != nil {
			return nil, fmt.Errorf("merging %s: %w", explicitPath, err)
		}
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// UserConfigPath returns the user-level config file path, or "" when the
// user config directory cannot be determined.
func UserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, "config.jsonc")
}

// loadJSONC reads a JSONC file and returns it as a map.
func loadJSONC(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jsonData := jsonc.ToJSON(data)
	var m map[string]any
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// mergeIntoConfig marshals the config to a map, deep-merges the source map over it,
// then unmarshals back to the Config struct.
func mergeIntoConfig(cfg *Config, src map[string]any) error {
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var dst map[string]any
	if err := json.Unmarshal(cfgBytes, &dst); err != nil {
		return err
	}

	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		return err
	}

	merged, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, cfg)
}

// applyEnvOverrides applies the environment variables the ADAGUC docker
// setup exports.
func applyEnvOverrides(cfg *Config) {
	if dir := os.Getenv("INPUT_DIR"); dir != "" {
		cfg.InputDir = dir
	}
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		cfg.OutputDir = dir
	}
	if dir := os.Getenv("LOGGING_DIR"); dir != "" {
		cfg.LoggingDir = dir
	}
	if u := os.Getenv("ADAGUC_BASE_URL"); u != "" {
		cfg.WMS.BaseURL = u
	}
	if p := os.Getenv("CFCHECKS_PATH"); p != "" {
		cfg.CFCheck.Path = p
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
