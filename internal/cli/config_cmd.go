package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/knmi/adaguc-checker/internal/config"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage adaguc-checker configuration",
	Long:  `Show and modify adaguc-checker configuration values.`,
}

var configJSONFlag bool

func init() {
	configShowCmd.Flags().BoolVar(&configJSONFlag, "json", false, "Output raw JSON without formatting")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show merged configuration",
	Long: `Show the configuration after merging the defaults, the user config, the
--config file and the INPUT_DIR, OUTPUT_DIR, LOGGING_DIR, ADAGUC_BASE_URL and
CFCHECKS_PATH environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if cfg == nil {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}

		var data []byte
		var err error
		if configJSONFlag {
			data, err = json.Marshal(cfg)
		} else {
			data, err = json.MarshalIndent(cfg, "", "  ")
		}
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a configuration value using a dotted key path.

The value is written to the file given with --config, or to the user config
(~/.config/adaguc-checker/config.jsonc). The file is created if it does not
exist.

Note: JSONC comments are not preserved on write.

Examples:
  adaguc-checker config set wms.base_url "https://localhost:8443/adaguc-services/adagucserver?"
  adaguc-checker config set wms.timeout 2m
  adaguc-checker config set cfcheck.auto_version false`,
	Args: cobra.ExactArgs(2),
	// The target file may not exist yet, so the merged config is not loaded.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		rawValue := args[1]

		// Determine value type: try bool, then number, then string
		var value any
		if b, err := strconv.ParseBool(rawValue); err == nil {
			value = b
		} else if i, err := strconv.ParseInt(rawValue, 10, 64); err == nil {
			value = i
		} else if f, err := strconv.ParseFloat(rawValue, 64); err == nil {
			value = f
		} else {
			value = rawValue
		}

		target := configPath
		if target == "" {
			target = config.UserConfigPath()
		}
		if target == "" {
			return fmt.Errorf("cannot determine the user config directory; pass --config")
		}

		// Read existing file or start with empty JSON object
		var existing []byte
		if data, err := os.ReadFile(target); err == nil {
			// Strip JSONC comments before passing to sjson (which requires valid JSON).
			// Note: comments are not preserved on write.
			existing = jsonc.ToJSON(data)
		} else {
			existing = []byte("{}")
		}

		// Use sjson for in-place modification
		updated, err := sjson.SetBytes(existing, key, value)
		if err != nil {
			return fmt.Errorf("setting key %q: %w", key, err)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, updated, 0644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", key, value, target)
		return nil
	},
}
