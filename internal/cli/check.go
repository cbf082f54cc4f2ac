package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/knmi/adaguc-checker/internal/cfcheck"
	"github.com/knmi/adaguc-checker/internal/checker"
	"github.com/knmi/adaguc-checker/internal/config"
	"github.com/knmi/adaguc-checker/internal/report"
	"github.com/knmi/adaguc-checker/internal/store"
	"github.com/knmi/adaguc-checker/internal/wms"
	"github.com/spf13/cobra"
)

const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

var (
	checkChecks      string
	checkImageDir    string
	checkBaseURL     string
	checkOutput      string
	checkFormat      string
	checkPretty      bool
	checkSummary     bool
	checkFailOnError bool
	checkInsecure    bool
)

func init() {
	checkCmd.Flags().StringVar(&checkChecks, "checks", "", "Checks to run: all, standard, adaguc (comma separated; default from config)")
	checkCmd.Flags().StringVar(&checkImageDir, "imagedir", "", "Directory to save the GetMap image of every layer in")
	checkCmd.Flags().StringVar(&checkBaseURL, "baseurl", "", "ADAGUC server URL (default from config)")
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "", "Write the report to a file instead of stdout")
	checkCmd.Flags().StringVar(&checkFormat, "format", formatJSON, "Report format: json or markdown")
	checkCmd.Flags().BoolVar(&checkPretty, "pretty", false, "Indent the JSON report")
	checkCmd.Flags().BoolVar(&checkSummary, "summary", false, "Print a summary table to stderr")
	checkCmd.Flags().BoolVar(&checkFailOnError, "fail-on-error", false, "Exit with status 2 when the report contains errors")
	checkCmd.Flags().BoolVar(&checkInsecure, "insecure", false, "Skip TLS certificate verification for WMS requests")
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Check a NetCDF file",
	Long: `Run the CF checks and the ADAGUC checks on a NetCDF file and print the
combined JSON report.

The standard checks run cfchecks on the file. The adaguc checks request the
file's capabilities and a map of every layer from the ADAGUC server, which
must be able to read the file from its input directory (INPUT_DIR), and read
the reports the server writes to its output directory (OUTPUT_DIR).

The exit status is 0 whenever a report was produced, unless --fail-on-error
is given and the report contains errors.`,
	Example: `  adaguc-checker check /data/adaguc-autowms/tas.nc
  adaguc-checker check --checks standard tas.nc
  adaguc-checker check --imagedir ./images --format markdown -o report.md tas.nc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !store.Exists(path) {
			return fmt.Errorf("file %s does not exist", path)
		}
		if checkFormat != formatJSON && checkFormat != formatMarkdown {
			return fmt.Errorf("unknown format %q (valid: %s, %s)", checkFormat, formatJSON, formatMarkdown)
		}

		cfg := appConfig
		checksFlag := cfg.Checks
		if cmd.Flags().Changed("checks") {
			checksFlag = checkChecks
		}
		checks, err := checker.ParseChecks(checksFlag)
		if err != nil {
			return err
		}

		c, err := newChecker(cmd, cfg, checks)
		if err != nil {
			return err
		}

		started := time.Now()
		r, err := c.Run(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("checking %s: %w", path, err)
		}
		slog.Debug("check finished", "file", path, "checks", checks.String(),
			"errors", r.Errors, "warnings", r.Warnings, "info", r.Info, "duration", time.Since(started))

		recordRun(cmd.Context(), cfg, store.Run{
			File:      absPath(path),
			Checks:    checks.String(),
			StartedAt: started,
			Duration:  time.Since(started),
			Errors:    r.Errors,
			Warnings:  r.Warnings,
			Info:      r.Info,
			Layers:    len(r.GetMap),
		})

		meta := report.Meta{File: filepath.Base(path), Checks: checks.String(), Generated: started}
		if err := writeReport(cmd, meta, r); err != nil {
			return err
		}

		if checkSummary {
			fmt.Fprintln(cmd.ErrOrStderr(), report.SummaryTable(r))
		}

		if checkFailOnError && r.Errors > 0 {
			return exitErrorf(ExitCodeFailed, "%s: %d error(s) found", path, r.Errors)
		}
		return nil
	},
}

// newChecker builds a Checker from the config and the check flags.
func newChecker(cmd *cobra.Command, cfg *config.Config, checks checker.Checks) (*checker.Checker, error) {
	var runner cfcheck.Runner
	if checks.Standard {
		runner = &cfcheck.ExecRunner{
			Program: cfg.CFCheck.Path,
			Args:    cfg.CFCheck.Args,
			Timeout: cfg.CFCheck.ParseTimeout(),
		}
	}

	var client *wms.Client
	if checks.Adaguc {
		client = wms.NewClient(wmsConfig(cmd, cfg))
	}

	imageDir := cfg.ImageDir
	if cmd.Flags().Changed("imagedir") {
		imageDir = checkImageDir
	}

	return checker.New(runner, client, checker.Options{
		Checks:      checks,
		InputDir:    cfg.InputDir,
		OutputDir:   cfg.OutputDir,
		ImageDir:    imageDir,
		AutoVersion: cfg.CFCheck.IsAutoVersionEnabled(),
		Stderr:      cmd.ErrOrStderr(),
	})
}

// wmsConfig maps the config file's WMS section, and the flags that override
// it, onto a client configuration.
func wmsConfig(cmd *cobra.Command, cfg *config.Config) wms.Config {
	wc := wms.DefaultConfig()
	if cfg.WMS.BaseURL != "" {
		wc.BaseURL = cfg.WMS.BaseURL
	}
	if cfg.WMS.BackgroundURL != "" {
		wc.BackgroundURL = cfg.WMS.BackgroundURL
	}
	if cfg.WMS.BackgroundLayer != "" {
		wc.BackgroundLayer = cfg.WMS.BackgroundLayer
	}
	if cfg.WMS.CountriesURL != "" {
		wc.CountriesURL = cfg.WMS.CountriesURL
	}
	if cfg.WMS.CountriesLayer != "" {
		wc.CountriesLayer = cfg.WMS.CountriesLayer
	}
	if cfg.WMS.Width > 0 {
		wc.Width = cfg.WMS.Width
	}
	if cfg.WMS.Height > 0 {
		wc.Height = cfg.WMS.Height
	}
	wc.Timeout = cfg.WMS.ParseTimeout()
	wc.MaxRetries = cfg.WMS.MaxRetries
	wc.Insecure = cfg.WMS.Insecure

	if cmd.Flags().Changed("baseurl") {
		wc.BaseURL = checkBaseURL
	}
	if cmd.Flags().Changed("insecure") {
		wc.Insecure = checkInsecure
	}
	return wc
}

// writeReport prints the report to stdout or writes it to --output.
func writeReport(cmd *cobra.Command, meta report.Meta, r *report.Report) error {
	if checkFormat == formatMarkdown {
		if checkOutput == "" {
			body, err := report.RenderMarkdown(meta, r)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), body)
			return nil
		}
		return lockedWrite(cmd.Context(), checkOutput, func() error {
			return report.WriteMarkdown(checkOutput, meta, r)
		})
	}

	var (
		data []byte
		err  error
	)
	if checkPretty {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	if checkOutput == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	return lockedWrite(cmd.Context(), checkOutput, func() error {
		if err := store.WriteFile(checkOutput, append(data, '\n')); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		return nil
	})
}

// lockedWrite runs write under an exclusive lock on path, so report summary
// never reads a half-written report.
func lockedWrite(ctx context.Context, path string, write func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return store.WithLock(ctx, path, store.DefaultLockTimeout, write)
}

// recordRun adds the run to the history database. Failures are logged only.
func recordRun(ctx context.Context, cfg *config.Config, run store.Run) {
	if !cfg.History.IsEnabled() || cfg.History.Path == "" {
		return
	}
	h, err := store.OpenHistory(config.ExpandHome(cfg.History.Path))
	if err != nil {
		slog.Warn("opening history", "error", err)
		return
	}
	defer h.Close()

	id, err := h.Record(ctx, run)
	if err != nil {
		slog.Warn("recording run", "error", err)
		return
	}
	slog.Debug("run recorded", "id", id, "history", h.Path())
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
