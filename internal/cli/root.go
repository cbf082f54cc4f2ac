package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/knmi/adaguc-checker/internal/config"
	"github.com/knmi/adaguc-checker/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	appConfig  *config.Config
	logCloser  io.Closer
	rootCmd    = &cobra.Command{
		Use:   "adaguc-checker",
		Short: "CF and ADAGUC compliance checker for NetCDF files",
		Long: `adaguc-checker validates a NetCDF file against the CF conventions, using
the external cfchecks program, and against the ADAGUC profile, by asking an
ADAGUC server for the file's capabilities and maps and collecting the
reports the server writes while answering.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSONC config file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		appConfig = cfg

		closer, err := logging.Setup(verbose, cfg.LoggingDir)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
			logCloser = nil
		}
	}

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command. An interrupt cancels the running checks.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
