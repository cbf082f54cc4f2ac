package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/knmi/adaguc-checker/internal/config"
	"github.com/knmi/adaguc-checker/internal/report"
	"github.com/knmi/adaguc-checker/internal/store"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyPrune string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyPrune, "prune", "", "Delete runs older than this duration (e.g. 720h) before listing")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past check runs",
	Long:  `Show the most recent check runs recorded in the history database, newest first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if !cfg.History.IsEnabled() {
			return fmt.Errorf("history is disabled (history.enabled = false)")
		}

		h, err := store.OpenHistory(config.ExpandHome(cfg.History.Path))
		if err != nil {
			return err
		}
		defer h.Close()

		out := cmd.OutOrStdout()

		if historyPrune != "" {
			age, err := time.ParseDuration(historyPrune)
			if err != nil {
				return fmt.Errorf("invalid --prune duration %q: %w", historyPrune, err)
			}
			removed, err := h.Prune(cmd.Context(), time.Now().Add(-age))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %d run(s) older than %s\n", removed, age)
		}

		runs, err := h.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			id := r.ID
			if len(id) > 8 {
				id = id[:8]
			}
			rows = append(rows, []string{
				id,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.File,
				r.Checks,
				strconv.Itoa(r.Errors),
				strconv.Itoa(r.Warnings),
				strconv.Itoa(r.Info),
				strconv.Itoa(r.Layers),
				r.Duration.Round(time.Millisecond).String(),
			})
		}
		fmt.Fprintln(out, report.Table(
			[]string{"ID", "STARTED", "FILE", "CHECKS", "ERRORS", "WARNINGS", "INFO", "LAYERS", "DURATION"},
			rows,
		))
		return nil
	},
}
