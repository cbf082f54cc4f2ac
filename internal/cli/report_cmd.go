package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knmi/adaguc-checker/internal/report"
	"github.com/knmi/adaguc-checker/internal/store"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Work with saved reports",
}

func init() {
	reportCmd.AddCommand(reportSummaryCmd)
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary <report.json|report.md>",
	Short: "Summarize a saved report",
	Long: `Print the message counts of a report written with check --output.

JSON reports are summarized per section. Markdown reports carry only the
totals in their frontmatter.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		out := cmd.OutOrStdout()

		if !store.Exists(path) {
			return fmt.Errorf("report %s does not exist", path)
		}

		if strings.EqualFold(filepath.Ext(path), ".md") {
			var summary *report.MarkdownSummary
			err := store.WithReadLock(cmd.Context(), path, store.DefaultLockTimeout, func() error {
				var err error
				summary, err = report.ReadMarkdownSummary(path)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "File: %s\nChecks: %s\nGenerated: %s\n",
				summary.File, summary.Checks, summary.Generated.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintln(out, report.CountsTable([][]string{{
				"total",
				fmt.Sprint(summary.Errors),
				fmt.Sprint(summary.Warnings),
				fmt.Sprint(summary.Info),
			}}))
			return nil
		}

		var data []byte
		err := store.WithReadLock(cmd.Context(), path, store.DefaultLockTimeout, func() error {
			var err error
			data, err = os.ReadFile(path)
			return err
		})
		if err != nil {
			return fmt.Errorf("reading report: %w", err)
		}

		var r report.Report
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("parsing report %s: %w", path, err)
		}
		fmt.Fprintln(out, report.SummaryTable(&r))
		return nil
	},
}
