// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/slack-convert/internal/history"
	"github.com/pdiddy/slack-convert/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past conversion runs",
	Long: `History reads the local dispatch ledger. Every archive handed to the
engine is recorded with its run ID, output directory, thread count,
status, and timing.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded dispatches, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := history.Open(appConfig.History)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), listOptsFromFlags(cmd))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatHistoryOutput(cmd.OutOrStdout(), records, jsonOutput)
}

func formatHistoryOutput(w io.Writer, records []types.DispatchRecord, jsonOutput bool) error {
	if jsonOutput {
		if records == nil {
			records = []types.DispatchRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No dispatches recorded.")
		return nil
	}

	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, table.Row{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			shortID(r.RunID),
			r.Archive,
			string(r.Status),
			r.Duration().Round(timeRounding).String(),
			r.OutputDir,
		})
	}
	fmt.Fprintln(w, renderTable(
		table.Row{"Started", "Run", "Archive", "Status", "Took", "Output"},
		rows,
		5,
	))
	fmt.Fprintf(w, "\n%d dispatches\n", len(records))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the dispatch history to YAML or JSON",
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := history.Open(appConfig.History)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := listOptsFromFlags(cmd)

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(cmd.Context(), opts)
	case "json":
		path, err = store.ExportJSON(cmd.Context(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

// --- shared helpers ---

func listOptsFromFlags(cmd *cobra.Command) history.ListOptions {
	runID, _ := cmd.Flags().GetString("run")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	return history.ListOptions{
		RunID:  runID,
		Status: types.DispatchStatus(status),
		Limit:  limit,
	}
}

func init() {
	// Filter flags shared by list and export.
	historyCmd.PersistentFlags().String("run", "", "filter by run ID")
	historyCmd.PersistentFlags().String("status", "", "filter by status: converted or failed")

	historyListCmd.Flags().Int("limit", 0, "maximum dispatches to show (0 = 50)")
	historyListCmd.Flags().Bool("json", false, "output dispatches as JSON")

	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
