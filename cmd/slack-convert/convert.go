// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/slack-convert/internal/convert"
	"github.com/pdiddy/slack-convert/internal/history"
	"github.com/pdiddy/slack-convert/internal/orchestrate"
)

// newEngine is replaced in tests.
var newEngine = convert.New

var convertCmd = &cobra.Command{
	Use:   "convert <slack data zip>...",
	Short: "Convert Slack export archives into import-ready data",
	Long: `Convert hands each Slack export archive, in the order given, to the
conversion engine. All archives in one invocation share one output
directory; when --output is omitted a new temporary directory is created.

The --threads value is forwarded to the engine, which uses it for its
parallel message export stage.`,
	Example: `  slack-convert convert acme-export.zip --token xoxp-...
  slack-convert convert a.zip b.zip --token xoxp-... --output ./converted --threads 8`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("token", "", "Slack legacy token of the organization (required)")
	convertCmd.Flags().String("output", "", "directory to write converted data to (default: new temporary directory)")
	convertCmd.Flags().String("threads", "", "threads the engine uses to export messages in parallel (default: config threads, 6)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	token, _ := cmd.Flags().GetString("token")
	output, _ := cmd.Flags().GetString("output")
	threads, _ := cmd.Flags().GetString("threads")

	opts := orchestrate.Options{
		Archives: args,
		Token:    token,
		Output:   output,
		Threads:  threads,
	}
	cfg := orchestrate.Config{DefaultThreads: appConfig.Conversion.Threads}

	// Reject bad input before touching the container runtime.
	if _, err := orchestrate.Validate(opts, cfg.DefaultThreads); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	engine, err := newEngine(appConfig.Conversion.Engine, out, logger)
	if err != nil {
		return err
	}

	o := orchestrate.New(engine, cfg, out)
	o.SetLogger(logger)

	if appConfig.History.Enabled {
		store, err := history.Open(appConfig.History)
		if err != nil {
			logger.Warn().Err(err).Msg("history disabled for this run")
		} else {
			defer store.Close()
			o.SetRecorder(store)
		}
	}

	result, err := o.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	printSummary(out, result)
	return nil
}

func printSummary(w io.Writer, result *orchestrate.Result) {
	rows := make([]table.Row, 0, len(result.Outcomes))
	for i, oc := range result.Outcomes {
		size := humanize.Bytes(uint64(oc.Size))
		if oc.IsDir {
			size = "-"
		}
		rows = append(rows, table.Row{
			i + 1,
			oc.Archive,
			size,
			oc.Duration.Round(timeRounding).String(),
		})
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTable(
		table.Row{"#", "Archive", "Size", "Took"},
		rows,
		1, 3, 4,
	))
	fmt.Fprintf(w, "\nConverted %d archive(s) with %d thread(s) into %s\n",
		len(result.Outcomes), result.Threads, result.OutputDir)
	fmt.Fprintf(w, "Run ID: %s\n", result.RunID)
}
