package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fxq/internal/history"
	"fxq/internal/utils"
)

var (
	historyLimit     int
	historyFormat    string
	historyOlderThan time.Duration
	historyDB        string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the journal of fetched rates",
	Long: `Inspect the SQLite journal where the service records every rate fetched
from the provider. The journal lives at --history-db / FXQ_HISTORY_DB.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently fetched rates",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show journal statistics",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStats,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old journal records",
	Long:  `Remove records older than --older-than and reclaim disk space.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyCmd.PersistentFlags().StringVar(&historyDB, "history-db", "", "SQLite rate history path (defaults to the configured path)")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of records")
	historyListCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "Output format: table, json, yaml")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Age of the records to remove")
}

func openHistory() (*history.Journal, error) {
	if historyDB != "" {
		cfg.HistoryPath = historyDB
	}
	if cfg.HistoryPath == "" {
		return nil, fmt.Errorf("rate history is disabled (no history database configured)")
	}
	return history.Open(cfg.HistoryPath)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	j, err := openHistory()
	if err != nil {
		return err
	}
	defer j.Close()

	records, err := j.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	return writeHistory(cmd.OutOrStdout(), records, historyFormat, time.Now())
}

func writeHistory(w io.Writer, records []history.Record, format string, now time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(records)
	case "table":
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No rates recorded yet")
		return nil
	}

	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"Pair", "Rate", "Fetched", "Latency"})
	for _, r := range records {
		t.AppendRow(prettytable.Row{
			pairStyle.Render(r.Pair()),
			utils.FormatRate(r.Rate),
			utils.FormatAge(r.FetchedAt, now),
			r.Latency.String(),
		})
	}
	fmt.Fprintln(w, t.Render())
	return nil
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	j, err := openHistory()
	if err != nil {
		return err
	}
	defer j.Close()

	stats, err := j.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get history stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "History Statistics:\n")
	fmt.Fprintf(out, "  Records:         %s\n", humanize.Comma(stats.TotalRecords))
	fmt.Fprintf(out, "  Currency pairs:  %d\n", stats.DistinctPairs)
	if stats.TotalRecords > 0 {
		fmt.Fprintf(out, "  Oldest:          %s\n", humanize.Time(stats.Oldest))
		fmt.Fprintf(out, "  Newest:          %s\n", humanize.Time(stats.Newest))
	}
	fmt.Fprintf(out, "  Database size:   %s\n", humanize.IBytes(uint64(stats.SizeBytes)))
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	j, err := openHistory()
	if err != nil {
		return err
	}
	defer j.Close()

	n, err := j.Prune(cmd.Context(), historyOlderThan)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records to prune")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records older than %s\n", n, historyOlderThan)
	return nil
}
