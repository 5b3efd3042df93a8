package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fxq/internal/server"
	"fxq/internal/utils"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the rate cache of a running server",
	Long: `Inspect and manage the in-memory rate cache of a running fxq server.

The cache holds at most --cache-size currency pairs. Rates older than the
TTL are reported as misses and refetched on the next quote; they stay listed
here as expired until evicted, overwritten or flushed.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Display capacity, resident entries, TTL and hit/miss counters of the rate cache.`,
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "List cached rates",
	Long:  `List cached rates from most to least recently used. Listing does not change their order.`,
	Args:  cobra.NoArgs,
	RunE:  runCacheDump,
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Remove all cached rates",
	Long:  `Remove all cached rates. The next quote for every pair will call the rate provider.`,
	Args:  cobra.NoArgs,
	RunE:  runCacheFlush,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheDumpCmd)
	cacheCmd.AddCommand(cacheFlushCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	stats, err := newClient().CacheStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache Statistics:\n")
	fmt.Fprintf(out, "  Entries:         %d / %d\n", stats.Entries, stats.Capacity)
	fmt.Fprintf(out, "  TTL:             %s\n", formatTTL(stats.TTLMillis))
	fmt.Fprintf(out, "  Hits:            %s\n", humanize.Comma(int64(stats.Hits)))
	fmt.Fprintf(out, "  Misses:          %s\n", humanize.Comma(int64(stats.Misses)))
	fmt.Fprintf(out, "  Expired reads:   %s\n", humanize.Comma(int64(stats.Expired)))
	fmt.Fprintf(out, "  Evictions:       %s\n", humanize.Comma(int64(stats.Evictions)))

	if lookups := stats.Hits + stats.Misses; lookups > 0 {
		fmt.Fprintf(out, "  Hit rate:        %.1f%%\n", float64(stats.Hits)/float64(lookups)*100)
	}
	return nil
}

func runCacheDump(cmd *cobra.Command, args []string) error {
	entries, err := newClient().CacheEntries(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderEntriesTable(entries, time.Now()))
	return nil
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	c := newClient()
	stats, err := c.CacheStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}

	if stats.Entries == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Cache is already empty")
		return nil
	}

	if err := c.FlushCache(cmd.Context()); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Flushed %d cache entries\n", stats.Entries)
	return nil
}

// renderEntriesTable renders entries as a static table, most recent first
func renderEntriesTable(entries []server.EntryBody, now time.Time) string {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"#", "Pair", "Rate", "Stored", "State"})

	for i, e := range entries {
		t.AppendRow(prettytable.Row{
			i + 1,
			pairStyle.Render(e.Key),
			utils.FormatRate(e.ExchangeRate),
			utils.FormatAge(now.Add(-time.Duration(e.AgeMillis)*time.Millisecond), now),
			freshnessLabel(e.Expired),
		})
	}
	return t.Render()
}

// formatTTL renders a TTL given in milliseconds; zero disables expiration
func formatTTL(ms int64) string {
	if ms <= 0 {
		return "disabled"
	}
	return (time.Duration(ms) * time.Millisecond).String()
}
