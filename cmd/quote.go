package cmd

import (
	"fmt"
	"strconv"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fxq/internal/utils"
	"fxq/internal/validation"
)

var quoteCopy bool

var quoteCmd = &cobra.Command{
	Use:   "quote <BASE> <TARGET> <AMOUNT>",
	Short: "Get a quote from a running fxq server",
	Long: `Ask a running fxq server for a quote and print it together with the
cache status of the rate.

Examples:
  fxq quote EUR USD 100              # 100 EUR in USD
  fxq quote gbp eur 2500 --copy      # copy the quote amount to the clipboard`,
	Args: cobra.ExactArgs(3),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().BoolVarP(&quoteCopy, "copy", "c", false, "Copy the quote amount to the clipboard")
}

func runQuote(cmd *cobra.Command, args []string) error {
	base := validation.NormalizeCurrency(args[0])
	target := validation.NormalizeCurrency(args[1])
	amount, ok := validation.ParseAmount(args[2])
	if !ok {
		return fmt.Errorf("invalid amount %q: expected a positive integer", args[2])
	}

	res, err := newClient().Quote(cmd.Context(), base, target, amount)
	if err != nil {
		return err
	}

	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"Pair", "Amount", "Rate", "Quote", "Cache", "Max age"})

	maxAge := "-"
	if res.MaxAge > 0 {
		maxAge = res.MaxAge.String()
	}
	t.AppendRow(prettytable.Row{
		pairStyle.Render(base + "-" + target),
		utils.FormatAmount(amount) + " " + base,
		utils.FormatRate(res.ExchangeRate),
		utils.FormatAmount(res.QuoteAmount) + " " + target,
		cacheLabel(res.CacheHit),
		maxAge,
	})
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())

	if quoteCopy {
		value := strconv.FormatInt(res.QuoteAmount, 10)
		if err := utils.CopyToClipboard(value); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Copied "+value+" to clipboard"))
		}
	}
	return nil
}
