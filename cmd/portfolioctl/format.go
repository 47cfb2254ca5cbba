package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/wallet-portfolio/internal/models"
	"github.com/wallet-portfolio/internal/storage"
)

// formatUSD renders a dollar amount rounded to cents, e.g. "$1,234.50"
func formatUSD(d decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	cents := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

func formatNullUSD(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return formatUSD(d.Decimal)
}

func formatNullAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func writeChains(w io.Writer, rows []models.ChainBreakdownRow) error {
	tw := newTable(w, "WALLET", "CHAIN", "NAME", "REPORTED", "COMPUTED", "DIFFERENCE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.WalletAddress, r.ChainID, deref(r.ChainName),
			formatNullUSD(r.ReportedUSDValue), formatUSD(r.ComputedUSDValue), formatUSD(r.Difference))
	}
	return tw.Flush()
}

func writeTokens(w io.Writer, rows []models.TokenBreakdownRow) error {
	tw := newTable(w, "WALLET", "CHAIN", "TOKEN", "AMOUNT", "VALUE", "SPAM")
	total := decimal.Zero
	for _, r := range rows {
		spam := ""
		if r.LikelySpam {
			spam = "yes"
		}
		if r.TotalUSDValue.Valid {
			total = total.Add(r.TotalUSDValue.Decimal)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.WalletAddress, deref(r.Chain), deref(r.Name),
			formatNullAmount(r.TotalTokenAmount), formatNullUSD(r.TotalUSDValue), spam)
	}
	fmt.Fprintf(tw, "\t\tTOTAL\t\t%s\t\n", formatUSD(total))
	return tw.Flush()
}

func writeHistory(w io.Writer, rows []storage.SnapshotTotal) error {
	tw := newTable(w, "TAKEN AT", "SNAPSHOT", "ENTRIES", "TOTAL")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			r.TakenAt.UTC().Format("2006-01-02 15:04:05"), r.SnapshotID, r.Entries, formatUSD(r.TotalUSDValue))
	}
	return tw.Flush()
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
