package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/subcommands"

	"symdir/internal/query"
)

// statsCmd prints the aggregates shown on the dashboard.
type statsCmd struct {
	filterFlags
	top     int
	jsonOut bool
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "prints exchange, type and category breakdowns" }
func (*statsCmd) Usage() string {
	return `stats [-q text] [-exchange list] [-type list] [-top n] [-json]

Prints the overview, the exchange by type breakdown, NASDAQ market
categories and the largest exchanges for the filtered listing.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	c.filterFlags.register(f)
	f.IntVar(&c.top, "top", 10, "number of exchanges in the top list")
	f.BoolVar(&c.jsonOut, "json", false, "print the report as JSON")
}

func (c *statsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter, err := c.filter()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	snap, ok := snapshot(ctx)
	if !ok {
		return subcommands.ExitFailure
	}

	report := query.BuildReport(filter.Apply(snap.Listings()), c.top)
	if c.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	printReport(report)
	return subcommands.ExitSuccess
}

func printReport(r query.Report) {
	s := r.Summary
	fmt.Fprintf(stdout, "Total %d  Stocks %d  ETFs %d  Exchanges %d\n", s.Total, s.Stocks, s.ETFs, s.Exchanges)
	fmt.Fprintf(stdout, "ETFs %s%%  NASDAQ %s%%  NYSE %s%%\n\n", s.ETFPct, s.NasdaqPct, s.NYSEPct)

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "EXCHANGE\tSTOCK\tETF\tTOTAL\tSTOCK %\tETF %\t")
	for _, b := range r.Breakdown {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\t\n", b.Exchange, b.Stock, b.ETF, b.Total, b.StockPct.StringFixed(1), b.ETFPct.StringFixed(1))
	}
	w.Flush()

	if len(r.Categories) > 0 {
		fmt.Fprintln(stdout)
		w = tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tCATEGORY\tCOUNT")
		for _, c := range r.Categories {
			fmt.Fprintf(w, "%s\t%s\t%d\n", c.Code, c.Description, c.Count)
		}
		w.Flush()
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Top exchanges:")
	for i, c := range r.TopExchanges {
		fmt.Fprintf(stdout, "%2d. %s %d\n", i+1, c.Label, c.Count)
	}
}
