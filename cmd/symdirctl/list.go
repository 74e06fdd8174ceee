package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/subcommands"

	"symdir/internal/query"
)

// listCmd prints matching listings sorted by symbol.
type listCmd struct {
	filterFlags
	limit  int
	offset int
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "prints listings matching a filter" }
func (*listCmd) Usage() string {
	return `list [-q text] [-exchange list] [-type list] [-n rows] [-offset rows]

Prints the filtered listing sorted by symbol.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	c.filterFlags.register(f)
	f.IntVar(&c.limit, "n", 50, "maximum rows to print, 0 for all")
	f.IntVar(&c.offset, "offset", 0, "rows to skip")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter, err := c.filter()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	snap, ok := snapshot(ctx)
	if !ok {
		return subcommands.ExitFailure
	}

	page := query.Paginate(snap.Listings(), filter, c.offset, c.limit)
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tTYPE\tEXCHANGE\tCATEGORY")
	for _, l := range page.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Symbol, l.Name, l.Type(), l.Exchange, l.Category)
	}
	w.Flush()
	fmt.Fprintf(stderr, "Showing %d of %d symbols.\n", len(page.Rows), page.Matched)
	return subcommands.ExitSuccess
}
