package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"symdir/internal/export"
	"symdir/internal/query"
)

// exportCmd writes the filtered listing to a file in one of the export formats.
type exportCmd struct {
	filterFlags
	format  string
	columns string
	output  string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "writes listings as csv, xlsx, json or parquet" }
func (*exportCmd) Usage() string {
	return `export [-format csv|xlsx|json|parquet] [-columns list] [-o file] [filters]

Writes the filtered listing sorted by symbol. The file name defaults to
usa_tickers_metadata.<format>; use -o - for stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.filterFlags.register(f)
	f.StringVar(&c.format, "format", string(export.FormatCSV), "output format")
	f.StringVar(&c.columns, "columns", "", "comma separated column names, default Symbol,Security Name,Type,Exchange,Market Category")
	f.StringVar(&c.output, "o", "", "output file")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	format, err := export.ParseFormat(c.format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	columns, err := export.ParseColumns(splitFlag(c.columns))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	filter, err := c.filter()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	snap, ok := snapshot(ctx)
	if !ok {
		return subcommands.ExitFailure
	}

	rows := query.SortBySymbol(filter.Apply(snap.Listings()))
	payload, _, err := export.Export(rows, format, columns)
	if err != nil {
		fmt.Fprintf(stderr, "Error: could not export: %v\n", err)
		return subcommands.ExitFailure
	}

	out := c.output
	if out == "" {
		out = format.FileName()
	}
	if out == "-" {
		if _, err := stdout.Write(payload); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(out, payload, 0o644); err != nil {
		fmt.Fprintf(stderr, "Error: could not write %s: %v\n", out, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stderr, "Wrote %d rows to %s.\n", len(rows), out)
	return subcommands.ExitSuccess
}
