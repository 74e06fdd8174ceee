package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"

	"symdir/config"
	"symdir/internal/pipeline"
	"symdir/internal/query"
	"symdir/models"
)

var commands = []subcommands.Command{
	&fetchCmd{},
	&listCmd{},
	&statsCmd{},
	&exportCmd{},
}

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	loadConfig = func() (*config.Config, error) {
		return config.LoadConfig(config.ResolvePath(*configPath))
	}
	buildSnapshot = func(ctx context.Context, cfg *config.Config) (*models.Snapshot, error) {
		b, err := pipeline.FromConfig(ctx, cfg.Feed)
		if err != nil {
			return nil, err
		}
		return b.Build(ctx)
	}
)

// snapshot loads the configuration and downloads a fresh snapshot. Errors
// are reported on stderr.
func snapshot(ctx context.Context) (*models.Snapshot, bool) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: could not load configuration: %v\n", err)
		return nil, false
	}
	snap, err := buildSnapshot(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: could not fetch symbol directory: %v\n", err)
		return nil, false
	}
	return snap, true
}

// filterFlags are shared by every command that narrows the listing.
type filterFlags struct {
	search    string
	exchanges string
	types     string
}

func (f *filterFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.search, "q", "", "case-insensitive substring of symbol or security name")
	fs.StringVar(&f.exchanges, "exchange", "", "comma separated exchanges (NASDAQ, NYSE, NYSE Arca, NYSE American, BATS/CBOE, Unknown)")
	fs.StringVar(&f.types, "type", "", "comma separated types (Stock, ETF)")
}

func (f *filterFlags) filter() (query.Filter, error) {
	return query.ParseFilter(f.search, splitFlag(f.exchanges), splitFlag(f.types))
}

func splitFlag(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return []string{v}
}
