package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"symdir/config"
	"symdir/internal/pipeline/fetcher"
	"symdir/internal/pipeline/normalizer"
	"symdir/logger"
	"symdir/models"
)

// PayloadFetcher is satisfied by *fetcher.Fetcher.
type PayloadFetcher interface {
	Fetch(ctx context.Context) (*fetcher.Payloads, error)
}

// Builder runs one fetch and normalize cycle and seals the result into a
// snapshot. It is the rebuild function behind the snapshot cache.
type Builder struct {
	fetcher           PayloadFetcher
	excludeTestIssues bool
	now               func() time.Time
	newID             func() string
	log               *logger.Log
}

type Option func(*Builder)

// WithClock overrides the time stamped on snapshots.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithExcludeTestIssues drops rows flagged as test issues.
func WithExcludeTestIssues(exclude bool) Option {
	return func(b *Builder) { b.excludeTestIssues = exclude }
}

func NewBuilder(f PayloadFetcher, opts ...Option) *Builder {
	b := &Builder{
		fetcher: f,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FromConfig wires the configured transport, the fetcher and a builder.
func FromConfig(ctx context.Context, cfg config.FeedConfig, opts ...Option) (*Builder, error) {
	source, err := fetcher.NewSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f := fetcher.New(source, cfg.NasdaqFile, cfg.OtherFile, cfg.Timeout)
	opts = append([]Option{WithExcludeTestIssues(cfg.ExcludeTestIssues)}, opts...)
	return NewBuilder(f, opts...), nil
}

// Build returns a complete snapshot or an error; it never returns both.
func (b *Builder) Build(ctx context.Context) (*models.Snapshot, error) {
	log := b.log.WithComponent("pipeline")
	start := time.Now()

	payloads, err := b.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	retrievedAt := b.now().UTC()
	res, err := normalizer.Normalize(payloads.Nasdaq, payloads.Other, normalizer.Options{
		RetrievedAt:       retrievedAt,
		ExcludeTestIssues: b.excludeTestIssues,
	})
	if err != nil {
		log.WithError(err).Error("failed to normalize feeds")
		return nil, err
	}

	if len(res.Mappings) > 0 {
		codes := make(map[string]int)
		for _, m := range res.Mappings {
			codes[m.Field+"="+m.Code]++
		}
		log.WithFields(logger.Fields{
			"unmapped": len(res.Mappings),
			"codes":    codes,
			"first":    res.Mappings[0].Error(),
		}).Warn("codes mapped to fallback values")
	}

	snap := models.NewSnapshot(b.newID(), payloads.Source, retrievedAt, res.Listings)
	log = log.WithSnapshot(snap.ID())
	logger.LogDataFlowEntry(log, "feeds", "canonical_table", snap.Len(), "listing")
	logger.LogPerformanceEntry(log, "pipeline", "build", time.Since(start), logger.Fields{
		"dropped":     res.Dropped,
		"test_issues": res.TestIssues,
		"nasdaq_rows": len(snap.Nasdaq()),
		"other_rows":  len(snap.Other()),
	})
	return snap, nil
}
