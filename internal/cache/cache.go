package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"symdir/logger"
	"symdir/models"
)

// ErrNoSnapshot is returned by Current before the first successful build.
var ErrNoSnapshot = errors.New("no snapshot available")

// BuildFunc produces a fresh snapshot.
type BuildFunc func(ctx context.Context) (*models.Snapshot, error)

// RebuildEvent describes one finished rebuild attempt.
type RebuildEvent struct {
	Snapshot *models.Snapshot
	Err      error
	Duration time.Duration
	At       time.Time
}

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Hits        int64     `json:"hits"`
	Rebuilds    int64     `json:"rebuilds"`
	Failures    int64     `json:"failures"`
	SnapshotID  string    `json:"snapshot_id,omitempty"`
	Rows        int       `json:"rows"`
	RetrievedAt time.Time `json:"retrieved_at,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// entry pairs a snapshot with its expiry so both are swapped together.
type entry struct {
	snap      *models.Snapshot
	expiresAt time.Time
}

// SnapshotCache holds the current canonical table for one TTL window.
// Concurrent callers that find it expired share a single rebuild.
type SnapshotCache struct {
	build        BuildFunc
	ttl          time.Duration
	buildTimeout time.Duration
	now          func() time.Time
	log          *logger.Log

	current atomic.Pointer[entry]
	group   singleflight.Group

	hits     atomic.Int64
	rebuilds atomic.Int64
	failures atomic.Int64
	lastErr  atomic.Pointer[string]

	mu    sync.RWMutex
	hooks []func(RebuildEvent)
}

type Option func(*SnapshotCache)

func WithClock(now func() time.Time) Option {
	return func(c *SnapshotCache) { c.now = now }
}

func WithLogger(log *logger.Log) Option {
	return func(c *SnapshotCache) { c.log = log }
}

// WithBuildTimeout bounds a rebuild independently of the caller's context.
func WithBuildTimeout(d time.Duration) Option {
	return func(c *SnapshotCache) { c.buildTimeout = d }
}

func New(build BuildFunc, ttl time.Duration, opts ...Option) *SnapshotCache {
	c := &SnapshotCache{
		build:        build,
		ttl:          ttl,
		buildTimeout: 2 * time.Minute,
		now:          time.Now,
		log:          logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnRebuild registers fn to run after every rebuild attempt.
func (c *SnapshotCache) OnRebuild(fn func(RebuildEvent)) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Current returns the cached snapshot without rebuilding, even if expired.
// stale reports whether the TTL window has passed.
func (c *SnapshotCache) Current() (snap *models.Snapshot, stale bool, err error) {
	e := c.current.Load()
	if e == nil {
		return nil, false, ErrNoSnapshot
	}
	return e.snap, !c.now().Before(e.expiresAt), nil
}

// Snapshot returns the snapshot for the current window, rebuilding it when
// missing or expired. At most one rebuild runs at a time; callers arriving
// meanwhile wait for it.
//
// When the rebuild fails the caller that started it gets the error together
// with the previous snapshot, if any. Callers that joined get the previous
// snapshot and no error, or the error when there is nothing to fall back on.
// A caller whose ctx ends while waiting gets ctx's error, with the previous
// snapshot when one exists.
func (c *SnapshotCache) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	if e := c.current.Load(); e != nil && c.now().Before(e.expiresAt) {
		c.hits.Add(1)
		return e.snap, nil
	}

	leader := false
	ch := c.group.DoChan("snapshot", func() (interface{}, error) {
		leader = true
		return c.rebuild(ctx)
	})

	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(*models.Snapshot), nil
		}
		prev := c.current.Load()
		if prev == nil {
			return nil, res.Err
		}
		if leader {
			return prev.snap, res.Err
		}
		return prev.snap, nil
	case <-ctx.Done():
		if prev := c.current.Load(); prev != nil {
			return prev.snap, ctx.Err()
		}
		return nil, ctx.Err()
	}
}

// Refresh forces a rebuild regardless of expiry, sharing any rebuild
// already in flight.
func (c *SnapshotCache) Refresh(ctx context.Context) (*models.Snapshot, error) {
	v, err, _ := c.group.Do("snapshot", func() (interface{}, error) {
		return c.rebuildNow(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Snapshot), nil
}

func (c *SnapshotCache) rebuild(ctx context.Context) (*models.Snapshot, error) {
	// A rebuild that finished between the caller's check and this one
	// already covers the window.
	if e := c.current.Load(); e != nil && c.now().Before(e.expiresAt) {
		c.hits.Add(1)
		return e.snap, nil
	}
	return c.rebuildNow(ctx)
}

func (c *SnapshotCache) rebuildNow(ctx context.Context) (*models.Snapshot, error) {
	ctx = context.WithoutCancel(ctx)
	if c.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.buildTimeout)
		defer cancel()
	}

	log := c.log.WithComponent("cache")
	start := time.Now()
	c.rebuilds.Add(1)
	snap, err := c.build(ctx)
	ev := RebuildEvent{Snapshot: snap, Err: err, Duration: time.Since(start), At: c.now()}

	if err != nil {
		c.failures.Add(1)
		msg := err.Error()
		c.lastErr.Store(&msg)
		log.WithError(err).WithFields(logger.Fields{"has_previous": c.current.Load() != nil}).Error("snapshot rebuild failed")
		c.notify(ev)
		return nil, err
	}

	c.current.Store(&entry{snap: snap, expiresAt: c.now().Add(c.ttl)})
	c.lastErr.Store(nil)
	log.WithFields(logger.Fields{
		"snapshot_id": snap.ID(),
		"rows":        snap.Len(),
		"ttl":         c.ttl.String(),
	}).Info("snapshot rebuilt")
	c.notify(ev)
	return snap, nil
}

func (c *SnapshotCache) notify(ev RebuildEvent) {
	c.mu.RLock()
	hooks := append(([]func(RebuildEvent))(nil), c.hooks...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(ev)
	}
}

func (c *SnapshotCache) Stats() Stats {
	s := Stats{
		Hits:     c.hits.Load(),
		Rebuilds: c.rebuilds.Load(),
		Failures: c.failures.Load(),
	}
	if e := c.current.Load(); e != nil {
		s.SnapshotID = e.snap.ID()
		s.Rows = e.snap.Len()
		s.RetrievedAt = e.snap.RetrievedAt()
		s.ExpiresAt = e.expiresAt
	}
	if msg := c.lastErr.Load(); msg != nil {
		s.LastError = *msg
	}
	return s
}
