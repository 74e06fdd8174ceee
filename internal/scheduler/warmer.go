package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"symdir/logger"
)

// WarmFunc refreshes whatever the warmer keeps hot. For the snapshot cache
// it is Snapshot, which only rebuilds once the TTL has passed.
type WarmFunc func(ctx context.Context) error

// Warmer runs a WarmFunc on a cron schedule (six fields, with seconds) so
// the first request after expiry does not pay for the download.
type Warmer struct {
	cron    *cron.Cron
	spec    string
	warm    WarmFunc
	timeout time.Duration
	baseCtx context.Context
	log     *logger.Log
}

func New(baseCtx context.Context, spec string, timeout time.Duration, warm WarmFunc) (*Warmer, error) {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	w := &Warmer{
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		warm:    warm,
		timeout: timeout,
		baseCtx: baseCtx,
		log:     logger.GetLogger(),
	}
	if _, err := w.cron.AddFunc(spec, w.Run); err != nil {
		return nil, fmt.Errorf("invalid warm schedule %q: %w", spec, err)
	}
	return w, nil
}

// Run performs one warm-up.
func (w *Warmer) Run() {
	ctx := w.baseCtx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	log := w.log.WithComponent("scheduler")
	start := time.Now()
	if err := w.warm(ctx); err != nil {
		log.WithError(err).Warn("cache warm-up failed")
		return
	}
	log.WithFields(logger.Fields{"duration_ms": time.Since(start).Milliseconds()}).Debug("cache warm-up finished")
}

func (w *Warmer) Start() {
	w.log.WithComponent("scheduler").WithFields(logger.Fields{"schedule": w.spec}).Info("cache warmer started")
	w.cron.Start()
}

// Stop waits for a running warm-up to finish.
func (w *Warmer) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.log.WithComponent("scheduler").Info("cache warmer stopped")
}
