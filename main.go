package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"symdir/config"
	"symdir/internal/cache"
	"symdir/internal/dashboard"
	"symdir/internal/metrics"
	"symdir/internal/pipeline"
	"symdir/internal/query"
	"symdir/internal/scheduler"
	"symdir/logger"
	"symdir/models"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	warmOnStart := flag.Bool("warm", true, "Build the first snapshot before serving")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": config.AppEnvironment(),
		"source":      cfg.Feed.Source,
	}).Info("starting symdir")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	metrics.Init()
	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch)
	}

	builder, err := pipeline.FromConfig(ctx, cfg.Feed)
	if err != nil {
		log.WithError(err).Error("failed to create feed pipeline")
		os.Exit(1)
	}

	snapshots := cache.New(builder.Build, cfg.Cache.TTL, cache.WithLogger(log), cache.WithBuildTimeout(2*cfg.Feed.Timeout+30*time.Second))
	snapshots.OnRebuild(recordRebuild)

	var opts []dashboard.Option
	if cfg.Metrics.Prometheus {
		opts = append(opts, dashboard.WithMetricsHandler(metrics.Handler()))
	}
	dash, err := dashboard.NewServer(cfg.Dashboard, log, snapshots, opts...)
	if err != nil {
		log.WithError(err).Error("failed to create dashboard")
		os.Exit(1)
	}
	if dash != nil {
		snapshots.OnRebuild(dash.Notify)
	}

	if *warmOnStart {
		if _, err := snapshots.Snapshot(ctx); err != nil {
			log.WithError(err).Warn("initial snapshot failed; serving will retry on demand")
		}
	}

	var warmer *scheduler.Warmer
	if cfg.Cache.WarmSchedule != "" {
		warmer, err = scheduler.New(ctx, cfg.Cache.WarmSchedule, cfg.Feed.Timeout*2, func(ctx context.Context) error {
			_, err := snapshots.Snapshot(ctx)
			return err
		})
		if err != nil {
			log.WithError(err).Error("failed to create cache warmer")
			os.Exit(1)
		}
		warmer.Start()
	}

	var wg sync.WaitGroup
	if dash != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dash.Run(ctx, cfg.App.Name); err != nil {
				log.WithError(err).Error("dashboard stopped")
				cancel()
			}
		}()
	} else {
		log.WithComponent("main").Info("dashboard disabled; running cache warmer only")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown")
	cancel()

	if warmer != nil {
		log.Info("stopping cache warmer")
		warmer.Stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("symdir stopped")
}

func recordRebuild(ev cache.RebuildEvent) {
	metrics.RecordRebuild(ev.Duration, ev.Err)
	if ev.Snapshot == nil {
		return
	}
	metrics.RecordSnapshot(ev.Snapshot.RetrievedAt(), rowsByExchange(ev.Snapshot.Listings()))
}

func rowsByExchange(ls []models.Listing) map[string]int {
	out := make(map[string]int)
	for _, c := range query.CountByExchange(ls) {
		out[c.Label] = c.Count
	}
	return out
}
