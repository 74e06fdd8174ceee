package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"symdir/config"
	"symdir/internal/cache"
	"symdir/internal/metrics"
	"symdir/logger"
	"symdir/models"
)

//go:embed templates/*.tmpl assets/*
var embeddedFS embed.FS

const defaultPort = "8080"

// SnapshotSource is what the dashboard reads listings from; the snapshot
// cache implements it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	Stats() cache.Stats
}

// Server hosts the symbol directory dashboard and its JSON API.
type Server struct {
	cfg               config.DashboardConfig
	log               *logger.Log
	source            SnapshotSource
	metricStore       *metricStore
	logStore          *logStore
	metricHandler     metrics.MetricHandlerID
	events            *eventHub
	exportLimiter     *rate.Limiter
	metricsHandler    http.Handler
	httpServer        *http.Server
	refreshIntervalMs int
	resourceSampler   *resourceSampler
}

type Option func(*Server)

// WithMetricsHandler mounts h (the Prometheus exposition) on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// NewServer returns nil when the dashboard is disabled.
func NewServer(cfg config.DashboardConfig, log *logger.Log, source SnapshotSource, opts ...Option) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if source == nil {
		return nil, errors.New("dashboard requires a snapshot source")
	}

	cfg.Address = listenAddress(cfg.Address)
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.LogHistory <= 0 {
		cfg.LogHistory = 200
	}
	if cfg.MetricsHistory <= 0 {
		cfg.MetricsHistory = 200
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 1000
	}

	metricStore := newMetricStore(cfg.MetricsHistory)
	handlerID := metrics.RegisterMetricHandler(metricStore.handle)

	logStore := newLogStore(cfg.LogHistory)
	log.AddHook(logStore)

	limit := rate.Inf
	if cfg.ExportRate > 0 {
		limit = rate.Limit(cfg.ExportRate)
	}
	burst := cfg.ExportBurst
	if burst <= 0 {
		burst = 1
	}

	server := &Server{
		cfg:               cfg,
		log:               log,
		source:            source,
		metricStore:       metricStore,
		logStore:          logStore,
		metricHandler:     handlerID,
		events:            newEventHub(log),
		exportLimiter:     rate.NewLimiter(limit, burst),
		refreshIntervalMs: int(cfg.RefreshInterval / time.Millisecond),
		resourceSampler:   newResourceSampler(cfg.MetricsHistory, cfg.RefreshInterval, "/", log),
	}
	for _, opt := range opts {
		opt(server)
	}
	return server, nil
}

// Notify pushes a rebuild outcome to websocket subscribers. Register it
// with the cache's OnRebuild.
func (s *Server) Notify(ev cache.RebuildEvent) {
	if s == nil {
		return
	}
	s.events.broadcast(newSnapshotEvent(ev))
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	router, err := s.buildRouter(appName)
	if err != nil {
		return err
	}
	s.resourceSampler.start(ctx)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log := s.log.WithComponent("dashboard").WithFields(logger.Fields{"address": s.cfg.Address})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("dashboard listening")
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.events.close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) cleanup() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	s.logStore.close()
	s.resourceSampler.stop()
	s.events.close()
}

func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter(appName string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestMetrics())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	tmpl := template.Must(template.New("dashboard").ParseFS(embeddedFS, "templates/index.tmpl"))
	router.SetHTMLTemplate(tmpl)

	if assetsFS, err := fsSub("assets"); err == nil {
		router.StaticFS("/assets", http.FS(assetsFS))
	}

	router.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.tmpl", gin.H{
			"AppName":           appName,
			"RefreshIntervalMs": s.refreshIntervalMs,
			"Exchanges":         models.ExchangeDetails(),
			"Types":             models.SecurityTypes(),
		})
	})
	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	api.GET("/snapshot", s.handleSnapshot)
	api.GET("/listings", s.handleListings)
	api.GET("/export", s.handleExport)
	api.GET("/events", s.events.serve)

	stats := api.Group("/stats")
	stats.GET("/summary", s.handleSummary)
	stats.GET("/exchanges", s.handleExchanges)
	stats.GET("/types", s.handleTypes)
	stats.GET("/exchange-types", s.handleExchangeTypes)
	stats.GET("/categories", s.handleCategories)
	stats.GET("/report", s.handleReport)

	api.GET("/metrics", s.handleMetricHistory)
	api.GET("/logs", s.handleLogs)
	api.GET("/resources", s.handleResources)

	if s.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	return router, nil
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(route, c.Writer.Status())
	}
}

func fsSub(path string) (fs.FS, error) {
	sub, err := fs.Sub(embeddedFS, path)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// listenAddress turns the configured address (host, :port, host:port or a
// URL) into host:port. Empty and wildcard hosts bind all interfaces.
func listenAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if i := strings.Index(addr, "://"); i >= 0 {
		if u, err := url.Parse(addr); err == nil && u.Host != "" {
			addr = u.Host
		} else {
			addr = strings.TrimSuffix(addr[i+3:], "/")
		}
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		// no port, or a bare IPv6 literal
		host, port = strings.Trim(addr, "[]"), ""
	}
	if host == "" || host == "*" {
		host = "0.0.0.0"
	}
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port)
}
