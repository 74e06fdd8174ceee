package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"symdir/internal/export"
	"symdir/internal/metrics"
	"symdir/internal/query"
	"symdir/logger"
	"symdir/models"
)

const (
	defaultPageSize = 100
	topExchanges    = 10
)

// loadSnapshot resolves the current snapshot. It writes a 503 and returns
// false when nothing has been built yet. A snapshot served after a failed
// rebuild is marked with X-Snapshot-Stale.
func (s *Server) loadSnapshot(c *gin.Context) (*models.Snapshot, bool) {
	snap, err := s.source.Snapshot(c.Request.Context())
	if snap == nil {
		msg := "snapshot unavailable"
		if err != nil {
			msg = err.Error()
		}
		s.log.WithComponent("dashboard").WithError(err).Warn("no snapshot to serve")
		fail(c, http.StatusServiceUnavailable, msg)
		return nil, false
	}
	if err != nil {
		c.Header("X-Snapshot-Stale", "true")
	}
	return snap, true
}

func snapshotMeta(snap *models.Snapshot) map[string]any {
	return map[string]any{
		"snapshot_id":  snap.ID(),
		"retrieved_at": snap.RetrievedAt().Format(time.RFC3339),
		"source":       snap.Source(),
	}
}

// filtered applies the q/exchange/type query parameters. On bad input it
// writes a 400 and returns false.
func filtered(c *gin.Context, snap *models.Snapshot) ([]models.Listing, query.Filter, bool) {
	f, err := query.ParseFilter(c.Query("q"), c.QueryArray("exchange"), c.QueryArray("type"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return nil, f, false
	}
	return f.Apply(snap.Listings()), f, true
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return v, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.source.Stats()
	status := http.StatusOK
	state := "ok"
	if stats.SnapshotID == "" {
		status = http.StatusServiceUnavailable
		state = "warming"
	} else if stats.LastError != "" {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "cache": stats})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap, found := s.loadSnapshot(c)
	if !found {
		return
	}
	ok(c, gin.H{
		"rows":      snap.Len(),
		"nasdaq":    len(snap.Nasdaq()),
		"other":     len(snap.Other()),
		"exchanges": query.Options(snap.Listings()),
		"types":     models.SecurityTypes(),
		"cache":     s.source.Stats(),
	}, snapshotMeta(snap))
}

func (s *Server) handleListings(c *gin.Context) {
	snap, found := s.loadSnapshot(c)
	if !found {
		return
	}
	f, err := query.ParseFilter(c.Query("q"), c.QueryArray("exchange"), c.QueryArray("type"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intQuery(c, "limit", defaultPageSize)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 || limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	ok(c, query.Paginate(snap.Listings(), f, offset, limit), snapshotMeta(snap))
}

func (s *Server) handleSummary(c *gin.Context) {
	s.withFiltered(c, func(ls []models.Listing) any { return query.Summarize(ls) })
}

func (s *Server) handleExchanges(c *gin.Context) {
	s.withFiltered(c, func(ls []models.Listing) any { return query.CountByExchange(ls) })
}

func (s *Server) handleTypes(c *gin.Context) {
	s.withFiltered(c, func(ls []models.Listing) any { return query.CountByType(ls) })
}

func (s *Server) handleExchangeTypes(c *gin.Context) {
	s.withFiltered(c, func(ls []models.Listing) any { return query.ExchangeTypeBreakdown(ls) })
}

func (s *Server) handleCategories(c *gin.Context) {
	s.withFiltered(c, func(ls []models.Listing) any { return query.CountByMarketCategory(ls) })
}

func (s *Server) handleReport(c *gin.Context) {
	s.withFiltered(c, func(ls []models.Listing) any { return query.BuildReport(ls, topExchanges) })
}

func (s *Server) withFiltered(c *gin.Context, aggregate func([]models.Listing) any) {
	snap, found := s.loadSnapshot(c)
	if !found {
		return
	}
	ls, _, valid := filtered(c, snap)
	if !valid {
		return
	}
	meta := snapshotMeta(snap)
	meta["matched"] = len(ls)
	ok(c, aggregate(ls), meta)
}

func (s *Server) handleExport(c *gin.Context) {
	if !s.exportLimiter.Allow() {
		fail(c, http.StatusTooManyRequests, "export rate limit exceeded")
		return
	}

	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	var columns []export.Column
	if names := c.QueryArray("columns"); len(names) > 0 {
		columns, err = export.ParseColumns(names)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	snap, found := s.loadSnapshot(c)
	if !found {
		return
	}
	ls, _, valid := filtered(c, snap)
	if !valid {
		return
	}
	ls = query.SortBySymbol(ls)

	payload, contentType, err := export.Export(ls, format, columns)
	if err != nil {
		s.log.WithComponent("dashboard").WithError(err).WithFields(logger.Fields{"format": format}).Error("export failed")
		fail(c, http.StatusInternalServerError, "export failed")
		return
	}
	metrics.RecordExport(string(format), len(ls), len(payload))

	c.Header("Content-Disposition", `attachment; filename="`+format.FileName()+`"`)
	c.Header("X-Snapshot-Id", snap.ID())
	c.Data(http.StatusOK, contentType, payload)
}

func (s *Server) handleMetricHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"metrics": s.metricStore.snapshot()})
}

func (s *Server) handleLogs(c *gin.Context) {
	logs := s.logStore.snapshot()
	if level := c.Query("level"); level != "" {
		kept := logs[:0]
		for _, l := range logs {
			if l.Level == level {
				kept = append(kept, l)
			}
		}
		logs = kept
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (s *Server) handleResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"resources": s.resourceSampler.snapshot()})
}
