package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

type feedStat struct {
	downloads int64
	bytes     int64
}

type componentStat struct {
	warns  int64
	errors int64
}

var (
	feeds      sync.Map // map[string]*feedStat
	components sync.Map // map[string]*componentStat
)

var virtualMemoryFn = mem.VirtualMemory

func componentStats(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&componentStats(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&componentStats(component).errors, 1)
}

// RecordFeedDownload counts one downloaded feed file and its size.
func RecordFeedDownload(feed string, size int) {
	v, _ := feeds.LoadOrStore(feed, &feedStat{})
	fs := v.(*feedStat)
	atomic.AddInt64(&fs.downloads, 1)
	atomic.AddInt64(&fs.bytes, int64(size))
}

// StartReport logs a runtime report every interval until ctx is done.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.WithComponent("report").WithFields(reportFields()).Info("runtime report")
			}
		}
	}()
}

func reportFields() Fields {
	feedData := map[string]map[string]int64{}
	feeds.Range(func(k, v any) bool {
		fs := v.(*feedStat)
		feedData[k.(string)] = map[string]int64{
			"downloads": atomic.LoadInt64(&fs.downloads),
			"bytes":     atomic.LoadInt64(&fs.bytes),
		}
		return true
	})

	componentData := map[string]map[string]int64{}
	components.Range(func(k, v any) bool {
		cs := v.(*componentStat)
		componentData[k.(string)] = map[string]int64{
			"warns":  atomic.LoadInt64(&cs.warns),
			"errors": atomic.LoadInt64(&cs.errors),
		}
		return true
	})

	fields := Fields{
		"goroutines": runtime.NumGoroutine(),
		"feeds":      feedData,
		"components": componentData,
	}
	if memStats, err := virtualMemoryFn(); err == nil {
		fields["memory_mb"] = int64(memStats.Used) / 1024 / 1024
	}
	return fields
}
