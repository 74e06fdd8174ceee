package dashboard

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"symdir/logger"
)

type resourceSample struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryPct   float64   `json:"memory_percent"`
	MemoryTotal uint64    `json:"memory_total"`
	DiskPct     float64   `json:"disk_percent"`
	DiskTotal   uint64    `json:"disk_total"`
	ProcessRSS  uint64    `json:"process_rss"`
	Goroutines  int       `json:"goroutines"`
}

// probe reads host and process usage. Fields are swapped out in tests.
type probe struct {
	cpu  func(ctx context.Context) (float64, error)
	mem  func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	disk func(ctx context.Context, path string) (*disk.UsageStat, error)
	rss  func(ctx context.Context) (uint64, error)
}

func hostProbe() probe {
	return probe{
		cpu: func(ctx context.Context) (float64, error) {
			// Zero interval reports usage since the previous call.
			pct, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil || len(pct) == 0 {
				return 0, err
			}
			return pct[0], nil
		},
		mem:  mem.VirtualMemoryWithContext,
		disk: disk.UsageWithContext,
		rss: func(ctx context.Context) (uint64, error) {
			p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
			if err != nil {
				return 0, err
			}
			info, err := p.MemoryInfoWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return info.RSS, nil
		},
	}
}

// resourceSampler polls the probe on a ticker for the resources panel.
type resourceSampler struct {
	probe    probe
	samples  *history[resourceSample]
	interval time.Duration
	diskPath string
	log      *logger.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newResourceSampler(capacity int, interval time.Duration, diskPath string, log *logger.Log) *resourceSampler {
	if interval <= 0 {
		interval = time.Second
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &resourceSampler{
		probe:    hostProbe(),
		samples:  newHistory[resourceSample](capacity),
		interval: interval,
		diskPath: diskPath,
		log:      log.WithComponent("resources"),
	}
}

// start is a no-op while a previous loop is still running.
func (s *resourceSampler) start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *resourceSampler) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *resourceSampler) snapshot() []resourceSample {
	return s.samples.snapshot()
}

func (s *resourceSampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if sample, err := s.collect(ctx); err != nil {
			s.log.WithError(err).Debug("resource sample failed")
		} else {
			s.samples.push(sample)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *resourceSampler) collect(ctx context.Context) (resourceSample, error) {
	cpuPct, err := s.probe.cpu(ctx)
	if err != nil {
		return resourceSample{}, err
	}
	vm, err := s.probe.mem(ctx)
	if err != nil {
		return resourceSample{}, err
	}
	du, err := s.probe.disk(ctx, s.diskPath)
	if err != nil {
		return resourceSample{}, err
	}
	sample := resourceSample{
		Timestamp:   time.Now().UTC(),
		CPUPercent:  cpuPct,
		MemoryPct:   vm.UsedPercent,
		MemoryTotal: vm.Total,
		DiskPct:     du.UsedPercent,
		DiskTotal:   du.Total,
		Goroutines:  runtime.NumGoroutine(),
	}
	// RSS is best effort; some sandboxes hide /proc.
	if rss, err := s.probe.rss(ctx); err == nil {
		sample.ProcessRSS = rss
	}
	return sample, nil
}
