package status

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"cryptostream/logger"
)

// Resources is one sample of host utilisation.
type Resources struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryPct   float64   `json:"memory_percent"`
	DiskUsed    uint64    `json:"disk_used"`
	DiskTotal   uint64    `json:"disk_total"`
	DiskPct     float64   `json:"disk_percent"`
	Goroutines  int       `json:"goroutines"`
}

var (
	cpuPercentFn = func(ctx context.Context) ([]float64, error) {
		return cpu.PercentWithContext(ctx, 0, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

// sampler keeps a bounded history of resource samples taken on a ticker.
type sampler struct {
	mu       sync.RWMutex
	items    []Resources
	limit    int
	interval time.Duration
	diskPath string
	log      *logger.Log
	wg       sync.WaitGroup
}

func newSampler(limit int, interval time.Duration, diskPath string, log *logger.Log) *sampler {
	if limit <= 0 {
		limit = 120
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return &sampler{limit: limit, interval: interval, diskPath: diskPath, log: log}
}

// start samples once immediately and then every interval until ctx is done.
func (s *sampler) start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			s.sample(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *sampler) wait() { s.wg.Wait() }

func (s *sampler) sample(ctx context.Context) {
	log := s.log.WithComponent("resource_sampler")
	r := Resources{Timestamp: time.Now(), Goroutines: runtime.NumGoroutine()}

	if samples, err := cpuPercentFn(ctx); err != nil {
		log.WithError(err).Debug("failed to sample cpu usage")
	} else if len(samples) > 0 {
		r.CPUPercent = samples[0]
	}
	if m, err := memoryStatsFn(ctx); err != nil {
		log.WithError(err).Debug("failed to sample memory usage")
	} else {
		r.MemoryUsed, r.MemoryTotal, r.MemoryPct = m.Used, m.Total, m.UsedPercent
	}
	if d, err := diskUsageFn(ctx, s.diskPath); err != nil {
		log.WithError(err).Debug("failed to sample disk usage")
	} else {
		r.DiskUsed, r.DiskTotal, r.DiskPct = d.Used, d.Total, d.UsedPercent
	}

	s.mu.Lock()
	s.items = append(s.items, r)
	if len(s.items) > s.limit {
		s.items = append([]Resources(nil), s.items[len(s.items)-s.limit:]...)
	}
	s.mu.Unlock()
}

func (s *sampler) snapshot() []Resources {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Resources, len(s.items))
	copy(out, s.items)
	return out
}
