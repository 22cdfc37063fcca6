package logger

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/sirupsen/logrus"
)

type counter struct {
	count int64
	bytes int64
}

var (
	warns   sync.Map // component -> *counter
	errs    sync.Map // component -> *counter
	flows   sync.Map // stage name -> *counter
	started = time.Now()
)

func recordLevel(data logrus.Fields, level logrus.Level) {
	component, _ := data["component"].(string)
	if component == "" {
		component = "unknown"
	}
	target := &warns
	if level <= logrus.ErrorLevel {
		target = &errs
	}
	add(target, component, 0)
}

// RecordFlow counts one item of size bytes passing through stage, e.g.
// "raw_binance" or "kafka_write".
func RecordFlow(stage string, size int) {
	add(&flows, stage, size)
}

func add(m *sync.Map, key string, size int) {
	v, _ := m.LoadOrStore(key, &counter{})
	c := v.(*counter)
	atomic.AddInt64(&c.count, 1)
	atomic.AddInt64(&c.bytes, int64(size))
}

func snapshot(m *sync.Map) map[string]int64 {
	out := map[string]int64{}
	m.Range(func(k, v any) bool {
		out[k.(string)] = atomic.LoadInt64(&v.(*counter).count)
		return true
	})
	return out
}

// StartReport logs host and pipeline statistics every interval until ctx is
// cancelled, publishing them to CloudWatch when it is configured.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memUsed := uint64(0)
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsed = vm.Used
	}
	var sent, recv uint64
	if nc, err := gnet.IOCounters(false); err == nil && len(nc) > 0 {
		sent, recv = nc[0].BytesSent, nc[0].BytesRecv
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	warnCounts, errCounts, flowCounts := snapshot(&warns), snapshot(&errs), snapshot(&flows)
	log.WithComponent("report").WithFields(Fields{
		"uptime_s":       int64(time.Since(started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"heap_mb":        ms.HeapAlloc / 1024 / 1024,
		"cpu_percent":    cpuPct,
		"memory_mb":      memUsed / 1024 / 1024,
		"net_bytes_sent": sent,
		"net_bytes_recv": recv,
		"warns":          warnCounts,
		"errors":         errCounts,
		"flows":          flowCounts,
	}).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memUsed) / 1024 / 1024)},
		{MetricName: aws.String("Goroutines"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(runtime.NumGoroutine()))},
	}
	data = append(data, perKey("Warnings", "Component", warnCounts)...)
	data = append(data, perKey("Errors", "Component", errCounts)...)
	data = append(data, perKey("FlowMessages", "Stage", flowCounts)...)
	publishMetrics(ctx, data)
}

func perKey(metric, dimension string, counts map[string]int64) []cwtypes.MetricDatum {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]cwtypes.MetricDatum, 0, len(keys))
	for _, k := range keys {
		out = append(out, cwtypes.MetricDatum{
			MetricName: aws.String(metric),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{{Name: aws.String(dimension), Value: aws.String(k)}},
			Value:      aws.Float64(float64(counts[k])),
		})
	}
	return out
}
