package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStatsWorker publishes cpu, memory, threads and goroutines of the relay itself.
type ProcessStatsWorker struct {
	log      *slog.Logger
	interval time.Duration
	metrics  *observability.Metrics
}

func NewProcessStatsWorker(log *slog.Logger, interval time.Duration, metrics *observability.Metrics) *ProcessStatsWorker {
	return &ProcessStatsWorker{log: log, interval: interval, metrics: metrics}
}

func (w *ProcessStatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.collect(p)
		}
	}
}

func (w *ProcessStatsWorker) collect(p *process.Process) {
	w.metrics.ProcessGoroutines.Set(float64(runtime.NumGoroutine()))

	memInfo, err := p.MemoryInfo()
	if err != nil {
		w.log.Error("Error while finding process ram usage", "err", err)
	} else {
		w.metrics.ProcessRSSBytes.Set(float64(memInfo.RSS))
	}

	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Error("Error while finding process cpu usage", "err", err)
	} else {
		w.metrics.ProcessCPUPercent.Set(cpu)
	}

	threads, err := p.NumThreads()
	if err != nil {
		w.log.Debug("Error while finding process threads", "err", err)
		return
	}
	w.metrics.ProcessNumThreads.Set(float64(threads))
}
