package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-background-task/core"
)

// RunnerSnapshotProvider provides current UI thread stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// TaskSnapshotProvider provides background task lifecycle counts.
type TaskSnapshotProvider interface {
	Stats() core.TaskStats
}

// SnapshotPoller periodically exports UIThread and Tracker Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	runnersMu sync.RWMutex
	runners   map[string]RunnerSnapshotProvider

	trackersMu sync.RWMutex
	trackers   map[string]TaskSnapshotProvider

	runnerPending   *prom.GaugeVec
	runnerProcessed *prom.GaugeVec
	runnerRejected  *prom.GaugeVec
	runnerClosed    *prom.GaugeVec

	tasksByState *prom.GaugeVec
	tasksFailed  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "backgroundtask"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	runnerPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "ui_thread_pending",
		Help:      "Number of work items queued on the UI thread.",
	}, []string{"runner"})
	runnerProcessed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "ui_thread_processed",
		Help:      "UI thread processed work item count snapshot.",
	}, []string{"runner"})
	runnerRejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "ui_thread_rejected",
		Help:      "UI thread rejected work item count snapshot.",
	}, []string{"runner"})
	runnerClosed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "ui_thread_closed",
		Help:      "UI thread closed state (1=closed, 0=open).",
	}, []string{"runner"})

	tasksByState := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks",
		Help:      "Background tasks per lifecycle state. created and completed are cumulative.",
	}, []string{"tracker", "state"})
	tasksFailed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_failed",
		Help:      "Completed background tasks that failed.",
	}, []string{"tracker"})

	var err error
	if runnerPending, err = registerCollector(reg, runnerPending); err != nil {
		return nil, err
	}
	if runnerProcessed, err = registerCollector(reg, runnerProcessed); err != nil {
		return nil, err
	}
	if runnerRejected, err = registerCollector(reg, runnerRejected); err != nil {
		return nil, err
	}
	if runnerClosed, err = registerCollector(reg, runnerClosed); err != nil {
		return nil, err
	}
	if tasksByState, err = registerCollector(reg, tasksByState); err != nil {
		return nil, err
	}
	if tasksFailed, err = registerCollector(reg, tasksFailed); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:        interval,
		runners:         make(map[string]RunnerSnapshotProvider),
		trackers:        make(map[string]TaskSnapshotProvider),
		runnerPending:   runnerPending,
		runnerProcessed: runnerProcessed,
		runnerRejected:  runnerRejected,
		runnerClosed:    runnerClosed,
		tasksByState:    tasksByState,
		tasksFailed:     tasksFailed,
	}, nil
}

// AddRunner adds or replaces a UI thread snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "ui")
	p.runnersMu.Lock()
	p.runners[name] = provider
	p.runnersMu.Unlock()
}

// AddTracker adds or replaces a task tracker by name.
func (p *SnapshotPoller) AddTracker(name string, provider TaskSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "default")
	p.trackersMu.Lock()
	p.trackers[name] = provider
	p.trackersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()

	cancel()
	<-done
}

// Collect takes one snapshot immediately.
func (p *SnapshotPoller) Collect() {
	if p == nil {
		return
	}
	p.collectOnce()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.runnersMu.RLock()
	for name, provider := range p.runners {
		stats := provider.Stats()
		p.runnerPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.runnerProcessed.WithLabelValues(name).Set(float64(stats.Processed))
		p.runnerRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.runnerClosed.WithLabelValues(name).Set(boolGauge(stats.Closed))
	}
	p.runnersMu.RUnlock()

	p.trackersMu.RLock()
	for name, provider := range p.trackers {
		stats := provider.Stats()
		p.tasksByState.WithLabelValues(name, "created").Set(float64(stats.Created))
		p.tasksByState.WithLabelValues(name, "running").Set(float64(stats.Running))
		p.tasksByState.WithLabelValues(name, "post_processing").Set(float64(stats.PostProcessing))
		p.tasksByState.WithLabelValues(name, "completed").Set(float64(stats.Completed))
		p.tasksFailed.WithLabelValues(name).Set(float64(stats.Failed))
	}
	p.trackersMu.RUnlock()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
