package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-background-task/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// ComputeBuckets are the histogram buckets for the background phase.
	ComputeBuckets []float64
	// PostProcessBuckets are the histogram buckets for the UI-thread phase.
	// UI work should be short, so the default buckets start at 100µs.
	PostProcessBuckets []float64
}

var defaultPostProcessBuckets = prom.ExponentialBuckets(0.0001, 4, 8)

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	computeSeconds     *prom.HistogramVec
	postProcessSeconds *prom.HistogramVec
	completedTotal     *prom.CounterVec
	panicTotal         *prom.CounterVec
	rejectedTotal      *prom.CounterVec
	queueDepth         *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
// Registering twice against the same registry reuses the existing collectors.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "backgroundtask"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	computeBuckets := opts.ComputeBuckets
	if len(computeBuckets) == 0 {
		computeBuckets = prom.DefBuckets
	}
	postBuckets := opts.PostProcessBuckets
	if len(postBuckets) == 0 {
		postBuckets = defaultPostProcessBuckets
	}

	computeVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "compute_duration_seconds",
		Help:      "Background compute duration in seconds.",
		Buckets:   computeBuckets,
	}, []string{"category"})
	postVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "post_process_duration_seconds",
		Help:      "UI-thread post-processing duration in seconds.",
		Buckets:   postBuckets,
	}, []string{"category"})
	completedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_completed_total",
		Help:      "Total number of completed background tasks by outcome.",
	}, []string{"category", "outcome"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of recovered panics.",
	}, []string{"source"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of work items rejected by a dispatcher.",
	}, []string{"runner", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current UI thread queue depth.",
	}, []string{"runner"})

	var err error
	if computeVec, err = registerCollector(reg, computeVec); err != nil {
		return nil, err
	}
	if postVec, err = registerCollector(reg, postVec); err != nil {
		return nil, err
	}
	if completedVec, err = registerCollector(reg, completedVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		computeSeconds:     computeVec,
		postProcessSeconds: postVec,
		completedTotal:     completedVec,
		panicTotal:         panicVec,
		rejectedTotal:      rejectedVec,
		queueDepth:         queueDepthVec,
	}, nil
}

// RecordComputeDuration records how long the background phase took.
func (m *MetricsExporter) RecordComputeDuration(category string, duration time.Duration) {
	if m == nil {
		return
	}
	m.computeSeconds.WithLabelValues(normalizeLabel(category, "default")).Observe(duration.Seconds())
}

// RecordPostProcessDuration records how long the UI-thread phase took.
func (m *MetricsExporter) RecordPostProcessDuration(category string, duration time.Duration) {
	if m == nil {
		return
	}
	m.postProcessSeconds.WithLabelValues(normalizeLabel(category, "default")).Observe(duration.Seconds())
}

// RecordTaskCompleted counts a finished task. outcome is "ok" or the failed phase.
func (m *MetricsExporter) RecordTaskCompleted(category string, outcome string) {
	if m == nil {
		return
	}
	m.completedTotal.WithLabelValues(normalizeLabel(category, "default"), normalizeLabel(outcome, "unknown")).Inc()
}

// RecordTaskPanic records panic events.
func (m *MetricsExporter) RecordTaskPanic(source string, panicInfo any) {
	if m == nil {
		return
	}
	m.panicTotal.WithLabelValues(normalizeLabel(source, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(runnerName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(runnerName, "unknown")).Set(float64(depth))
}

// RecordTaskRejected records rejection events.
func (m *MetricsExporter) RecordTaskRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
