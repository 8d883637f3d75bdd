package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Swind/go-background-task/core"
	"github.com/Swind/go-background-task/internal/config"
	"github.com/Swind/go-background-task/internal/workload"
	bgprom "github.com/Swind/go-background-task/observability/prometheus"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run a batch of checksum tasks",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tasks", Aliases: []string{"n"}, Usage: "number of background tasks"},
			&cli.DurationFlag{Name: "work", Usage: "simulated work per task"},
			&cli.Float64Flag{Name: "failure-rate", Usage: "fraction of tasks that fail (0..1)"},
			&cli.DurationFlag{Name: "wait-timeout", Usage: "how long to wait for all tasks"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve /metrics and /healthz on this address"},
			&cli.DurationFlag{Name: "linger", Usage: "keep the metrics server up this long after the run"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "payload and failure seed"},
		},
		Action: runAction,
	}
}

// applyRunFlags overrides cfg with flags the user actually set.
func applyRunFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("tasks") {
		cfg.Run.Tasks = c.Int("tasks")
	}
	if c.IsSet("work") {
		cfg.Run.Work = c.Duration("work")
	}
	if c.IsSet("failure-rate") {
		cfg.Run.FailureRate = c.Float64("failure-rate")
	}
	if c.IsSet("wait-timeout") {
		cfg.Run.WaitTimeout = c.Duration("wait-timeout")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	return cfg.Validate()
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applyRunFlags(c, cfg); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	zl, err := newLogger(cfg.Log)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to build logger: %v", err), 1)
	}
	defer func() { _ = zl.Sync() }()

	summary, err := runBatch(c.Context, cfg, c.Uint64("seed"), zl, c.Duration("linger"))
	if summary != nil {
		printSummary(c.App.Writer, summary)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	return nil
}

// batchResult is what runBatch hands back for printing.
type batchResult struct {
	View    workload.Summary
	Stats   core.TaskStats
	Recent  []core.TaskExecutionRecord
	Elapsed time.Duration
}

func runBatch(ctx context.Context, cfg *config.Config, seed uint64, zl *zap.Logger, linger time.Duration) (*batchResult, error) {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	exporter, err := bgprom.NewMetricsExporter(cfg.Metrics.Namespace, reg, bgprom.ExporterOptions{})
	if err != nil {
		return nil, err
	}
	poller, err := bgprom.NewSnapshotPoller(cfg.Metrics.Namespace, reg, cfg.Metrics.PollInterval)
	if err != nil {
		return nil, err
	}

	logger := core.NewZapLogger(zl)
	taskCfg := &core.TaskConfig{Logger: logger, Metrics: exporter}

	ui := core.NewUIThread(
		core.WithUIThreadName("ui"),
		core.WithUIThreadConfig(taskCfg),
		core.WithUIThreadHistory(cfg.Run.History),
	)
	defer ui.Stop()

	tracker := core.NewTracker()
	history := core.NewExecutionHistory(cfg.Run.History)
	poller.AddRunner(ui.Name(), ui)
	poller.AddTracker(cfg.Run.Category, tracker)
	poller.Start(ctx)
	defer poller.Stop()

	if cfg.Metrics.Addr != "" {
		srv, err := startMetricsServer(cfg.Metrics.Addr, newRouter(reg, ui), zl)
		if err != nil {
			return nil, fmt.Errorf("metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.shutdown(shutdownCtx)
		}()
	}

	view := workload.NewViewModel()
	tasks := make([]*core.BackgroundTask[workload.Checksum], 0, cfg.Run.Tasks)
	start := time.Now()

	for i := 0; i < cfg.Run.Tasks; i++ {
		job := &workload.ChecksumJob{
			Index:       i,
			Seed:        seed,
			PayloadSize: cfg.Run.PayloadSize,
			Work:        cfg.Run.Work,
			FailureRate: cfg.Run.FailureRate,
			View:        view,
		}
		task := core.New[workload.Checksum](job,
			core.WithName(fmt.Sprintf("checksum-%d", i)),
			core.WithCategory(cfg.Run.Category),
			core.WithDispatcher(ui),
			core.WithConfig(taskCfg),
			core.WithHistory(history),
			core.WithTracker(tracker),
		)
		if err := task.Execute(); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Run.WaitTimeout)
	defer cancel()

	failed := 0
	for _, task := range tasks {
		err := task.WaitForCompletion(waitCtx)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrInterrupted):
			return nil, fmt.Errorf("waiting for %s: %w", task.Name(), err)
		default:
			failed++
		}
	}
	elapsed := time.Since(start)

	summary, err := workload.SummaryOn(waitCtx, ui, view)
	if err != nil {
		return nil, err
	}
	poller.Collect()

	zl.Info("batch finished",
		zap.Int("tasks", len(tasks)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed))

	if linger > 0 && cfg.Metrics.Addr != "" {
		select {
		case <-time.After(linger):
		case <-ctx.Done():
		}
	}

	result := &batchResult{View: summary, Stats: tracker.Stats(), Elapsed: elapsed}
	if cfg.Run.History > 0 {
		result.Recent = history.Recent(cfg.Run.History)
	}
	return result, nil
}

func printSummary(w io.Writer, r *batchResult) {
	fmt.Fprintf(w, "✓ %d succeeded, %d failed, %d bytes hashed in %s\n",
		r.View.Succeeded, r.View.Failed, r.View.Bytes, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  tasks: created=%d completed=%d failed=%d\n",
		r.Stats.Created, r.Stats.Completed, r.Stats.Failed)

	if len(r.Recent) == 0 {
		return
	}
	fmt.Fprintln(w, "recent:")
	for _, rec := range r.Recent {
		status := "ok"
		if rec.Failed {
			status = fmt.Sprintf("failed during %s", rec.Phase)
		}
		fmt.Fprintf(w, "  %-14s compute=%-8s post=%-8s %s\n",
			rec.Name, rec.ComputeTime.Round(time.Microsecond), rec.PostProcTime.Round(time.Microsecond), status)
	}
}
