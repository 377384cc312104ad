package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/sron/internal/config"
	"github.com/torosent/sron/internal/httpclient"
	"github.com/torosent/sron/internal/metrics"
	"github.com/torosent/sron/internal/output"
	"github.com/torosent/sron/internal/runner"
	"github.com/torosent/sron/internal/threshold"
	"github.com/torosent/sron/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

// errThresholdsFailed is returned after output when at least one threshold failed.
var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	runID := ulid.Make().String()
	ctx := context.Background()

	provider, err := tracing.Init(ctx, cfg.Tracing, runID)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "[sron] tracing shutdown: %v\n", err)
		}
	}()

	builders, err := httpclient.NewRequestBuilders(cfg)
	if err != nil {
		return err
	}
	reqs, buildErr := httpclient.Requests(ctx, builders, !cfg.Once)

	collector := metrics.NewCollector()
	observers := runner.Observers{collector}
	loggers := runner.MultiLogger{collector}

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter(runID)
		addr, err := exporter.Serve(cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		fmt.Fprintf(stderr, "[sron] serving metrics on http://%s/metrics\n", addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = exporter.Shutdown(shutdownCtx)
		}()
		observers = append(observers, exporter)
		loggers = append(loggers, exporter)
	}

	if cfg.LogErrors {
		failureLog := newStderrFailureLogger(stderr, failureLogRate, failureLogBurst)
		defer failureLog.Flush()
		loggers = append(loggers, failureLog)
	}

	client := httpclient.NewRequester(httpclient.NewClient(cfg.Timeout), httpclient.WithTracing(provider))

	r, err := runner.New[*http.Request](runner.Options{
		Period:   cfg.Period,
		Duration: cfg.Duration,
		Timeout:  cfg.Timeout,
		Observer: observers,
		Failures: loggers,
	}, client)
	if err != nil {
		return err
	}

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(collector, progressInterval, stderr)
		progress.Start()
	}

	start := time.Now()
	records, err := r.Run(ctx, reqs)
	elapsed := time.Since(start)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}
	if err := buildErr(); err != nil {
		return err
	}

	if timeouts := output.CountTimeouts(records); timeouts > 0 {
		fmt.Fprintf(stderr, "%d of %d requests timed out\n", timeouts, len(records))
	}
	if err := output.WriteResults(stdout, cfg.Format, records); err != nil {
		return err
	}

	stats := collector.Stats(elapsed)
	if cfg.Summary {
		output.PrintReport(stderr, runID, stats)
	}

	if len(thresholds) > 0 {
		results := threshold.NewEvaluator(thresholds).Evaluate(stats)
		output.PrintThresholdResults(stderr, results)
		if !threshold.AllPassed(results) {
			return errThresholdsFailed
		}
	}
	return nil
}
