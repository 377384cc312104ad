// Package metrics aggregates run events into summary statistics and live Prometheus
// series.
//
// # Collector
//
// [Collector] is a [runner.Observer] and a [runner.FailureLogger]. It counts admissions,
// completions and timeouts, keeps HDR histograms of latency and dispatch lag, and
// breaks client errors down by type and status code:
//
//	collector := metrics.NewCollector()
//	opts.Observer = collector
//	opts.Failures = collector
//
//	stats := collector.Stats(elapsed)
//
// Latency statistics cover completed requests only; timed out requests have no
// latency and are counted separately.
//
// # Exporter
//
// [Exporter] mirrors the same events into a private Prometheus registry and can serve
// it over HTTP while the run is in progress:
//
//	exporter := metrics.NewExporter(runID)
//	addr, err := exporter.Serve(":9090")
//	defer exporter.Shutdown(ctx)
//
// # Thread Safety
//
// Both types are safe for concurrent use from the pacing loop and request goroutines.
package metrics
