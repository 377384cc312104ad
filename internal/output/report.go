package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/torosent/sron/internal/metrics"
	"github.com/torosent/sron/internal/threshold"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, runID string, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Run Summary ---")
	if runID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", runID)
	}
	fmt.Fprintf(w, "Admitted:          %d\n", stats.Total)
	fmt.Fprintf(w, "Completed:         %d\n", stats.Completed)
	fmt.Fprintf(w, "Timed out:         %d (%.2f%%)\n", stats.Timeouts, stats.TimeoutRate*100)
	fmt.Fprintf(w, "Client errors:     %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency (completed requests):")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)
	fmt.Fprintln(w, "\nDispatch lag:")
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLag)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Lag)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLag)

	if len(stats.FailureCodes) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, row := range metrics.FlattenStatusBuckets(stats.FailureCodes) {
			fmt.Fprintf(w, "  %s %s: %d\n", row.Class, row.Code, row.Count)
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nError Types:")
		types := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			types = append(types, name)
		}
		sort.Slice(types, func(i, j int) bool {
			if stats.Errors[types[i]] == stats.Errors[types[j]] {
				return types[i] < types[j]
			}
			return stats.Errors[types[i]] > stats.Errors[types[j]]
		})
		for _, name := range types {
			fmt.Fprintf(w, "  %s: %d\n", metrics.FriendlyErrorName(name), stats.Errors[name])
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// PrintThresholdResults lists every evaluated threshold and whether it held.
func PrintThresholdResults(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		mark := "PASS"
		if !r.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "  [%s] %s (actual %.4g)\n", mark, r.Threshold.Raw, r.Actual)
	}
}
