package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sron",
		Short:         "Fixed-rate HTTP load generator free of coordinated omission",
		Long:          helpDetails,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
// Durations are strings so that bare integers can be read as milliseconds.
func configureFlags(flags *pflag.FlagSet) {
	// Pacing flags
	flags.StringP("period", "p", defaultPeriod.String(), "Time between consecutive requests (e.g. 33ms, or an integer in milliseconds)")
	flags.StringP("duration", "d", defaultDuration.String(), "How long to keep admitting requests (e.g. 5m, or an integer in milliseconds)")
	flags.String("timeout", defaultTimeout.String(), "Per-request timeout (0 means unbounded)")

	// Target flags
	flags.StringP("urls", "u", "", "Path to a file with one target URL per line")
	flags.StringSlice("target", nil, "Target URL (repeatable, used in order)")
	flags.Bool("once", false, "Stop admitting requests when the URL list is exhausted instead of cycling")
	flags.String("method", "GET", "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.String("body-file", "", "Path to file containing the request body")

	// Output flags
	flags.String("format", string(FormatRaw), "Output format: 'raw' (offset,latency lines) or 'json'")
	flags.Bool("summary", false, "Print a latency summary to stderr")
	flags.Bool("progress", false, "Show live progress on stderr")
	flags.Bool("log-errors", false, "Log failed requests to stderr")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'latency:p99 < 250')")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint for per-request spans")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Bool("tracing-insecure", false, "Export spans without TLS")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0 - 1.0)")
	flags.Bool("tracing-propagate", false, "Inject W3C trace headers even when no exporter is configured")
}

const helpDetails = `Sends one request every --period for --duration, without waiting for earlier
responses. Each result line is the send offset and latency in microseconds, or
TIMEOUT. Latency is measured from the actual send until the response body has been
read to the end, so it includes body transfer time.`

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", cmd.Short)
	if cmd.Long != "" {
		fmt.Fprintf(out, "%s\n\n", cmd.Long)
	}
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	for name, dst := range map[string]*time.Duration{
		"period":   &cfg.Period,
		"duration": &cfg.Duration,
		"timeout":  &cfg.Timeout,
	} {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		dur, err := asDuration(val)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = dur
	}

	if fs.Changed("urls") {
		val, err := fs.GetString("urls")
		if err != nil {
			return err
		}
		cfg.URLFile = strings.TrimSpace(val)
	}
	if fs.Changed("target") {
		val, err := fs.GetStringSlice("target")
		if err != nil {
			return err
		}
		cfg.URLs = trimAll(val)
	}
	if fs.Changed("once") {
		val, err := fs.GetBool("once")
		if err != nil {
			return err
		}
		cfg.Once = val
	}
	if fs.Changed("method") {
		val, err := fs.GetString("method")
		if err != nil {
			return err
		}
		cfg.Method = val
	}
	if fs.Changed("body") {
		val, err := fs.GetString("body")
		if err != nil {
			return err
		}
		cfg.Body = val
		cfg.BodyFile = ""
	}
	if fs.Changed("body-file") {
		val, err := fs.GetString("body-file")
		if err != nil {
			return err
		}
		cfg.BodyFile = val
		cfg.Body = ""
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	if fs.Changed("format") {
		val, err := fs.GetString("format")
		if err != nil {
			return err
		}
		cfg.Format = Format(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("summary") {
		val, err := fs.GetBool("summary")
		if err != nil {
			return err
		}
		cfg.Summary = val
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = val
	}

	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
