package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/torosent/sron/internal/targets"
)

type Format string

const (
	FormatRaw  Format = "raw"
	FormatJSON Format = "json"
)

type Config struct {
	Period      time.Duration     `mapstructure:"period"`
	Duration    time.Duration     `mapstructure:"duration"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	URLs        []string          `mapstructure:"urls"`
	URLFile     string            `mapstructure:"url_file"`
	Once        bool              `mapstructure:"once"`
	Method      string            `mapstructure:"method"`
	Headers     map[string]string `mapstructure:"headers"`
	Body        string            `mapstructure:"body"`
	BodyFile    string            `mapstructure:"body_file"`
	Format      Format            `mapstructure:"format"`
	Summary     bool              `mapstructure:"summary"`
	Progress    bool              `mapstructure:"progress"`
	LogErrors   bool              `mapstructure:"log_errors"`
	Thresholds  []string          `mapstructure:"thresholds"`
	MetricsAddr string            `mapstructure:"metrics_addr"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	ConfigFile  string            `mapstructure:"-"`
}

// TracingConfig configures OpenTelemetry export of per-request spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`     // OTLP collector endpoint (host:port)
	Protocol    string  `mapstructure:"protocol"`     // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"` // defaults to OTEL_SERVICE_NAME or "sron"
	Insecure    bool    `mapstructure:"insecure"`     // plaintext export
	SampleRate  float64 `mapstructure:"sample_rate"`  // 0.0 - 1.0
	Propagate   bool    `mapstructure:"propagate"`    // inject W3C headers even without an exporter
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether trace context headers are injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Enabled() || t.Propagate
}

// minSafePeriod is the period below which the rate warning is printed.
const minSafePeriod = 100 * time.Microsecond

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Period <= 0 {
		issues = append(issues, "period must be > 0")
	} else if c.Period < minSafePeriod {
		fmt.Fprintf(os.Stderr, "WARNING: Period of %s exceeds %d requests/sec. Ensure you have authorization to test the target system.\n",
			c.Period, int(time.Second/minSafePeriod))
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	if len(c.URLs) == 0 {
		issues = append(issues, "at least one target url is required (use --target, --urls or the urls config key; --help for usage)")
	}
	for idx, u := range c.URLs {
		if err := targets.Validate(u); err != nil {
			issues = append(issues, fmt.Sprintf("urls[%d]: %v", idx, err))
		}
	}

	if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and bodyFile are mutually exclusive")
	}

	switch c.Format {
	case "", FormatRaw, FormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("format %q is not supported (use raw or json)", c.Format))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
