package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/torosent/sron/internal/targets"
)

const (
	defaultPeriod   = 33 * time.Millisecond
	defaultDuration = 300000 * time.Millisecond
	defaultTimeout  = 30 * time.Second
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// Flags override file settings; URLs read from a --urls file are appended to any
// listed inline.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Period:     defaultPeriod,
		Duration:   defaultDuration,
		Timeout:    defaultTimeout,
		Method:     http.MethodGet,
		Headers:    map[string]string{},
		Format:     FormatRaw,
		ConfigFile: configPath,
		Tracing:    TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)
	if cfg.Format == "" {
		cfg.Format = FormatRaw
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	if cfg.URLFile != "" {
		fromFile, err := targets.Load(cfg.URLFile)
		if err != nil {
			return nil, err
		}
		cfg.URLs = append(cfg.URLs, fromFile...)
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	durations := []struct {
		keys []string
		dst  *time.Duration
	}{
		{[]string{"period"}, &cfg.Period},
		{[]string{"duration"}, &cfg.Duration},
		{[]string{"timeout"}, &cfg.Timeout},
	}
	for _, d := range durations {
		raw, ok := lookupSetting(settings, d.keys...)
		if !ok {
			continue
		}
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.keys[0], err)
		}
		*d.dst = val
	}

	if raw, ok := lookupSetting(settings, "urls", "targets"); ok {
		urls, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("urls: %w", err)
		}
		cfg.URLs = trimAll(urls)
	}

	if raw, ok := lookupSetting(settings, "url_file", "urlFile", "urls_file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("url_file: %w", err)
		}
		cfg.URLFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "once"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("once: %w", err)
		}
		cfg.Once = val
	}

	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		if val != "" {
			cfg.Method = val
		}
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "body"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
		cfg.Body = val
	}

	if raw, ok := lookupSetting(settings, "body_file", "bodyFile"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("body_file: %w", err)
		}
		cfg.BodyFile = val
	}

	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		cfg.Format = Format(strings.ToLower(strings.TrimSpace(val)))
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"summary"}, &cfg.Summary},
		{[]string{"progress"}, &cfg.Progress},
		{[]string{"log_errors", "logErrors"}, &cfg.LogErrors},
	}
	for _, b := range bools {
		raw, ok := lookupSetting(settings, b.keys...)
		if !ok {
			continue
		}
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", b.keys[0], err)
		}
		*b.dst = val
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "metrics_addr", "metricsAddr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metrics_addr: %w", err)
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyTracingSettings(t *TracingConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}

	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"endpoint"}, &t.Endpoint},
		{[]string{"protocol"}, &t.Protocol},
		{[]string{"service_name", "servicename"}, &t.ServiceName},
	}
	for _, s := range strs {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}
	t.Protocol = strings.ToLower(t.Protocol)

	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = val
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	return nil
}
