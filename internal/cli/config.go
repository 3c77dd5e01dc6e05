package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	exporters "github.com/juvenn/rdkafka-exporters"
	"github.com/juvenn/rdkafka-exporters/emitters"
)

// Config is the exporter process configuration, loaded from YAML and
// overridden by flags.
type Config struct {
	// Input is a file of newline delimited snapshots, "-" for stdin.
	Input    string                 `yaml:"input"`
	LogLevel string                 `yaml:"log_level"`
	Pretty   bool                   `yaml:"pretty"`
	Labels   map[string]string      `yaml:"labels"`
	Filter   exporters.FilterConfig `yaml:"filter"`

	Registry   RegistryConfig   `yaml:"registry"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Statsd     StatsdConfig     `yaml:"statsd"`
	OTel       OTelConfig       `yaml:"otel"`
}

// RegistryConfig drives the go-metrics registry sink and its periodic
// reporter. Data goes to Output ("-" for stdout) and, when a URL is
// set, to influx.
type RegistryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	AutoReset bool          `yaml:"auto_reset"`
	Format    string        `yaml:"format"`
	Output    string        `yaml:"output"`
	Influx    InfluxConfig  `yaml:"influx"`
}

// InfluxConfig targets a v1 database, or a v2 bucket when Bucket is set.
// RetentionPolicy applies to v1 only.
type InfluxConfig struct {
	URL       string `yaml:"url"`
	Database  string `yaml:"database"`
	Bucket    string `yaml:"bucket"`
	Org       string `yaml:"org"`
	Token     string `yaml:"token"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Precision string `yaml:"precision"`

	RetentionPolicy string        `yaml:"retention_policy"`
	Timeout         time.Duration `yaml:"timeout"`
	BatchSize       int           `yaml:"batch_size"`
}

type PrometheusConfig struct {
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

type StatsdConfig struct {
	Address string `yaml:"address"`
	Prefix  string `yaml:"prefix"`
}

// OTelConfig enables an OpenTelemetry meter provider exporting to stdout.
type OTelConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Input:    "-",
		LogLevel: "info",
		Registry: RegistryConfig{
			Interval: 10 * time.Second,
			Format:   string(emitters.FormatJSON),
			Output:   "-",
		},
		Prometheus: PrometheusConfig{
			Path: "/metrics",
		},
		OTel: OTelConfig{
			Interval: 10 * time.Second,
		},
	}
}

// LoadConfig reads a YAML config over the defaults. Unknown keys are
// rejected. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings that can be checked without touching
// the network.
func (c *Config) Validate() error {
	if _, err := c.Filter.Option(); err != nil {
		return err
	}
	if c.Registry.Enabled {
		if c.Registry.Interval <= 0 {
			return fmt.Errorf("registry interval must be positive, got %s", c.Registry.Interval)
		}
		if _, err := emitters.ParseFormat(c.Registry.Format); err != nil {
			return err
		}
		if c.Registry.Influx.URL != "" && c.Registry.Influx.Database == "" && c.Registry.Influx.Bucket == "" {
			return errors.New("influx needs a database (v1) or a bucket (v2)")
		}
	}
	if c.OTel.Enabled && c.OTel.Interval <= 0 {
		return fmt.Errorf("otel interval must be positive, got %s", c.OTel.Interval)
	}
	if !c.Registry.Enabled && c.Prometheus.Listen == "" && c.Statsd.Address == "" && !c.OTel.Enabled {
		return errors.New("no sink enabled, configure at least one of registry, prometheus, statsd or otel")
	}
	return nil
}
