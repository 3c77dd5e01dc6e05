// Package cli wires the snapshot pipeline to its sinks behind the
// rdkafka-exporter command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	exporters "github.com/juvenn/rdkafka-exporters"
)

const name = "rdkafka-exporter"

var (
	// overridden during build with ldflags
	version = "dev"
	commit  = "unknown"
)

// Command builds the root command. stdin and stdout are injected for
// tests.
func Command(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    name,
		Usage:   "Forward librdkafka statistics snapshots to metric backends",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				Sources: cli.EnvVars("RDKAFKA_EXPORTER_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "human readable console logs",
			},
			&cli.StringFlag{
				Name:  "filter",
				Usage: "filter mode (default, none, whitelist)",
			},
			&cli.StringSliceFlag{
				Name:  "whitelist",
				Usage: "segment names kept in whitelist mode, repeatable",
			},
		},
		Commands: []*cli.Command{
			runCmd(stdin, stdout),
			flattenCmd(stdin, stdout),
		},
	}
}

func runCmd(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Read newline delimited snapshots and report them",
		Description: `Each input line is a statistics snapshot, either raw JSON or wrapped
as {"message": "<json>"}. Numeric metrics that pass the filter are sent
to every configured sink.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "snapshot file, - for stdin"},
			&cli.StringFlag{Name: "emit-format", Usage: "registry emit format (json, prom, influx)"},
			&cli.StringFlag{Name: "emit-output", Usage: "registry emit file, - for stdout"},
			&cli.DurationFlag{Name: "emit-interval", Usage: "registry report interval"},
			&cli.StringFlag{Name: "prometheus-listen", Usage: "address serving prometheus metrics, e.g. :9464"},
			&cli.StringFlag{Name: "statsd-address", Usage: "statsd daemon address, e.g. 127.0.0.1:8125"},
			&cli.StringFlag{Name: "statsd-prefix", Usage: "statsd metric prefix"},
			&cli.BoolFlag{Name: "otel-stdout", Usage: "record gauges with OpenTelemetry and export to stdout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)
			exp, err := newExporter(cfg, stdout, logger)
			if err != nil {
				return err
			}
			in, err := openInput(cfg.Input, stdin)
			if err != nil {
				_ = exp.shutdown(ctx)
				return err
			}
			defer in.Close()
			logger.Info().Str("version", version).Str("input", cfg.Input).Msg("starting exporter")
			return exp.run(ctx, cfg, in)
		},
	}
}

func flattenCmd(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "flatten",
		Usage:     "Print the filtered metrics of one snapshot as JSON",
		ArgsUsage: "[file]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			filter, err := cfg.Filter.Option()
			if err != nil {
				return err
			}
			p, err := exporters.NewPipeline(exporters.SinkFunc(func(string, float64) error { return nil }), filter)
			if err != nil {
				return err
			}
			in, err := openInput(cmd.Args().First(), stdin)
			if err != nil {
				return err
			}
			defer in.Close()
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			flat, err := p.ProcessJSON(data)
			if err != nil {
				return err
			}
			out, err := sonic.ConfigStd.MarshalIndent(flat.Map(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, string(out))
			return err
		},
	}
}

// loadConfig reads the config file and applies flags set on the command
// line on top of it.
func loadConfig(cmd *cli.Command) (*Config, error) {
	cfg, err := LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("pretty") {
		cfg.Pretty = cmd.Bool("pretty")
	}
	if cmd.IsSet("filter") {
		cfg.Filter.Mode = cmd.String("filter")
	}
	if cmd.IsSet("whitelist") {
		cfg.Filter.Whitelist = cmd.StringSlice("whitelist")
		if cfg.Filter.Mode == "" {
			cfg.Filter.Mode = exporters.FilterModeWhitelist
		}
	}
	if cmd.IsSet("input") {
		cfg.Input = cmd.String("input")
	}
	if cmd.IsSet("emit-format") {
		cfg.Registry.Enabled = true
		cfg.Registry.Format = cmd.String("emit-format")
	}
	if cmd.IsSet("emit-output") {
		cfg.Registry.Enabled = true
		cfg.Registry.Output = cmd.String("emit-output")
	}
	if cmd.IsSet("emit-interval") {
		cfg.Registry.Enabled = true
		cfg.Registry.Interval = cmd.Duration("emit-interval")
	}
	if cmd.IsSet("prometheus-listen") {
		cfg.Prometheus.Listen = cmd.String("prometheus-listen")
	}
	if cmd.IsSet("statsd-address") {
		cfg.Statsd.Address = cmd.String("statsd-address")
	}
	if cmd.IsSet("statsd-prefix") {
		cfg.Statsd.Prefix = cmd.String("statsd-prefix")
	}
	if cmd.IsSet("otel-stdout") {
		cfg.OTel.Enabled = cmd.Bool("otel-stdout")
	}
	return cfg, nil
}

func newLogger(cfg *Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", name).Logger()
}
