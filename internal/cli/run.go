package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcrowley/go-metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/errgroup"

	exporters "github.com/juvenn/rdkafka-exporters"
	"github.com/juvenn/rdkafka-exporters/emitters"
	"github.com/juvenn/rdkafka-exporters/emitters/influx"
	"github.com/juvenn/rdkafka-exporters/sinks/otelsink"
	"github.com/juvenn/rdkafka-exporters/sinks/prom"
	"github.com/juvenn/rdkafka-exporters/sinks/statsd"
)

// maxSnapshotSize bounds a single input line, large clusters emit
// statistics of several megabytes.
const maxSnapshotSize = 64 << 20

type shutdownFunc func(ctx context.Context) error

// exporter is the assembled process: a pipeline over every configured
// sink plus whatever must be stopped on exit.
type exporter struct {
	pipeline  *exporters.Pipeline
	gatherer  prometheus.Gatherer
	shutdowns []shutdownFunc
	logger    zerolog.Logger
}

func labelsWithInstance(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	if out["instance"] == "" {
		out["instance"] = uuid.NewString()
	}
	return out
}

func newExporter(cfg *Config, stdout io.Writer, logger zerolog.Logger) (*exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	exp := &exporter{logger: logger}
	labels := labelsWithInstance(cfg.Labels)
	var sinks exporters.MultiSink

	if cfg.Registry.Enabled {
		sink, err := exp.registrySink(cfg, labels, stdout)
		if err != nil {
			exp.shutdown(context.Background())
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if cfg.Prometheus.Listen != "" {
		reg := prometheus.NewRegistry()
		sinks = append(sinks, prom.NewSink(reg,
			prom.WithNamespace(cfg.Prometheus.Namespace),
			prom.WithConstLabels(prometheus.Labels(labels))))
		exp.gatherer = reg
	}
	if cfg.Statsd.Address != "" {
		sink, err := statsd.Dial(cfg.Statsd.Address, statsd.WithPrefix(cfg.Statsd.Prefix), statsd.WithLogger(logger))
		if err != nil {
			exp.shutdown(context.Background())
			return nil, err
		}
		exp.shutdowns = append(exp.shutdowns, func(context.Context) error { return sink.Close() })
		sinks = append(sinks, sink)
	}
	if cfg.OTel.Enabled {
		sink, err := exp.otelSink(cfg, labels, stdout)
		if err != nil {
			exp.shutdown(context.Background())
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	filter, err := cfg.Filter.Option()
	if err != nil {
		exp.shutdown(context.Background())
		return nil, err
	}
	exp.pipeline, err = exporters.NewPipeline(sinks, filter, exporters.WithLogger(logger))
	if err != nil {
		exp.shutdown(context.Background())
		return nil, err
	}
	return exp, nil
}

func (exp *exporter) registrySink(cfg *Config, labels map[string]string, stdout io.Writer) (exporters.Sink, error) {
	rc := cfg.Registry
	format, err := emitters.ParseFormat(rc.Format)
	if err != nil {
		return nil, err
	}
	var ems []exporters.Emitter
	switch rc.Output {
	case "":
	case "-":
		ems = append(ems, emitters.NewIOEmitter(nopCloser{stdout}, format))
	default:
		em, err := emitters.NewFileEmitter(rc.Output, format)
		if err != nil {
			return nil, err
		}
		ems = append(ems, em)
	}
	if ic := rc.Influx; ic.URL != "" {
		var opts []influx.Option
		if ic.Precision != "" {
			opts = append(opts, influx.WithPrecision(ic.Precision))
		}
		if ic.Timeout > 0 {
			opts = append(opts, influx.WithRequestTimeout(ic.Timeout))
		}
		if ic.BatchSize > 0 {
			opts = append(opts, influx.WithBatchSize(ic.BatchSize))
		}
		if ic.Username != "" {
			opts = append(opts, influx.WithUserAuth(ic.Username, ic.Password))
		}
		var em exporters.Emitter
		if ic.Bucket != "" {
			opts = append(opts, influx.WithAuthToken(ic.Token))
			if ic.Org != "" {
				opts = append(opts, influx.WithOrg(ic.Org))
			}
			em, err = influx.NewV2Emitter(ic.URL, ic.Bucket, opts...)
		} else {
			if ic.RetentionPolicy != "" {
				opts = append(opts, influx.WithRetentionPolicy(ic.RetentionPolicy))
			}
			em, err = influx.NewV1Emitter(ic.URL, ic.Database, opts...)
		}
		if err != nil {
			return nil, err
		}
		ems = append(ems, em)
	}

	kvs := make([]string, 0, 2*len(labels))
	for _, k := range sortedKeys(labels) {
		kvs = append(kvs, k, labels[k])
	}
	reg := metrics.NewRegistry()
	logger := exp.logger
	rep, err := exporters.NewReporter(reg, rc.Interval,
		exporters.WithEmitters(ems...),
		exporters.WithAutoReset(rc.AutoReset),
		exporters.WithLabels(kvs...),
		exporters.WithLogfn(func(format string, a ...any) {
			logger.Debug().Msgf(format, a...)
		}))
	if err != nil {
		return nil, err
	}
	rep.Start()
	exp.shutdowns = append(exp.shutdowns, func(context.Context) error { return rep.Close() })
	return exporters.NewRegistrySink(reg), nil
}

func (exp *exporter) otelSink(cfg *Config, labels map[string]string, stdout io.Writer) (exporters.Sink, error) {
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(stdout))
	if err != nil {
		return nil, fmt.Errorf("create otel stdout exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.OTel.Interval))))
	exp.shutdowns = append(exp.shutdowns, provider.Shutdown)

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for _, k := range sortedKeys(labels) {
		attrs = append(attrs, attribute.String(k, labels[k]))
	}
	return otelsink.NewSink(provider.Meter("github.com/juvenn/rdkafka-exporters"), otelsink.WithAttributes(attrs...)), nil
}

// shutdown stops sinks in reverse order of creation.
func (exp *exporter) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(exp.shutdowns) - 1; i >= 0; i-- {
		if err := exp.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	exp.shutdowns = nil
	return errors.Join(errs...)
}

// serve exposes the prometheus registry until ctx is done.
func (exp *exporter) serve(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(exp.gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		exp.logger.Info().Str("addr", addr).Str("path", path).Msg("serving prometheus metrics")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("prometheus listener: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// consume feeds every non-empty line of r to the pipeline until r is
// exhausted or ctx is done. Malformed snapshots are logged and skipped.
func (exp *exporter) consume(ctx context.Context, r io.Reader) (int, error) {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSnapshotSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	processed := 0
	for {
		select {
		case <-ctx.Done():
			return processed, nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return processed, err
				default:
					return processed, nil
				}
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			flat, err := exp.pipeline.ProcessJSON(line)
			if err != nil {
				exp.logger.Warn().Err(err).Int("bytes", len(line)).Msg("skipping malformed snapshot")
				continue
			}
			processed++
			exp.logger.Debug().Int("metrics", flat.Len()).Msg("processed snapshot")
		}
	}
}

func (exp *exporter) run(ctx context.Context, cfg *Config, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	if exp.gatherer != nil {
		g.Go(func() error {
			return exp.serve(ctx, cfg.Prometheus.Listen, cfg.Prometheus.Path)
		})
	}
	g.Go(func() error {
		// input exhausted, stop serving too
		defer cancel()
		n, err := exp.consume(ctx, in)
		exp.logger.Info().Int("snapshots", n).Msg("input done")
		return err
	})
	err := g.Wait()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return errors.Join(err, exp.shutdown(shutdownCtx))
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stdout outlives the exporter
type nopCloser struct {
	io.Writer
}
