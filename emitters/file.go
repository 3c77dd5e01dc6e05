package emitters

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	exporters "github.com/juvenn/rdkafka-exporters"
	"github.com/rcrowley/go-metrics"
)

type Format string

const (
	FormatJSON   Format = "json"   // one datum per line as json
	FormatProm   Format = "prom"   // prometheus text lines
	FormatInflux Format = "influx" // influx line protocol, second precision
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatProm, FormatInflux:
		return f, nil
	}
	return "", fmt.Errorf("unknown emit format %q, must be one of [json,prom,influx]", s)
}

// Periodically report to io writer
func NewIOReporter(writer io.Writer, format Format, reg metrics.Registry, interval time.Duration, opts ...exporters.ReporterOption) (*exporters.Reporter, error) {
	emitter := NewIOEmitter(writer, format)
	opts = append(opts, exporters.WithEmitters(emitter))
	return exporters.NewReporter(reg, interval, opts...)
}

// Emit metrics to file, appending to it if it exists
func NewFileEmitter(path string, format Format) (*fileEmitter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return NewIOEmitter(file, format), nil
}

// Emit metrics to io writer
func NewIOEmitter(writer io.Writer, format Format) *fileEmitter {
	if format == "" {
		format = FormatJSON
	}
	return &fileEmitter{
		writer: writer,
		format: format,
	}
}

// Emit metrics to a writer, one line per datum.
type fileEmitter struct {
	writer io.Writer
	format Format
}

func (em *fileEmitter) encode(datum *exporters.Datum) (string, error) {
	switch em.format {
	case FormatProm:
		return datum.EncodePromLines(), nil
	case FormatInflux:
		return datum.EncodeInfluxLine("s"), nil
	}
	return sonic.MarshalString(datum)
}

func (em *fileEmitter) Emit(data ...exporters.Datum) error {
	for i := range data {
		line, err := em.encode(&data[i])
		if err != nil {
			return err
		}
		if _, err = fmt.Fprintln(em.writer, line); err != nil {
			return err
		}
	}
	return nil
}

func (em *fileEmitter) Close() error {
	if closer, ok := em.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
