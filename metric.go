package exporters

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/common/model"
	"github.com/rcrowley/go-metrics"
)

type MetricType string

const (
	TypeCounter MetricType = "counter"
	TypeGauge   MetricType = "gauge"
)

// A datum is one data point cut from a registry metric
type Datum struct {
	Name   string             `json:"name"`
	Type   MetricType         `json:"type"`
	Time   time.Time          `json:"time"`
	Labels map[string]string  `json:"labels,omitempty"`
	Fields map[string]float64 `json:"fields"`
}

// DatumFromMetric snapshots a registry metric. Only gauges and counters
// are collected, other kinds return nil.
func DatumFromMetric(name string, metric any, now time.Time) *Datum {
	switch metric := metric.(type) {
	case metrics.GaugeFloat64:
		return &Datum{Name: name, Type: TypeGauge, Time: now,
			Fields: map[string]float64{"gauge": metric.Snapshot().Value()}}
	case metrics.Gauge:
		return &Datum{Name: name, Type: TypeGauge, Time: now,
			Fields: map[string]float64{"gauge": float64(metric.Snapshot().Value())}}
	case metrics.Counter:
		return &Datum{Name: name, Type: TypeCounter, Time: now,
			Fields: map[string]float64{"count": float64(metric.Snapshot().Count())}}
	}
	return nil
}

// PromName maps a dotted metric key to a valid prometheus metric name.
// Every character outside [a-zA-Z0-9_:], and a leading digit, becomes
// '_'.
func PromName(name string) string {
	return model.EscapeName(name, model.UnderscoreEscaping)
}

// Encode datum to prometheus lines, each field will be appended to name
// to produce a new line. Fields and labels are sorted, trailing line is
// omitted.
//
//	brokers_localhost_9092_bootstrap_rtt_avg_gauge{host="node1"} 0 1395066363000
func (d *Datum) EncodePromLines() string {
	var buf strings.Builder
	for _, e := range sortByKey(d.Labels) {
		if buf.Len() > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(fmt.Sprintf("%s=%q", PromName(e.Key), e.Val))
	}
	labels := buf.String()
	if len(labels) != 0 {
		labels = fmt.Sprintf("{%s}", labels)
	}

	ts := d.Time.UnixMilli()
	if d.Time.IsZero() {
		ts = time.Now().UnixMilli()
	}
	name := PromName(d.Name)
	var lines strings.Builder
	for _, f := range sortedFields(d.Fields) {
		if lines.Len() > 0 {
			lines.WriteString("\n")
		}
		lines.WriteString(fmt.Sprintf("%s_%s%s %g %d", name, f, labels, d.Fields[f], ts))
	}
	return lines.String()
}

var (
	measurementEscaper = strings.NewReplacer(",", `\,`, " ", `\ `)
	tagEscaper         = strings.NewReplacer(",", `\,`, " ", `\ `, "=", `\=`)
)

// Encode datum as influx line protocol with the given timestamp
// precision, one of [ns,u,us,ms,s].
func (d *Datum) EncodeInfluxLine(precision string) string {
	var sb strings.Builder
	sb.WriteString(measurementEscaper.Replace(d.Name))
	for _, e := range sortByKey(d.Labels) {
		sb.WriteString(",")
		sb.WriteString(fmt.Sprintf("%s=%s", tagEscaper.Replace(e.Key), tagEscaper.Replace(e.Val)))
	}
	sb.WriteString(" ")
	for i, f := range sortedFields(d.Fields) {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("%s=%g", f, d.Fields[f]))
	}
	sb.WriteString(" ")
	ts := d.Time
	switch precision {
	case "ns":
		sb.WriteString(fmt.Sprintf("%d", ts.UnixNano()))
	case "u", "us":
		sb.WriteString(fmt.Sprintf("%d", ts.UnixMicro()))
	case "ms":
		sb.WriteString(fmt.Sprintf("%d", ts.UnixMilli()))
	default:
		sb.WriteString(fmt.Sprintf("%d", ts.Unix()))
	}
	return sb.String()
}

type entry struct {
	Key string
	Val string
}

// Sort map by key
func sortByKey(m map[string]string) []entry {
	pairs := make([]entry, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, entry{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Key < pairs[j].Key
	})
	return pairs
}

func sortedFields(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
