package exporters

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/rs/zerolog/log"
)

// A reporter periodically cuts metrics from a registry and emits them to
// the given emitters. Paired with a RegistrySink it decouples snapshot
// arrival from the emit cadence of slow backends.
type Reporter struct {
	registry  metrics.Registry
	interval  time.Duration // poll and report interval
	autoReset bool          // drop reported metrics from the registry after each report
	emitters  []Emitter
	labels    map[string]string // global labels attach to each datum
	logf      func(format string, a ...any)

	exit chan struct{} // signal when shutting down
	done chan struct{}
	once sync.Once
}

func (rep *Reporter) pollMetrics() []Datum {
	now := time.Now()
	data := make([]Datum, 0, 128)
	var polled []string
	rep.registry.Each(func(name string, metric any) {
		if rep.autoReset {
			polled = append(polled, name)
		}
		datum := DatumFromMetric(name, metric, now)
		if datum == nil {
			return
		}
		if len(rep.labels) > 0 {
			datum.Labels = make(map[string]string, len(rep.labels))
			for k, v := range rep.labels {
				datum.Labels[k] = v
			}
		}
		data = append(data, *datum)
	})
	// Only polled names are dropped, a gauge registered meanwhile waits
	// for the next report. An update to a polled gauge in between is lost
	// until its next snapshot.
	for _, name := range polled {
		rep.registry.Unregister(name)
	}
	return data
}

func (rep *Reporter) loopPoll() {
	defer close(rep.done)
	rep.logf("Started to report every %s\n", rep.interval)
	ticker := time.NewTicker(rep.interval)
	defer ticker.Stop()
	for {
		select {
		case <-rep.exit:
			return
		case <-ticker.C:
			rep.report()
		}
	}
}

func (rep *Reporter) report() {
	data := rep.pollMetrics()
	if len(data) == 0 {
		return
	}
	for _, em := range rep.emitters {
		if err := em.Emit(data...); err != nil {
			rep.logf("Report %d metric points error %v\n", len(data), err)
		} else {
			rep.logf("Reported %d metric points\n", len(data))
		}
	}
}

func (rep *Reporter) Start() {
	rep.exit = make(chan struct{})
	rep.done = make(chan struct{})
	go rep.loopPoll()
}

// Close reporter and emitters gracefully, a last report is emitted
// before emitters are closed.
func (rep *Reporter) Close() error {
	var err error
	rep.once.Do(func() {
		if rep.exit != nil {
			close(rep.exit)
			<-rep.done
		}
		rep.report()
		var errs []error
		for _, em := range rep.emitters {
			errs = append(errs, em.Close())
		}
		err = errors.Join(errs...)
	})
	return err
}

// Create reporter that is yet to be started. Upon closing, the associated
// emitters will be closed too.
func NewReporter(registry metrics.Registry, interval time.Duration, opts ...ReporterOption) (*Reporter, error) {
	rep := &Reporter{
		registry: registry,
		interval: interval,
		logf:     log.Printf,
	}
	for _, opt := range opts {
		opt(rep)
	}
	if rep.registry == nil {
		return nil, fmt.Errorf("Please specify a registry to poll metrics from.")
	}
	if rep.interval <= 0 {
		return nil, fmt.Errorf("Report interval must be positive, got %s.", rep.interval)
	}
	if len(rep.emitters) < 1 {
		return nil, fmt.Errorf("Please specify at least one emitter to report metrics to.")
	}
	return rep, nil
}

type ReporterOption func(*Reporter)

// Where to emit metrics
func WithEmitters(emitters ...Emitter) ReporterOption {
	return func(rep *Reporter) {
		rep.emitters = append(rep.emitters, emitters...)
	}
}

// Set poll and report interval
func WithPollInterval(interval time.Duration) ReporterOption {
	return func(rep *Reporter) {
		rep.interval = interval
	}
}

// Unregister every metric after each report, so gauges missing from the
// latest snapshots stop being emitted.
func WithAutoReset(flag bool) ReporterOption {
	return func(rep *Reporter) {
		rep.autoReset = flag
	}
}

// Labels that will be attached to each datum. Args must be in the form
// of k,v,k,v.
func WithLabels(kvs ...string) ReporterOption {
	n := len(kvs)
	if n%2 != 0 {
		panic("Reporter labels expects an even number of args.")
	}
	labels := make(map[string]string, n/2)
	for i := 0; i < n-1; i += 2 {
		labels[kvs[i]] = kvs[i+1]
	}
	return func(rep *Reporter) {
		rep.labels = labels
	}
}

// How should we print log, default to zerolog's log.Printf
func WithLogfn(fn func(format string, a ...any)) ReporterOption {
	return func(rep *Reporter) {
		rep.logf = fn
	}
}
