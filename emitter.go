package exporters

// Emitter ships data points cut by a Reporter to a backend.
type Emitter interface {
	Emit(data ...Datum) error
	Close() error
}
