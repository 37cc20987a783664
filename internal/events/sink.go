package events

// Sink adapts a Pipeline to the stepexec.SignalSink interface so step
// executors can raise SignalEmitted events without importing this package
// directly (avoiding an import cycle back through internal/gate).
type Sink struct {
	Pipeline *Pipeline
}

// EmitSignal forwards signal to the underlying pipeline.
func (s Sink) EmitSignal(signal string) {
	s.Pipeline.SignalEmitted(signal)
}
