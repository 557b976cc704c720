package probe

import (
	"context"

	"healthmonitor/internal/models"
)

// Probe is a single independent health check. Implementations capture every
// internal error into the returned result instead of propagating it; a probe
// performs its own network or file I/O but mutates no shared state.
type Probe interface {
	Name() string
	Check(ctx context.Context) models.ProbeResult
}

// Func adapts an ordinary function to the Probe interface.
type Func struct {
	name string
	fn   func(context.Context) models.ProbeResult
}

// NewFunc creates a probe backed by fn.
func NewFunc(name string, fn func(context.Context) models.ProbeResult) *Func {
	return &Func{name: name, fn: fn}
}

// Name returns the probe name.
func (f *Func) Name() string { return f.name }

// Check runs the wrapped function.
func (f *Func) Check(ctx context.Context) models.ProbeResult { return f.fn(ctx) }
