package vm

import (
	"time"

	"go.uber.org/zap"
)

// HostFunc is the signature every import callback implements.
// It receives the running Environment, the operand stack — from which
// it must pop its own arguments and onto which it must push its own
// results, exactly per its declared FunctionType, in the same
// left-to-right convention the interpreter itself uses for calls —
// and the guest's linear memory.
type HostFunc func(env *Environment, stack *Stack, mem []byte) error

// Environment is the capability surface available to host callbacks:
// a sink for guest-emitted text, and a monotonic tick source so a
// sandboxed guest never needs direct wall-clock access.
type Environment struct {
	logger *zap.Logger
	start  time.Time
}

// NewEnvironment constructs an Environment. A nil logger logs nowhere.
func NewEnvironment(logger *zap.Logger) *Environment {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Environment{logger: logger, start: time.Now()}
}

// EmitText is the sink a guest's print/log-style import is expected to
// call through.
func (e *Environment) EmitText(text string) {
	e.logger.Info("guest", zap.String("text", text))
}

// Ticks reports milliseconds elapsed since the Environment was
// constructed — the clock a guest's sleep_ms-style import is built on.
func (e *Environment) Ticks() int64 {
	return time.Since(e.start).Milliseconds()
}

// Logger exposes the underlying logger so bespoke host imports can log
// with the same sink and fields the rest of the package uses.
func (e *Environment) Logger() *zap.Logger { return e.logger }
