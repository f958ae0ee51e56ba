package engine

import "sync"

var (
	instanceOnce sync.Once
	instance     *Engine
)

// Instance returns the process-wide default engine, creating it on first use.
//
// The default engine uses the monotonic clock and slog.Default(). It cannot be
// reset or replaced. Code that controls its own composition root should
// prefer New and pass the engine explicitly.
func Instance() *Engine {
	instanceOnce.Do(func() {
		instance = New()
	})
	return instance
}
