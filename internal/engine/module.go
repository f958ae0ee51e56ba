package engine

import (
	"errors"
	"fmt"
)

// Factory assembles the module set before the loop starts.
//
// SetupEngine registers zero or more modules on e (via AddModule or by
// attaching to the lifecycle channels directly). A non-nil error aborts the
// start. If the factory also implements io.Closer, the engine closes it once
// setup returns.
type Factory interface {
	SetupEngine(e *Engine) error
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(e *Engine) error

// SetupEngine calls f(e).
func (f FactoryFunc) SetupEngine(e *Engine) error {
	return f(e)
}

var errNilFactory = errors.New("nil factory")

// Initializer is implemented by modules that handle the initialize broadcast.
type Initializer interface {
	Initialize()
}

// Processor is implemented by modules that handle every tick.
type Processor interface {
	Process(arg TickArg)
}

// Deinitializer is implemented by modules that handle the deinitialize
// broadcast.
type Deinitializer interface {
	Deinitialize()
}

// Registrar is implemented by modules that need the engine itself, typically
// to call Stop or to attach to additional channels.
type Registrar interface {
	Register(e *Engine)
}

// CheckModule returns an INVALID_MODULE error if m implements none of the
// lifecycle capabilities.
func CheckModule(m any) error {
	switch m.(type) {
	case Registrar, Initializer, Processor, Deinitializer:
		return nil
	}
	return &EngineError{
		Code:    ErrCodeInvalidModule,
		Message: fmt.Sprintf("module %T has no lifecycle capability", m),
	}
}

// AddModule subscribes m to every lifecycle broadcast it has a capability for.
//
// Registrar.Register runs first, then Initializer, Processor and
// Deinitializer are attached in that order. Listener order on each channel is
// therefore module registration order.
//
// Subscriptions are permanent: a module stays attached for every later
// Start of the same engine, including Starts whose factory adds a different
// module set. Use a fresh engine from New for an independent assembly.
//
// Returns an INVALID_MODULE error if m implements none of the capabilities.
func (e *Engine) AddModule(m any) error {
	if err := CheckModule(m); err != nil {
		return err
	}

	if reg, ok := m.(Registrar); ok {
		reg.Register(e)
	}
	if ini, ok := m.(Initializer); ok {
		e.initializeEvent.AttachFunc(func(InitializeArg) { ini.Initialize() })
	}
	if proc, ok := m.(Processor); ok {
		e.processEvent.AttachFunc(proc.Process)
	}
	if deinit, ok := m.(Deinitializer); ok {
		e.deinitializeEvent.AttachFunc(func(DeinitializeArg) { deinit.Deinitialize() })
	}

	e.mu.Lock()
	e.modules = append(e.modules, m)
	e.mu.Unlock()

	e.logger.Debug("module registered", "module", fmt.Sprintf("%T", m))
	return nil
}

// AddModules adds mods in order. Every module is checked first, so either
// all of them are subscribed or none is.
func (e *Engine) AddModules(mods ...any) error {
	for i, m := range mods {
		if err := CheckModule(m); err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	for _, m := range mods {
		if err := e.AddModule(m); err != nil {
			return err
		}
	}
	return nil
}

// Modules returns the modules added via AddModule, in registration order.
// The returned slice is a copy.
func (e *Engine) Modules() []any {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]any, len(e.modules))
	copy(out, e.modules)
	return out
}
