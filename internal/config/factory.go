package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tickcore/internal/devices"
	"github.com/roach88/tickcore/internal/engine"
	"github.com/roach88/tickcore/internal/journal"
	"github.com/roach88/tickcore/internal/metrics"
	"github.com/roach88/tickcore/internal/modules"
	"github.com/roach88/tickcore/internal/store"
)

// ErrJournalNeedsStore is returned when a config asks for a journal but the
// factory has no store to write to.
var ErrJournalNeedsStore = errors.New("journal module requires a store")

// Factory assembles the modules listed in a Config onto an engine.
//
// The modules built by the most recent SetupEngine are exposed through the
// typed accessors so callers can report on them after Start returns.
type Factory struct {
	cfg    *Config
	store  *store.Store
	logger *slog.Logger
	ids    journal.IDGenerator
	ctx    context.Context

	stats   *modules.Stats
	journal *journal.Journal
	mouse   *devices.VirtualMouse
	metrics *metrics.Collector
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithStore sets the store journal modules write to.
func WithStore(s *store.Store) FactoryOption {
	return func(f *Factory) { f.store = s }
}

// WithLogger sets the logger handed to built modules.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// WithIDGenerator sets the run ID source for journal modules.
func WithIDGenerator(g journal.IDGenerator) FactoryOption {
	return func(f *Factory) { f.ids = g }
}

// WithContext sets the context journal modules use for store calls.
func WithContext(ctx context.Context) FactoryOption {
	return func(f *Factory) { f.ctx = ctx }
}

// NewFactory creates a factory for cfg.
func NewFactory(cfg *Config, opts ...FactoryOption) *Factory {
	f := &Factory{
		cfg:    cfg,
		logger: slog.Default(),
		ids:    journal.UUIDv7Generator{},
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ engine.Factory = (*Factory)(nil)

// SetupEngine builds every configured module and adds it to e, in config
// order. Nothing is added if any module fails to build or to register.
func (f *Factory) SetupEngine(e *engine.Engine) error {
	mods, err := f.Build()
	if err != nil {
		return err
	}
	if err := e.AddModules(mods...); err != nil {
		return err
	}
	f.logger.Debug("assembly built", "config", f.cfg.Name, "modules", len(mods))
	return nil
}

// Build constructs the configured modules without touching an engine.
func (f *Factory) Build() ([]any, error) {
	if f.cfg == nil {
		return nil, errors.New("no config")
	}

	f.stats, f.journal, f.mouse, f.metrics = nil, nil, nil, nil

	mods := make([]any, 0, len(f.cfg.Modules))
	for i, mc := range f.cfg.Modules {
		m, err := f.buildModule(mc)
		if err != nil {
			f.stats, f.journal, f.mouse, f.metrics = nil, nil, nil, nil
			return nil, fmt.Errorf("module %d (%s): %w", i, mc.Type, err)
		}
		mods = append(mods, m)
	}

	return mods, nil
}

func (f *Factory) buildModule(mc ModuleConfig) (any, error) {
	switch mc.Type {
	case ModuleFrameLimit:
		return modules.NewFrameLimit(mc.Frames), nil

	case ModuleDeadline:
		return modules.NewDeadline(mc.Seconds), nil

	case ModuleStats:
		s := modules.NewStats()
		if f.stats == nil {
			f.stats = s
		}
		return s, nil

	case ModuleJournal:
		if f.store == nil {
			return nil, ErrJournalNeedsStore
		}
		j := journal.New(f.store, f.cfg.Name, f.cfg.Hash(),
			journal.WithIDGenerator(f.ids),
			journal.WithFlushEvery(mc.FlushEvery),
			journal.WithLogger(f.logger),
			journal.WithContext(f.ctx),
		)
		if f.journal == nil {
			f.journal = j
		}
		return j, nil

	case ModuleVirtualMouse:
		m := devices.NewVirtualMouse(mc.Width, mc.Height)
		if f.mouse == nil {
			f.mouse = m
		}
		return m, nil

	case ModuleMetrics:
		c := metrics.NewCollector(mc.Namespace)
		if f.metrics == nil {
			f.metrics = c
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown module type %q", mc.Type)
	}
}

// Stats returns the first stats module built, or nil.
func (f *Factory) Stats() *modules.Stats { return f.stats }

// Journal returns the first journal module built, or nil.
func (f *Factory) Journal() *journal.Journal { return f.journal }

// Mouse returns the first virtual mouse built, or nil.
func (f *Factory) Mouse() *devices.VirtualMouse { return f.mouse }

// Metrics returns the first metrics collector built, or nil.
func (f *Factory) Metrics() *metrics.Collector { return f.metrics }
