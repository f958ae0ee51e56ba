// Package journal records engine runs into the SQLite store.
//
// A Journal is an ordinary engine module. Initialize opens a run row,
// Process buffers the delta of each tick and flushes the buffer in batches,
// and Deinitialize flushes the remainder and closes the run.
//
// Store failures are logged and counted, never raised: a full disk must not
// abort the tick loop. Callers inspect Errors after Start returns.
package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/tickcore/internal/engine"
	"github.com/roach88/tickcore/internal/store"
)

// DefaultFlushEvery is the batch size used when none is configured.
const DefaultFlushEvery = 64

// MaxPendingBatches bounds the frames held for retry after failed writes,
// in multiples of the flush size. Older frames beyond it are dropped.
const MaxPendingBatches = 4

// Journal is an engine module that writes every run to a store.
type Journal struct {
	store      *store.Store
	ids        IDGenerator
	logger     *slog.Logger
	ctx        context.Context
	configName string
	configHash string
	flushEvery int

	mu     sync.Mutex
	runID  string
	buf    []store.Frame
	frames int64
	total  float64

	errors  atomic.Int64
	dropped atomic.Int64
}

// Option configures a Journal.
type Option func(*Journal)

// WithIDGenerator sets the run ID source. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(j *Journal) { j.ids = g }
}

// WithFlushEvery sets how many frames are buffered before a write.
// Values below 1 are ignored.
func WithFlushEvery(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.flushEvery = n
		}
	}
}

// WithLogger sets the logger for store failures.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// WithContext sets the context passed to store calls.
func WithContext(ctx context.Context) Option {
	return func(j *Journal) { j.ctx = ctx }
}

// New creates a journal writing to s. configName and configHash identify
// the assembly that produced each run.
func New(s *store.Store, configName, configHash string, opts ...Option) *Journal {
	j := &Journal{
		store:      s,
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
		ctx:        context.Background(),
		configName: configName,
		configHash: configHash,
		flushEvery: DefaultFlushEvery,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Initialize begins a new run.
func (j *Journal) Initialize() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.buf = j.buf[:0]
	j.frames = 0
	j.total = 0
	j.runID = ""

	id := j.ids.Generate()
	run, err := j.store.BeginRun(j.ctx, id, j.configName, j.configHash)
	if err != nil {
		j.fail("begin run", err, slog.String("run_id", id))
		return
	}
	j.runID = run.ID
	j.logger.Debug("journal run started", "run_id", run.ID, "seq", run.Seq)
}

// Process buffers one tick and flushes when the batch is full.
func (j *Journal) Process(arg engine.TickArg) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.frames++
	j.total += arg.DeltaTime
	if j.runID == "" {
		return
	}

	j.buf = append(j.buf, store.Frame{Frame: arg.Frame, Delta: arg.DeltaTime})
	if len(j.buf) >= j.flushEvery {
		j.flush()
	}
}

// Deinitialize flushes buffered frames and marks the run stopped.
func (j *Journal) Deinitialize() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.runID == "" {
		return
	}
	j.flush()
	if err := j.store.FinishRun(j.ctx, j.runID, store.RunStatusStopped, j.frames, j.total, ""); err != nil {
		j.fail("finish run", err, slog.String("run_id", j.runID))
	}
}

// RecordFailure marks the last run failed with the cause of the failure.
// It is meant to be called after Start returned an error.
func (j *Journal) RecordFailure(cause error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.runID == "" || cause == nil {
		return
	}
	if err := j.store.FinishRun(j.ctx, j.runID, store.RunStatusFailed, j.frames, j.total, cause.Error()); err != nil {
		j.fail("record failure", err, slog.String("run_id", j.runID))
	}
}

// RunID returns the ID of the current or last run, or "" if none was opened.
func (j *Journal) RunID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runID
}

// Errors returns the number of store failures seen so far. Each frame
// dropped from the retry buffer counts as one failure.
func (j *Journal) Errors() int64 {
	return j.errors.Load()
}

// Dropped returns the number of frames discarded because the store kept
// failing.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// flush writes the buffer. The buffer is kept on failure so the next flush
// retries it; frame writes are idempotent. At most MaxPendingBatches batches
// are kept, oldest frames first out.
//
// Caller must hold j.mu.
func (j *Journal) flush() {
	if len(j.buf) == 0 {
		return
	}
	if err := j.store.WriteFrames(j.ctx, j.runID, j.buf); err != nil {
		j.fail("write frames", err, slog.String("run_id", j.runID), slog.Int("frames", len(j.buf)))
		j.trim()
		return
	}
	j.buf = j.buf[:0]
}

// trim drops the oldest buffered frames beyond the retry bound.
//
// Caller must hold j.mu.
func (j *Journal) trim() {
	over := len(j.buf) - j.flushEvery*MaxPendingBatches
	if over <= 0 {
		return
	}
	j.buf = append(j.buf[:0], j.buf[over:]...)
	j.dropped.Add(int64(over))
	j.errors.Add(int64(over))
	j.logger.Warn("journal dropping unwritten frames", "run_id", j.runID, "dropped", over)
}

func (j *Journal) fail(op string, err error, attrs ...slog.Attr) {
	j.errors.Add(1)
	args := []any{slog.String("op", op), slog.Any("error", err)}
	for _, a := range attrs {
		args = append(args, a)
	}
	j.logger.Error("journal store failure", args...)
}
