// Package store provides SQLite-backed durable storage for the run journal.
//
// The journal has two tables:
//   - runs: one row per engine Start, with the assembly config identity,
//     final status, frame count and total engine time
//   - frames: the delta time of every tick of a run
//
// # Ordering
//
// Runs are ordered by a logical seq assigned on insert (max+1 inside the
// inserting transaction), never by wall-clock timestamps. Frames are ordered
// by their frame number.
//
// # Idempotency
//
// Frame writes use ON CONFLICT(run_id, frame) DO NOTHING, so a journal that
// re-flushes a batch after a transient error does not duplicate rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
