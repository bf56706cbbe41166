package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/metrics"
)

const DefaultBufferCapacity = 1000

// Recorder writes audit transfers to the ledger with a
// degrade-and-buffer policy: ledger unavailability never blocks the
// caller's primary workflow. Unavailable writes land in a bounded
// in-memory buffer that a background task flushes; overflow drops
// oldest-first and counts the loss.
//
// Validation failures (unknown account, duplicate id) are the caller's
// bug and are returned, not buffered.
type Recorder struct {
	ledger   core.Ledger
	capacity int

	mu       sync.Mutex
	buffer   []core.Transfer
	buffered uint64
	dropped  uint64
}

func NewRecorder(l core.Ledger, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Recorder{
		ledger:   l,
		capacity: capacity,
	}
}

// Record commits the transfer, degrading to the buffer when the
// ledger is unavailable. It returns an error only for validation
// failures.
func (r *Recorder) Record(ctx context.Context, t core.Transfer) error {
	_, err := r.ledger.CreateTransfer(ctx, t)
	if err == nil {
		return nil
	}
	if isValidationError(err) {
		return err
	}

	// Degrade: keep the primary flow alive, raise the alarm.
	log.Error().
		Err(err).
		Str("partition", t.Partition).
		Uint16("type", uint16(t.Type)).
		Msg("ledger unavailable, buffering audit transfer")

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buffer) == r.capacity {
		r.buffer = r.buffer[1:]
		r.dropped++
		metrics.AuditDropped.Inc()
	}
	r.buffer = append(r.buffer, t)
	r.buffered++
	metrics.AuditBuffered.Inc()
	return nil
}

// Flush retries buffered transfers in arrival order. It stops at the
// first transfer that still cannot be committed, keeping it and
// everything after it buffered.
func (r *Recorder) Flush(ctx context.Context) (int, error) {
	r.mu.Lock()
	pending := make([]core.Transfer, len(r.buffer))
	copy(pending, r.buffer)
	r.mu.Unlock()

	flushed := 0
	done := make(map[uuid.UUID]struct{}, len(pending))
	for _, t := range pending {
		if _, err := r.ledger.CreateTransfer(ctx, t); err != nil {
			if isValidationError(err) {
				// Unreplayable entry; discard it so the rest can drain.
				log.Warn().Err(err).Msg("discarding unreplayable buffered transfer")
				done[t.ID] = struct{}{}
				flushed++
				continue
			}
			break
		}
		done[t.ID] = struct{}{}
		flushed++
	}

	// Trim by id, not by count: a concurrent Record may have shifted
	// the buffer head (drop-oldest) while the snapshot was replaying.
	r.mu.Lock()
	kept := r.buffer[:0]
	for _, t := range r.buffer {
		if _, ok := done[t.ID]; !ok {
			kept = append(kept, t)
		}
	}
	r.buffer = kept
	r.mu.Unlock()
	return flushed, nil
}

// BufferedCount returns how many transfers have ever been buffered.
func (r *Recorder) BufferedCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffered
}

// DroppedCount returns how many buffered transfers were lost to overflow.
func (r *Recorder) DroppedCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Pending returns the current buffer depth.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrAccountNotFound) ||
		errors.Is(err, core.ErrDuplicateTransferID) ||
		errors.Is(err, core.ErrInvalidPartition)
}
