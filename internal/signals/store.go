package signals

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

// Store is the in-memory queryable index over signals. The ledger is
// the durable record; this index serves the query API. Signals are
// never removed, only status-transitioned.
type Store struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*core.Signal
	ordered []uuid.UUID // insertion (creation) order
}

func NewStore() *Store {
	return &Store{
		byID: make(map[uuid.UUID]*core.Signal),
	}
}

func (s *Store) Insert(signal core.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := signal
	s.byID[signal.ID] = &cp
	s.ordered = append(s.ordered, signal.ID)
}

func (s *Store) Get(id uuid.UUID) (core.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.byID[id]
	if !ok {
		return core.Signal{}, false
	}
	return *sig, true
}

// SetStatus updates a signal's status in place.
func (s *Store) SetStatus(id uuid.UUID, status core.SignalStatus, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.byID[id]
	if !ok {
		return false
	}
	sig.Status = status
	sig.UpdatedAt = at
	return true
}

// Filter selects signals for one tenant. Zero values match everything.
type Filter struct {
	Severity core.Severity
	Status   core.SignalStatus
	RuleID   string
	Since    time.Time
	Until    time.Time

	Limit  int
	Offset int
}

// List returns the tenant's signals in creation order. The returned
// offset continues the listing; it is len(listed so far), usable as
// the next request's Offset.
func (s *Store) List(tenantID string, f Filter) ([]core.Signal, int) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		out     []core.Signal
		scanned int
	)
	for _, id := range s.ordered {
		sig := s.byID[id]
		if sig.TenantID != tenantID {
			continue
		}
		if !matches(*sig, f) {
			continue
		}
		scanned++
		if scanned <= f.Offset {
			continue
		}
		out = append(out, *sig)
		if len(out) == limit {
			break
		}
	}
	return out, f.Offset + len(out)
}

func matches(sig core.Signal, f Filter) bool {
	if f.Severity != 0 && sig.Severity != f.Severity {
		return false
	}
	if f.Status != "" && sig.Status != f.Status {
		return false
	}
	if f.RuleID != "" && sig.RuleID != f.RuleID {
		return false
	}
	if !f.Since.IsZero() && sig.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !sig.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}
