package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

// Manager holds the active engine per tenant. Engines are swapped
// atomically on update, so in-flight evaluations always see one
// consistent rule set.
type Manager struct {
	mu      sync.Mutex
	tenants map[string]*atomic.Pointer[Engine]
}

func NewManager() *Manager {
	return &Manager{
		tenants: make(map[string]*atomic.Pointer[Engine]),
	}
}

// Update compiles and installs a tenant's rule set. The whole update
// is rejected if any enabled rule fails to compile; the previously
// installed engine stays active in that case.
func (m *Manager) Update(tenantID string, rules []core.Rule) error {
	var (
		compiled []CompiledRule
		errs     []error
	)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		rule.TenantID = tenantID
		cr, err := Compile(rule)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", rule.ID, err))
			continue
		}
		compiled = append(compiled, cr)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	candidate := New(compiled)

	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.tenants[tenantID]
	if !ok {
		slot = &atomic.Pointer[Engine]{}
		m.tenants[tenantID] = slot
	}
	slot.Store(candidate)
	return nil
}

// EngineFor returns the tenant's active engine. Tenants without
// installed rules get an empty engine, never nil.
func (m *Manager) EngineFor(tenantID string) *Engine {
	m.mu.Lock()
	slot, ok := m.tenants[tenantID]
	m.mu.Unlock()

	if !ok {
		return New(nil)
	}
	return slot.Load()
}

// Tenants lists tenants with installed rule sets.
func (m *Manager) Tenants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.tenants))
	for t := range m.tenants {
		out = append(out, t)
	}
	return out
}
