package tasks

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	MaxLogsPerTask    = 1000
	DefaultRunTimeout = 5 * time.Minute
)

type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("task '%s' not found", e.Name)
}

// Manager holds the server's recurring maintenance tasks. Tasks run on
// their interval and can additionally be triggered out of band through
// the admin API.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*task
}

func NewManager() *Manager {
	return &Manager{tasks: make(map[string]*task)}
}

// Register adds a task under def.Name and starts its schedule.
// A definition without an interval is trigger-only.
func (m *Manager) Register(def TaskDefinition) {
	if def.Timeout <= 0 {
		def.Timeout = DefaultRunTimeout
	}
	t := &task{def: def, registeredAt: time.Now()}

	m.mu.Lock()
	m.tasks[def.Name] = t
	m.mu.Unlock()

	if def.Interval > 0 {
		go func() {
			ticker := time.NewTicker(def.Interval)
			defer ticker.Stop()
			for range ticker.C {
				t.run()
			}
		}()
	}
}

func (m *Manager) Trigger(name string) error {
	t, ok := m.lookup(name)
	if !ok {
		return NotFoundError{Name: name}
	}
	go t.run()
	return nil
}

// ListStatus reports every registered task, sorted by name so the API
// output is stable.
func (m *Manager) ListStatus() []TaskStatus {
	m.mu.RLock()
	list := make([]TaskStatus, 0, len(m.tasks))
	for _, t := range m.tasks {
		list = append(list, t.status())
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (m *Manager) Logs(name string) ([]LogEntry, error) {
	t, ok := m.lookup(name)
	if !ok {
		return nil, NotFoundError{Name: name}
	}
	return t.logSnapshot(), nil
}

func (m *Manager) lookup(name string) (*task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[name]
	return t, ok
}
