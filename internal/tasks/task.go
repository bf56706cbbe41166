package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type task struct {
	def          TaskDefinition
	registeredAt time.Time

	mu         sync.RWMutex
	running    bool
	lastRun    time.Time
	lastResult string
	logs       []LogEntry
}

// run executes the handler once. Overlapping runs are skipped, so a
// slow sweep never piles up behind its own ticker.
func (t *task) run() {
	l := log.With().Str("task", t.def.Name).Logger()

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		l.Warn().Msg("task still running, skipping this run")
		return
	}
	t.running = true
	t.logs = nil
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.lastRun = time.Now()
		t.mu.Unlock()
	}()

	logger := newCompositeLogger(t, l)
	logger.Info("starting task execution")

	ctx, cancel := context.WithTimeout(context.Background(), t.def.Timeout)
	defer cancel()

	start := time.Now()
	err := t.def.Handler(ctx, logger)
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = fmt.Sprintf("failed: %v", err)
	}
	t.mu.Lock()
	t.lastResult = result
	t.mu.Unlock()

	if err != nil {
		logger.Error("task failed after %s: %v", duration, err)
	} else {
		logger.Info("task completed successfully in %s", duration)
	}
}

func (t *task) status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var next time.Time
	if t.def.Interval > 0 {
		last := t.lastRun
		if last.IsZero() {
			last = t.registeredAt
		}
		next = last.Add(t.def.Interval)
	}

	return TaskStatus{
		Name:       t.def.Name,
		Running:    t.running,
		LastRun:    t.lastRun,
		LastResult: t.lastResult,
		NextRun:    next,
	}
}

func (t *task) logSnapshot() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cpy := make([]LogEntry, len(t.logs))
	copy(cpy, t.logs)
	return cpy
}

func (t *task) appendLog(level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logs = append(t.logs, LogEntry{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
	})
	if len(t.logs) > MaxLogsPerTask {
		t.logs = t.logs[1:]
	}
}
