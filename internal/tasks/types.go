package tasks

import (
	"context"
	"time"

	"github.com/betrace-hq/betrace-sub002/internal/logging"
)

// TaskFunc is the unit of work. Its logger stores output on the task
// so runs can be inspected through the API afterwards.
type TaskFunc func(ctx context.Context, logger logging.InternalLogger) error

type TaskDefinition struct {
	Name     string
	Interval time.Duration
	Handler  TaskFunc

	// Timeout bounds a single run. Zero means DefaultRunTimeout.
	Timeout time.Duration
}

type TaskStatus struct {
	Name       string    `json:"name,omitempty"`
	Running    bool      `json:"running,omitempty"`
	LastRun    time.Time `json:"last_run"`
	LastResult string    `json:"last_result,omitempty"`
	NextRun    time.Time `json:"next_run"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
}
