package tasks

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/betrace-hq/betrace-sub002/internal/logging"
)

var _ logging.InternalLogger = (*storeLogger)(nil)

// storeLogger appends handler output to the task's log ring.
type storeLogger struct {
	task *task
}

func (s *storeLogger) Debug(format string, args ...any) {
	s.task.appendLog("debug", fmt.Sprintf(format, args...))
}

func (s *storeLogger) Info(format string, args ...any) {
	s.task.appendLog("info", fmt.Sprintf(format, args...))
}

func (s *storeLogger) Warn(format string, args ...any) {
	s.task.appendLog("warn", fmt.Sprintf(format, args...))
}

func (s *storeLogger) Error(format string, args ...any) {
	s.task.appendLog("error", fmt.Sprintf(format, args...))
}

// newCompositeLogger logs to zerolog and keeps a copy on the task.
func newCompositeLogger(task *task, zlog zerolog.Logger) logging.MultiLogger {
	return logging.NewMultiLogger(
		logging.NewZLogger(zlog),
		&storeLogger{task: task},
	)
}
