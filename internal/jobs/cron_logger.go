package jobs

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

var _ cron.Logger = cronLogger{}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// intervalSchedule fires every d starting d after the scheduler starts.
// Unlike cron.Every it keeps sub-second intervals.
type intervalSchedule time.Duration

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(s))
}
