package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronLogger adapts slog to the logger interface robfig/cron expects.
// cron's Info messages are routine and are emitted at debug level.
type CronLogger struct {
	log *slog.Logger
}

var _ cron.Logger = CronLogger{}

// NewCron wraps log with a component prefix.
func NewCron(log *slog.Logger, component string) CronLogger {
	if log == nil {
		log = slog.Default()
	}
	return CronLogger{log: log.With("component", component)}
}

// Info implements cron.Logger.
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

// Error implements cron.Logger.
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
