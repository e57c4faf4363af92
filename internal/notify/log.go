package notify

import (
	"context"
	"log/slog"
)

// Log writes notifications to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) SetWarning(msg string) {
	l.logger.Info("warning", "message", msg)
}

func (l *Log) ClearWarning() {
	l.logger.Debug("warning cleared")
}

func (l *Log) Say(msg string) {
	l.logger.Info("speech", "message", msg)
}

func (l *Log) SpeechAvailable() bool { return false }

func (l *Log) Trigger(ev Event) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "trigger",
		slog.String("event", ev.Kind),
		slog.String("command", ev.Command),
		slog.Any("tokens", ev.Tokens),
	)
}

func (l *Log) SetCapability(name string, on bool) {
	l.logger.Debug("capability", "name", name, "value", on)
}

func (l *Log) SetMeasurement(name string, value float64) {
	l.logger.Debug("measurement", "name", name, "value", value)
}
