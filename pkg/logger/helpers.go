package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogTargetStart records the start of work on one target.
func LogTargetStart(l Logger, workerID int, targetID, mode, url string) {
	l.InfoWithFields("Target started", map[string]interface{}{
		"worker": workerID,
		"target": targetID,
		"mode":   mode,
		"url":    url,
	})
}

// LogScrollProgress logs one feed-loader iteration.
func LogScrollProgress(l Logger, targetID string, scroll, units, maxUnits, stagnant int) {
	l.DebugWithFields("Scroll progress", map[string]interface{}{
		"target":   targetID,
		"scroll":   scroll,
		"units":    units,
		"max":      maxUnits,
		"stagnant": stagnant,
	})
}

// LogPacing logs time spent waiting on the shared pacing gate.
func LogPacing(l Logger, action string, waited time.Duration) {
	if waited < 100*time.Millisecond {
		return
	}
	l.DebugWithFields("Pacing gate delayed action", map[string]interface{}{
		"action": action,
		"waited": waited,
	})
}

// LogRetry logs a retry decision.
func LogRetry(l Logger, operation string, attempt, maxAttempts int, delay time.Duration, err error) {
	l.WithError(err).WarnWithFields("Retrying operation", map[string]interface{}{
		"operation":    operation,
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"delay":        delay,
	})
}

// LogExtractionGap logs fields for which every strategy failed.
func LogExtractionGap(l Logger, unitID string, fields []string) {
	if len(fields) == 0 {
		return
	}
	l.DebugWithFields("Extraction gap", map[string]interface{}{
		"unit":   unitID,
		"fields": fields,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = l.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	z := zerolog.Nop()
	return &z
}
