package logger

import (
	"time"

	"github.com/harrison/shellagent/internal/models"
)

// Logger is the full method set shared by every logger in this package.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogResult(result models.StructuredResult)
	LogBatchProgress(done, total int, elapsed time.Duration)
	LogBatchSummary(results []models.StructuredResult, duration time.Duration)
}

// MultiLogger fans every call out to each wrapped logger in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger skips nil loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) LogTrace(message string) {
	for _, l := range m.loggers {
		l.LogTrace(message)
	}
}

func (m *MultiLogger) LogDebug(message string) {
	for _, l := range m.loggers {
		l.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, l := range m.loggers {
		l.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, l := range m.loggers {
		l.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, l := range m.loggers {
		l.LogError(message)
	}
}

func (m *MultiLogger) LogResult(result models.StructuredResult) {
	for _, l := range m.loggers {
		l.LogResult(result)
	}
}

func (m *MultiLogger) LogBatchProgress(done, total int, elapsed time.Duration) {
	for _, l := range m.loggers {
		l.LogBatchProgress(done, total, elapsed)
	}
}

func (m *MultiLogger) LogBatchSummary(results []models.StructuredResult, duration time.Duration) {
	for _, l := range m.loggers {
		l.LogBatchSummary(results, duration)
	}
}

var (
	_ Logger = (*ConsoleLogger)(nil)
	_ Logger = (*FileLogger)(nil)
	_ Logger = (*MultiLogger)(nil)
	_ Logger = (*NoOpLogger)(nil)
)
