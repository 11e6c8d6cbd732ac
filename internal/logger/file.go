package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/harrison/shellagent/internal/models"
)

// FileLogger writes JSON run logs with zap. Each process gets a
// timestamped run-YYYYMMDD-HHMMSS.log and latest.log points at it.
type FileLogger struct {
	logDir  string
	runFile string
	file    *os.File
	zl      *zap.Logger
	once    sync.Once
}

// NewFileLogger creates the log directory, opens a new run log, and
// updates the latest.log symlink.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", stamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	if err := updateLatestLink(logDir, runFile); err != nil {
		file.Close()
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(file),
		zap.NewAtomicLevelAt(zapLevel(logLevel)),
	)

	fl := &FileLogger{
		logDir:  logDir,
		runFile: runFile,
		file:    file,
		zl:      zap.New(core).With(zap.Int("pid", os.Getpid())),
	}
	fl.zl.Info("run started")
	return fl, nil
}

func updateLatestLink(logDir, runFile string) error {
	link := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), link); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// zapLevel maps our level names onto zap's. trace has no zap equivalent
// and is written at debug.
func zapLevel(level string) zapcore.Level {
	switch normalizeLogLevel(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Path returns the run log file.
func (fl *FileLogger) Path() string { return fl.runFile }

func (fl *FileLogger) LogTrace(message string) { fl.zl.Debug(message, zap.Bool("trace", true)) }
func (fl *FileLogger) LogDebug(message string) { fl.zl.Debug(message) }
func (fl *FileLogger) LogInfo(message string)  { fl.zl.Info(message) }
func (fl *FileLogger) LogWarn(message string)  { fl.zl.Warn(message) }
func (fl *FileLogger) LogError(message string) { fl.zl.Error(message) }

// LogResult records a request outcome with its fields.
func (fl *FileLogger) LogResult(result models.StructuredResult) {
	fields := []zap.Field{
		zap.String("run_id", result.RunID),
		zap.String("command", result.Command),
		zap.Bool("succeeded", result.Succeeded),
		zap.Bool("fallback", result.Fallback),
		zap.Int("similar", len(result.SimilarMatches)),
		zap.Int("output_bytes", len(result.Output)),
	}
	if result.HasAnalysis() {
		fields = append(fields, zap.String("analysis", result.ErrorAnalysis))
	}
	fl.zl.Info("request handled", fields...)
}

func (fl *FileLogger) LogBatchProgress(done, total int, elapsed time.Duration) {
	fl.zl.Debug("batch progress", zap.Int("done", done), zap.Int("total", total), zap.Duration("elapsed", elapsed))
}

func (fl *FileLogger) LogBatchSummary(results []models.StructuredResult, duration time.Duration) {
	s := summarize(results)
	fl.zl.Info("batch complete",
		zap.Int("total", s.total),
		zap.Int("succeeded", s.succeeded),
		zap.Int("failed", s.failed),
		zap.Int("fallbacks", s.fallbacks),
		zap.Duration("duration", duration),
	)
}

// Close flushes and closes the run log. Safe to call more than once.
func (fl *FileLogger) Close() error {
	var err error
	fl.once.Do(func() {
		fl.zl.Info("run finished")
		_ = fl.zl.Sync()
		err = fl.file.Close()
	})
	return err
}
