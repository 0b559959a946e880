package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"qrscan/internal/config"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log files kept in the log directory, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to rotating files and stdout.
type Logger struct {
	zl     zerolog.Logger
	logDir string
	files  map[string]*lumberjack.Logger
	mu     sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logger := &Logger{
		logDir: config.LogDirectory,
		files:  make(map[string]*lumberjack.Logger),
	}

	logger.setupLoggers(config.LogLevel)
	return logger
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop(), files: map[string]*lumberjack.Logger{}}
}

// New wraps an arbitrary writer; used by tests that want to inspect output.
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{
		zl:    zerolog.New(w).Level(level).With().Timestamp().Logger(),
		files: map[string]*lumberjack.Logger{},
	}
}

// setupLoggers initializes per-level rotating files and the console writer.
func (l *Logger) setupLoggers(level string) {
	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime},
	}
	for lvl, name := range map[zerolog.Level]string{
		zerolog.InfoLevel:  InfoFile,
		zerolog.WarnLevel:  WarningFile,
		zerolog.ErrorLevel: ErrorFile,
	} {
		file := &lumberjack.Logger{
			Filename:   filepath.Join(l.logDir, name),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		l.files[name] = file
		writers = append(writers, levelWriter{level: lvl, w: file})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	l.zl = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()
}

// levelWriter forwards only entries of exactly one level.
type levelWriter struct {
	level zerolog.Level
	w     io.Writer
}

func (lw levelWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (lw levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level != lw.level {
		return len(p), nil
	}
	return lw.w.Write(p)
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, ok := l.files[fileName]
	if !ok {
		l.Warning("Unknown log file %q", fileName)
		return
	}
	// lumberjack reopens in append mode on the next write
	if err := file.Close(); err != nil {
		l.Error("Error closing %s: %v", fileName, err)
	}
	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil && !os.IsNotExist(err) {
		l.Error("Error truncating %s: %v", fileName, err)
		return
	}

	l.Info("Log file %s has been cleared", fileName)
}

// Close flushes and closes the rotating files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
