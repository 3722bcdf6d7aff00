// Package logger is the process-wide printf-style logger. Console output goes
// to stderr; an optional rotated JSON log file receives the same records.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TraceLevel sits below zap's debug level.
const TraceLevel = zapcore.DebugLevel - 1

// Options configures Init.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    io.Writer
}

var (
	mu      sync.Mutex
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base    = newLogger(os.Stderr, nil)
	rotator *lumberjack.Logger
)

// ParseLevel accepts trace, debug, info, warn, error, fatal and panic.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "trace":
		return TraceLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "":
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q (want trace, debug, info, warn, error, fatal, panic)", s)
	}
	return lvl, nil
}

// SetLevel changes the minimum level for every sink.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// GetLevel returns the current minimum level.
func GetLevel() zapcore.Level {
	return level.Level()
}

// Init rebuilds the logger from opts. It is safe to call more than once; a
// previously opened log file is closed.
func Init(opts Options) error {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var file *lumberjack.Logger
	if strings.TrimSpace(opts.File) != "" {
		file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
	}

	mu.Lock()
	defer mu.Unlock()

	if rotator != nil {
		_ = rotator.Close()
	}
	rotator = file
	level.SetLevel(lvl)
	base = newLogger(console, file)
	return nil
}

// Close flushes buffered records and closes the log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	_ = base.Sync()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

func newLogger(console io.Writer, file io.Writer) *zap.Logger {
	consoleCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      encodeLevel,
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(console), level),
	}

	if file != nil {
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCfg.EncodeLevel = encodeLevel
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(file), level))
	}

	return zap.New(zapcore.NewTee(cores...))
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func current() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base
}

func logf(l zapcore.Level, format string, args ...any) {
	if !level.Enabled(l) {
		return
	}
	if ce := current().Check(l, fmt.Sprintf(format, args...)); ce != nil {
		ce.Write()
	}
}

func Trace(format string, args ...any) { logf(TraceLevel, format, args...) }
func Debug(format string, args ...any) { logf(zapcore.DebugLevel, format, args...) }
func Info(format string, args ...any)  { logf(zapcore.InfoLevel, format, args...) }
func Warn(format string, args ...any)  { logf(zapcore.WarnLevel, format, args...) }
func Error(format string, args ...any) { logf(zapcore.ErrorLevel, format, args...) }

// Infow logs msg with structured key/value pairs.
func Infow(msg string, keysAndValues ...any) {
	current().Sugar().Infow(msg, keysAndValues...)
}

// Errorw logs msg at error level with structured key/value pairs.
func Errorw(msg string, keysAndValues ...any) {
	current().Sugar().Errorw(msg, keysAndValues...)
}
