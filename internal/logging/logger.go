// Package logging provides the leveled application logger: timestamped,
// optionally colored console lines (errors to stderr) plus an optional
// plain append-only log file, backed by zap.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/backmassage/exrscan/internal/config"
	"github.com/backmassage/exrscan/internal/term"
)

// Line tags. Each maps to a zap level; SUCCESS and OUTLIER share levels
// with INFO and WARN but keep their own label.
const (
	tagInfo    = "INFO"
	tagSuccess = "SUCCESS"
	tagWarn    = "WARN"
	tagOutlier = "OUTLIER"
	tagError   = "ERROR"
	tagDebug   = "DEBUG"
)

var tagColors = map[string]string{
	tagInfo:    "\033[1;94m",
	tagSuccess: "\033[1;92m",
	tagWarn:    "\033[1;93m",
	tagOutlier: "\033[1;38;5;208m",
	tagError:   "\033[1;91m",
	tagDebug:   "\033[1;96m",
}

// Options configures New directly; NewLogger derives them from Config.
type Options struct {
	Stdout  io.Writer // INFO..WARN lines
	Stderr  io.Writer // ERROR lines
	File    io.Writer // optional plain sink receiving every enabled line
	Color   bool
	JSON    bool
	Verbose bool
}

// Logger provides leveled, optionally colored logging with optional file sink.
type Logger struct {
	z    *zap.Logger
	tags map[string]*zap.SugaredLogger

	mu   sync.Mutex
	file *os.File
}

// NewLogger configures terminal colors from cfg, opens cfg.LogFile when set,
// and builds the logger. Call Close() when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)
	opts := Options{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Color:   term.Enabled(),
		JSON:    cfg.LogFormat == config.LogJSON,
		Verbose: cfg.Verbose,
	}
	// A json or yaml report on stdout must stay parseable.
	if cfg.ReportFile == "" && cfg.ReportFormat != "" && cfg.ReportFormat != config.ReportText {
		opts.Stdout = os.Stderr
	}

	var f *os.File
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		var err error
		f, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		opts.File = f
	}

	l := New(opts)
	l.file = f
	return l, nil
}

// New builds a logger writing to the given sinks.
func New(opts Options) *Logger {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	floor := zapcore.InfoLevel
	if opts.Verbose {
		floor = zapcore.DebugLevel
	}
	belowError := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= floor && l < zapcore.ErrorLevel })
	fromError := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= floor && l >= zapcore.ErrorLevel })

	console := newEncoder(opts.JSON, opts.Color)
	cores := []zapcore.Core{
		zapcore.NewCore(console, zapcore.Lock(zapcore.AddSync(opts.Stdout)), belowError),
		zapcore.NewCore(console.Clone(), zapcore.Lock(zapcore.AddSync(opts.Stderr)), fromError),
	}
	if opts.File != nil {
		cores = append(cores, zapcore.NewCore(newEncoder(opts.JSON, false), zapcore.Lock(zapcore.AddSync(opts.File)), floor))
	}
	return wrap(zap.New(zapcore.NewTee(cores...)))
}

// Nop returns a logger that discards everything.
func Nop() *Logger { return wrap(zap.NewNop()) }

func wrap(z *zap.Logger) *Logger {
	l := &Logger{z: z, tags: make(map[string]*zap.SugaredLogger, len(tagColors))}
	for tag := range tagColors {
		l.tags[tag] = z.Named(tag).Sugar()
	}
	return l
}

func newEncoder(json, color bool) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "ts",
		NameKey:        "tag",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	if json {
		ec.LevelKey = "level"
		ec.EncodeLevel = zapcore.LowercaseLevelEncoder
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeName = zapcore.FullNameEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec.ConsoleSeparator = " "
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		if color {
			enc.AppendString(tagColors[name] + "[" + name + "]" + "\033[0m")
			return
		}
		enc.AppendString("[" + name + "]")
	}
	return zapcore.NewConsoleEncoder(ec)
}

// With returns a child logger that adds fields to every line.
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := wrap(l.z.With(fields...))
	child.file = nil
	return child
}

// Zap exposes the underlying zap logger for structured call sites.
func (l *Logger) Zap() *zap.Logger { return l.z }

// Close flushes buffered output and closes the log file if one was opened.
func (l *Logger) Close() error {
	_ = l.z.Sync()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.tags[tagInfo].Infof(format, args...)
}

// Success logs at INFO level with a SUCCESS label (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.tags[tagSuccess].Infof(format, args...)
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.tags[tagWarn].Warnf(format, args...)
}

// Outlier logs at WARN level with an OUTLIER label (orange).
func (l *Logger) Outlier(format string, args ...interface{}) {
	l.tags[tagOutlier].Warnf(format, args...)
}

// Error logs at ERROR level (red), to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.tags[tagError].Errorf(format, args...)
}

// Debug logs at DEBUG level (cyan); dropped unless the logger is verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.tags[tagDebug].Debugf(format, args...)
}
