// Package logging is a thin structured-logging layer over logrus.
//
// Components take a [Logger] and attach fields with [Logger.WithField] or
// [Logger.WithFields]. Nothing in the dictionary packages logs through the
// global logrus instance directly.
package logging

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const LogFieldsContextKey = contextKey("log_fields")

// log field keys
const (
	// DictTypeFieldKey dictionary type (string, ex: user, contacts)
	DictTypeFieldKey = "dict_type"
	// FilenameFieldKey snapshot filename (string)
	FilenameFieldKey = "filename"
	// InstanceFieldKey per-instance id (string)
	InstanceFieldKey = "instance"
	// ReasonFieldKey why a rebuild happened (string)
	ReasonFieldKey = "reason"
	// StageFieldKey failing stage (string, ex: load, write, reload)
	StageFieldKey = "stage"
	// OpFieldKey operation name (string)
	OpFieldKey = "op"
)

type Fields map[string]interface{}

type Logger interface {
	WithContext(ctx context.Context) Logger
	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger
	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	IsTracing() bool
	IsDebugging() bool
}

var defaultLogger = logrus.New()

// Level returns the level of the default logger.
func Level() string {
	return defaultLogger.GetLevel().String()
}

// SetLevel sets the default logger level. Unknown names are ignored;
// "none" discards all output.
func SetLevel(level string) {
	setLevel(defaultLogger, level)
}

func setLevel(l *logrus.Logger, level string) {
	switch strings.ToLower(level) {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	case "null", "none":
		l.SetLevel(logrus.PanicLevel)
		l.SetOutput(io.Discard)
	}
}

// SetOutput redirects the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

// SetOutputFormat selects "text" or "json" output for the default logger.
func SetOutputFormat(format string) {
	if f := formatter(format); f != nil {
		defaultLogger.SetFormatter(f)
	}
}

func formatter(format string) logrus.Formatter {
	switch strings.ToLower(format) {
	case "text":
		return &logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
			PadLevelText:           true,
			QuoteEmptyFields:       true,
		}
	case "json":
		return &logrus.JSONFormatter{}
	default:
		return nil
	}
}

// Options configure a standalone logger built by [New].
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New returns a logger that does not share state with [Default].
func New(opts Options) Logger {
	l := logrus.New()

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	}

	if f := formatter(opts.Format); f != nil {
		l.SetFormatter(f)
	}

	setLevel(l, opts.Level)

	return &logrusEntryWrapper{e: logrus.NewEntry(l)}
}

// Default returns a logger backed by the process-wide logrus instance.
func Default() Logger {
	return &logrusEntryWrapper{e: logrus.NewEntry(defaultLogger)}
}

// Dummy returns a logger that drops everything.
func Dummy() Logger {
	return New(Options{Level: "none"})
}

// NewInstanceID returns a short random id used to tell instances apart in
// log output.
func NewInstanceID() string {
	id := uuid.New().String()

	return id[:8]
}

type logrusEntryWrapper struct {
	e *logrus.Entry
}

func (l *logrusEntryWrapper) WithContext(ctx context.Context) Logger {
	return addFromContext(&logrusEntryWrapper{l.e.WithContext(ctx)}, ctx)
}

func (l *logrusEntryWrapper) WithField(key string, value interface{}) Logger {
	return &logrusEntryWrapper{l.e.WithField(key, value)}
}

func (l *logrusEntryWrapper) WithFields(fields Fields) Logger {
	return &logrusEntryWrapper{l.e.WithFields(logrus.Fields(fields))}
}

func (l *logrusEntryWrapper) WithError(err error) Logger {
	return &logrusEntryWrapper{l.e.WithError(err)}
}

func (l *logrusEntryWrapper) Trace(args ...interface{}) { l.e.Trace(args...) }
func (l *logrusEntryWrapper) Debug(args ...interface{}) { l.e.Debug(args...) }
func (l *logrusEntryWrapper) Info(args ...interface{})  { l.e.Info(args...) }
func (l *logrusEntryWrapper) Warn(args ...interface{})  { l.e.Warn(args...) }
func (l *logrusEntryWrapper) Error(args ...interface{}) { l.e.Error(args...) }

func (l *logrusEntryWrapper) Tracef(format string, args ...interface{}) {
	l.e.Tracef(format, args...)
}

func (l *logrusEntryWrapper) Debugf(format string, args ...interface{}) {
	l.e.Debugf(format, args...)
}

func (l *logrusEntryWrapper) Infof(format string, args ...interface{}) {
	l.e.Infof(format, args...)
}

func (l *logrusEntryWrapper) Warnf(format string, args ...interface{}) {
	l.e.Warnf(format, args...)
}

func (l *logrusEntryWrapper) Errorf(format string, args ...interface{}) {
	l.e.Errorf(format, args...)
}

func (l *logrusEntryWrapper) IsTracing() bool {
	return l.e.Logger.IsLevelEnabled(logrus.TraceLevel)
}

func (l *logrusEntryWrapper) IsDebugging() bool {
	return l.e.Logger.IsLevelEnabled(logrus.DebugLevel)
}

func addFromContext(log Logger, ctx context.Context) Logger {
	fields, ok := ctx.Value(LogFieldsContextKey).(Fields)
	if !ok {
		return log
	}

	return log.WithFields(fields)
}

// FromContext returns the default logger with any fields stored in ctx.
func FromContext(ctx context.Context) Logger {
	return addFromContext(Default(), ctx)
}

// AddFields returns a copy of ctx carrying fields in addition to the ones
// already stored.
func AddFields(ctx context.Context, fields Fields) context.Context {
	merged := Fields{}

	if existing, ok := ctx.Value(LogFieldsContextKey).(Fields); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}

	for k, v := range fields {
		merged[k] = v
	}

	return context.WithValue(ctx, LogFieldsContextKey, merged)
}
