package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// LogLevel is one of the logrus levels this package exposes to callers
// without requiring them to import logrus directly.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
	PanicLevel LogLevel = "panic"
	FatalLevel LogLevel = "fatal"
)

// levels maps the package's string levels onto logrus.Level, so Init
// doesn't need a six-case switch to do what a lookup already does.
var levels = map[LogLevel]logrus.Level{
	DebugLevel: logrus.DebugLevel,
	InfoLevel:  logrus.InfoLevel,
	WarnLevel:  logrus.WarnLevel,
	ErrorLevel: logrus.ErrorLevel,
	PanicLevel: logrus.PanicLevel,
	FatalLevel: logrus.FatalLevel,
}

// Init (re)configures the package logger: millisecond-precision
// timestamps to stdout, since the event loop can process several requests
// within one wall-clock second and second-precision timestamps would
// collapse them together.
func Init(level LogLevel) {
	log = logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	lvl, ok := levels[level]
	if !ok {
		lvl = logrus.WarnLevel
	}
	log.SetLevel(lvl)
}

// Get returns the package logger, lazily defaulting to WarnLevel if Init
// was never called — a caller that only cares about failures shouldn't
// have to initialize a logger just to get one.
func Get() *logrus.Logger {
	if log == nil {
		Init(WarnLevel)
	}
	return log
}

func Debug(args ...interface{})                 { Get().Debug(args...) }
func Debugf(format string, args ...interface{}) { Get().Debugf(format, args...) }
func Info(args ...interface{})                  { Get().Info(args...) }
func Infof(format string, args ...interface{})  { Get().Infof(format, args...) }
func Warn(args ...interface{})                  { Get().Warn(args...) }
func Warnf(format string, args ...interface{})  { Get().Warnf(format, args...) }
func Error(args ...interface{})                 { Get().Error(args...) }
func Errorf(format string, args ...interface{}) { Get().Errorf(format, args...) }
func Fatal(args ...interface{})                 { Get().Fatal(args...) }
func Fatalf(format string, args ...interface{}) { Get().Fatalf(format, args...) }

// WithField returns an entry carrying one structured field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Get().WithField(key, value)
}

// WithFields returns an entry carrying several structured fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Get().WithFields(fields)
}
