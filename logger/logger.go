package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled event sink shared by every manager. Args are
// interpreted as key/value pairs.
type Logger interface {
	Info(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Success(msg string, args ...interface{})
}

type LogrusLogger struct {
	internalLogger *logrus.Logger
}

func New(out io.Writer, debug bool) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &LogrusLogger{internalLogger: l}
}

func fields(args []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}

func (l *LogrusLogger) Info(msg string, args ...interface{}) {
	l.internalLogger.WithFields(fields(args)).Info(msg)
}

func (l *LogrusLogger) Debug(msg string, args ...interface{}) {
	l.internalLogger.WithFields(fields(args)).Debug(msg)
}

func (l *LogrusLogger) Warn(msg string, args ...interface{}) {
	l.internalLogger.WithFields(fields(args)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, args ...interface{}) {
	l.internalLogger.WithFields(fields(args)).Error(msg)
}

// Success marks operator-visible completion events. Logrus has no
// dedicated level for it, so it rides on Info with a status field.
func (l *LogrusLogger) Success(msg string, args ...interface{}) {
	f := fields(args)
	f["status"] = "success"
	l.internalLogger.WithFields(f).Info(msg)
}
