package logger

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	base = &logrus.Logger{
		Out:   os.Stderr,
		Level: logrus.WarnLevel,
		Formatter: &logrus.TextFormatter{
			FullTimestamp: true,
		},
		Hooks:    make(logrus.LevelHooks),
		ExitFunc: os.Exit,
	}

	runID string
)

type Logger struct {
	entry *logrus.Entry
}

// Configure sets the level and destination shared by every Logger created
// afterwards and tags them with a fresh run id, which is returned.
func Configure(level string, out io.Writer) (string, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return "", err
	}

	base.SetLevel(lvl)
	if out != nil {
		base.SetOutput(out)
	}

	runID = uuid.NewString()

	return runID, nil
}

func NewLogger(component string) *Logger {
	fields := logrus.Fields{"component": component}
	if runID != "" {
		fields["run"] = runID
	}

	return &Logger{entry: base.WithFields(fields)}
}

func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
