package kvbadger

import (
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// ZapLogger adapts a zap logger to badger's printf-style Logger.
func ZapLogger(l *zap.Logger) badger.Logger {
	return &zapLogger{s: l.Named("badger").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// badger terminates most format strings with a newline.
func trim(format string) string {
	return strings.TrimSuffix(format, "\n")
}

func (l *zapLogger) Errorf(format string, args ...interface{}) {
	l.s.Errorf(trim(format), args...)
}

func (l *zapLogger) Warningf(format string, args ...interface{}) {
	l.s.Warnf(trim(format), args...)
}

func (l *zapLogger) Infof(format string, args ...interface{}) {
	l.s.Infof(trim(format), args...)
}

func (l *zapLogger) Debugf(format string, args ...interface{}) {
	l.s.Debugf(trim(format), args...)
}
