package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	name  string
	level zap.AtomicLevel
	base  *zap.Logger
}

// sugar returns nil when lvl is filtered by this logger's level so that subloggers can be
// quieter than their parent without touching the shared core.
func (imp *impl) sugar(lvl zapcore.Level) *zap.SugaredLogger {
	if !imp.level.Enabled(lvl) {
		return nil
	}
	return imp.base.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}

	return &impl{
		name:  newName,
		level: zap.NewAtomicLevelAt(imp.level.Level()),
		base:  imp.base.Named(subname),
	}
}

func (imp *impl) SetLevel(level zapcore.Level) {
	imp.level.SetLevel(level)
}

func (imp *impl) Level() zapcore.Level {
	return imp.level.Level()
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.base
}

func (imp *impl) Sync() error {
	return imp.base.Sync()
}

func (imp *impl) Debug(args ...interface{}) {
	if s := imp.sugar(zapcore.DebugLevel); s != nil {
		s.Debug(args...)
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if s := imp.sugar(zapcore.DebugLevel); s != nil {
		s.Debugf(template, args...)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if s := imp.sugar(zapcore.DebugLevel); s != nil {
		s.Debugw(msg, keysAndValues...)
	}
}

func (imp *impl) Info(args ...interface{}) {
	if s := imp.sugar(zapcore.InfoLevel); s != nil {
		s.Info(args...)
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if s := imp.sugar(zapcore.InfoLevel); s != nil {
		s.Infof(template, args...)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if s := imp.sugar(zapcore.InfoLevel); s != nil {
		s.Infow(msg, keysAndValues...)
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if s := imp.sugar(zapcore.WarnLevel); s != nil {
		s.Warn(args...)
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if s := imp.sugar(zapcore.WarnLevel); s != nil {
		s.Warnf(template, args...)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if s := imp.sugar(zapcore.WarnLevel); s != nil {
		s.Warnw(msg, keysAndValues...)
	}
}

func (imp *impl) Error(args ...interface{}) {
	if s := imp.sugar(zapcore.ErrorLevel); s != nil {
		s.Error(args...)
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if s := imp.sugar(zapcore.ErrorLevel); s != nil {
		s.Errorf(template, args...)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if s := imp.sugar(zapcore.ErrorLevel); s != nil {
		s.Errorw(msg, keysAndValues...)
	}
}
