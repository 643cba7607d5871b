package logging

import (
	"fmt"

	"go.uber.org/zap"
)

type impl struct {
	*zap.SugaredLogger
	name  string
	level zap.AtomicLevel
}

// Sublogger returns a logger named "<name>.<subname>". Subloggers share their parent's level.
func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{
		SugaredLogger: imp.SugaredLogger.Named(subname),
		name:          newName,
		level:         imp.level,
	}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	return levelFromZap(imp.level.Level())
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.SugaredLogger
}

// Sync flushes buffered output. Syncing stderr on some platforms returns EINVAL, which is ignored.
func (imp *impl) Sync() error {
	//nolint:errcheck
	imp.SugaredLogger.Sync()
	return nil
}
