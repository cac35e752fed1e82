package state

import (
	cosmoslog "cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// treeLogger hands the node logger to iavl. Tree info logs are demoted to
// debug.
type treeLogger struct {
	cmtlog.Logger
}

func newTreeLogger(lg cmtlog.Logger) cosmoslog.Logger {
	return treeLogger{lg.With("module", "iavl")}
}

func (l treeLogger) Info(msg string, keyVals ...any) {
	l.Logger.Debug(msg, keyVals...)
}

func (l treeLogger) Warn(msg string, keyVals ...any) {
	l.Logger.Info(msg, keyVals...)
}

func (l treeLogger) With(keyVals ...any) cosmoslog.Logger {
	return treeLogger{l.Logger.With(keyVals...)}
}

func (l treeLogger) Impl() any {
	return l.Logger
}
