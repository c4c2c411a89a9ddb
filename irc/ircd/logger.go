package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the process logger. debug switches to the development
// config, which also logs every protocol line.
func newLogger(debug bool) (*zap.Logger, error) {
	var config zap.Config

	if debug {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		config.Encoding = "console"
	}
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	config.DisableStacktrace = !debug

	l, err := config.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(l)
	zap.RedirectStdLog(l)
	return l, nil
}
