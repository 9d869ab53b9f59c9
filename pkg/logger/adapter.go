package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerAdapter provides a unified interface for both single and multi-logger
type LoggerAdapter struct {
	multiLogger  *MultiLogger
	singleLogger *zap.Logger
	useMulti     bool
}

// NewLoggerAdapter creates an adapter that mirrors general output into the
// categorized files of multiLogger
func NewLoggerAdapter(multiLogger *MultiLogger, general *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{
		multiLogger:  multiLogger,
		singleLogger: general,
		useMulti:     true,
	}
}

// NewSingleLoggerAdapter creates an adapter for a single logger
func NewSingleLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{
		singleLogger: logger,
		useMulti:     false,
	}
}

// WebAccess returns the web access logger
func (la *LoggerAdapter) WebAccess() *zap.Logger {
	if la.useMulti {
		return la.multiLogger.Access()
	}
	return la.singleLogger
}

// Session returns a logger writing to the console and the session log;
// errors also land in the error log
func (la *LoggerAdapter) Session() *zap.Logger {
	if la.useMulti {
		return tee(la.singleLogger, la.multiLogger.Session(), la.multiLogger.Error())
	}
	return la.singleLogger
}

// Error returns the error logger
func (la *LoggerAdapter) Error() *zap.Logger {
	if la.useMulti {
		return la.multiLogger.Error()
	}
	return la.singleLogger
}

// General returns the console logger; errors also land in the error log
func (la *LoggerAdapter) General() *zap.Logger {
	if la.useMulti {
		return tee(la.singleLogger, la.multiLogger.Error())
	}
	return la.singleLogger
}

// LogError logs an error to both category and error logs
func (la *LoggerAdapter) LogError(category LogCategory, msg string, fields ...zap.Field) {
	if la.useMulti {
		la.multiLogger.LogError(category, msg, fields...)
	} else {
		la.singleLogger.Error(msg, fields...)
	}
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	if la.useMulti {
		la.singleLogger.Sync()
		return la.multiLogger.Sync()
	}
	return la.singleLogger.Sync()
}

// GetMultiLogger returns the underlying multi-logger (if available)
func (la *LoggerAdapter) GetMultiLogger() *MultiLogger {
	return la.multiLogger
}

// GetSingleLogger returns the console logger
func (la *LoggerAdapter) GetSingleLogger() *zap.Logger {
	return la.singleLogger
}

func tee(primary *zap.Logger, others ...*zap.Logger) *zap.Logger {
	cores := []zapcore.Core{primary.Core()}
	for _, l := range others {
		cores = append(cores, l.Core())
	}
	return primary.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core {
		return zapcore.NewTee(cores...)
	}))
}
