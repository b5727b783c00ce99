package logging

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// zapWriter adapts zap.Logger to the gorm logger.Writer interface.
type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Infof(format, args...)
}

// GormLogger 将 gorm 的日志输出到 zap，级别随应用日志级别映射。
func GormLogger(level string) logger.Interface {
	var gormLevel logger.LogLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		gormLevel = logger.Info
	case "info":
		gormLevel = logger.Warn
	case "warn", "warning":
		gormLevel = logger.Error
	case "error", "silent":
		gormLevel = logger.Silent
	default:
		gormLevel = logger.Warn
	}

	return logger.New(
		&zapWriter{logger: Named("gorm")},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
