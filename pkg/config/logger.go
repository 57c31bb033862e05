package config

import (
	"tilebridge/pkg/logger"
)

// ToLoggerConfig converts the file form into logger.Config.
func (lc *LoggerConfig) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:       logger.Level(lc.Level),
		OutputPath:  lc.OutputPath,
		MaxSize:     lc.MaxSize,
		MaxBackups:  lc.MaxBackups,
		MaxAge:      lc.MaxAge,
		Compress:    lc.Compress,
		Development: lc.Development,
	}
}
