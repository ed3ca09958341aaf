package config

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func (c *Config) level() (zapcore.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "", "off", "none":
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(c.Log.Level)
}

// Logger builds the configured logger. An empty or "off" level yields a
// no-op logger.
func (c *Config) Logger() (*zap.Logger, error) {
	switch strings.ToLower(c.Log.Level) {
	case "", "off", "none":
		return zap.NewNop(), nil
	}
	lvl, err := c.level()
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	if c.Log.Encoding != "" {
		zc.Encoding = c.Log.Encoding
	}
	return zc.Build()
}
