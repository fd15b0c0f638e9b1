// Package logging builds the zap loggers used across Centelha.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/centelha-ai/centelha/pkg/config"
)

// New builds a zap logger from the logging section of the config.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	switch strings.ToLower(cfg.Mode) {
	case "prod", "production", "":
		zcfg = zap.NewProductionConfig()
	case "dev", "development":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("logging: unsupported mode %q", cfg.Mode)
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	// stdout carries command output; logs go to stderr.
	zcfg.OutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}
	return logger.With(zap.String("component", "centelha")), nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logging: unsupported level %q", s)
	}
}

// Redact returns a field identifying a secret by a short hash so the secret
// itself never reaches the log sink.
func Redact(key, secret string) zap.Field {
	if secret == "" {
		return zap.String(key, "")
	}
	sum := sha256.Sum256([]byte(secret))
	return zap.String(key, "hash:"+hex.EncodeToString(sum[:])[:12])
}
