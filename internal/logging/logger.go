// Package logging builds the zap logger shared by the focusmute instance.
//
// Logs always go to stderr: the CLI prints tables and -o json/yaml output on
// stdout, and scripts parse it. A started-at-logon instance has no console on
// Windows, so a log file can be added as a second sink.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, the line format and an optional log file
type Config struct {
	Level   string // debug, info, warn or error
	Console bool   // plain text lines instead of JSON
	File    string
}

func DefaultConfig() Config {
	return Config{Level: "info"}
}

// New builds the instance logger. Every line carries the process ID so
// lines from a restarted instance can be told apart in a shared file.
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	sinks := []string{"stderr"}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		sinks = append(sinks, cfg.File)
	}

	encoding := "json"
	if cfg.Console {
		encoding = "console"
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Console,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig(cfg.Console),
		OutputPaths:       sinks,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Console,
		InitialFields:     map[string]interface{}{"pid": os.Getpid()},
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named("focusmute"), nil
}

// ParseLevel accepts zap level names in any case
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

func encoderConfig(console bool) zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder

	if console {
		// no color codes: conhost without VT mode prints them raw
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}
	return enc
}
