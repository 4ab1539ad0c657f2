// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging builds zap loggers from a small level/style configuration.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum log level emitted (debug, info, warn, error).
type Level string

// Style selects the encoder and output destination.
type Style string

const (
	StyleTerminal Style = "terminal" // colored console output for interactive use
	StyleJSON     Style = "json"     // structured JSON for log aggregation
	StyleNoop     Style = "noop"     // discard everything
)

// Config holds the logging configuration, typically sourced from viper.
type Config struct {
	Level Level
	Style Style
}

// NewLogger creates a zap logger from the config.
// Unknown levels default to info; unknown styles default to terminal.
func NewLogger(cfg *Config) *zap.Logger {
	if cfg == nil {
		cfg = &Config{}
	}

	if cfg.Style == StyleNoop {
		return zap.NewNop()
	}

	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(string(cfg.Level)); err == nil {
		level = parsed
	}

	var zapCfg zap.Config
	switch cfg.Style {
	case StyleJSON:
		zapCfg = zap.NewProductionConfig()
	default:
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		// Building only fails on invalid output paths, which we never set.
		return zap.NewNop()
	}
	return logger
}
