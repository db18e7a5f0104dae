// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Evochora is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package xlog is Evochora's internal leveled logger: key/value leveled
// calls over the standard library's structured logger, with no
// configuration surface of its own. Sink selection and verbosity
// configuration are owned by the outer application, not by this package.
package xlog

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetHandler replaces the underlying slog handler. The simulation harness
// that embeds the core may call this once at startup; the core itself never
// does.
func SetHandler(h slog.Handler) {
	logger = slog.New(h)
}

// Debug logs diagnostic detail not needed in normal operation.
func Debug(msg string, args ...any) { logger.Debug(msg, args...) }

// Info logs a notable, non-error event.
func Info(msg string, args ...any) { logger.Info(msg, args...) }

// Warn logs a recoverable problem, such as a plugin or birth handler
// error, that the tick continues past.
func Warn(msg string, args ...any) { logger.Warn(msg, args...) }

// Error logs a problem serious enough to note but that still does not abort
// the tick (e.g. a FatalOrganismError being recorded after the organism is
// killed).
func Error(msg string, args ...any) { logger.Error(msg, args...) }
