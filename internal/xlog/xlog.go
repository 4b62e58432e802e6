/*
Copyright (C) 2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package xlog is the daemon's single structured-logging entry point,
// replacing the teacher's bare fmt.Print/log calls with zap's sugared API
// everywhere a store component reports an event worth a field-keyed line
// (frame_id, topic, context_id, processor).
package xlog

import (
	"go.uber.org/zap"
)

// New builds the daemon's production logger: JSON to stderr at the given
// level ("debug", "info", "warn", "error"; defaults to "info" on a bad
// value).
func New(level string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		// fall back to a Nop logger rather than fail the daemon over logging setup.
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// Safe returns l unchanged, or a no-op logger if l is nil, so every store
// component can log unconditionally instead of nil-checking a logger field.
func Safe(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
