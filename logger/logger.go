// Copyright 2023 Google LLC
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

// Package logger wraps log/slog with the five-level severity scheme
// (TRACE/DEBUG/INFO/WARNING/ERROR) the rest of this module's ambient stack
// expects, grounded on the teacher's internal/logger package.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/agentfs/agentfs-core/cfg"
)

// TRACE sits one level below slog's built-in Debug so Tracef calls can be
// filtered independently of Debugf ones.
const levelTrace = slog.Level(-8)

var (
	programLevel  = new(slog.LevelVar)
	defaultLogger = slog.New(newHandler(os.Stderr, programLevel, "text"))
)

func newHandler(w io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				lvl := a.Value.Any().(slog.Level)
				a.Key = "severity"
				a.Value = slog.StringValue(severityName(lvl))
			}
			return a
		},
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func severityName(lvl slog.Level) string {
	switch {
	case lvl < slog.LevelDebug:
		return "TRACE"
	case lvl < slog.LevelInfo:
		return "DEBUG"
	case lvl < slog.LevelWarn:
		return "INFO"
	case lvl < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func severityLevel(s cfg.LogSeverity) slog.Level {
	switch s {
	case cfg.SeverityTrace:
		return levelTrace
	case cfg.SeverityDebug:
		return slog.LevelDebug
	case cfg.SeverityWarning:
		return slog.LevelWarn
	case cfg.SeverityError:
		return slog.LevelError
	case cfg.SeverityOff:
		return slog.Level(1 << 20)
	default:
		return slog.LevelInfo
	}
}

// Init configures the package-level logger according to the logging
// section of a cfg.Config. core.New does not call it; the agentfsctl demo
// command calls it once at startup.
func Init(c cfg.LoggingConfig) {
	programLevel.Set(severityLevel(c.Severity))
	defaultLogger = slog.New(newHandler(os.Stderr, programLevel, c.Format))
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), levelTrace, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}
