// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

// Package logger configures the process-wide structured logger
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLogLevel selects the minimum level: debug, info, warn or error
const EnvLogLevel = "LOG_LEVEL"

// ParseLevel maps a level name to a slog.Level. Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewStructuredLogger returns a JSON logger writing to w, tagged with module and version
func NewStructuredLogger(w io.Writer, module, version string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: level == slog.LevelDebug,
		Level:     level,
	})

	return slog.New(handler).With("module", module, "version", version)
}

// SetDefaultStructuredLogger installs a JSON logger on stderr as the slog default.
// The level is read from LOG_LEVEL.
func SetDefaultStructuredLogger(module, version string) {
	slog.SetDefault(NewStructuredLogger(os.Stderr, module, version, ParseLevel(os.Getenv(EnvLogLevel))))
}
