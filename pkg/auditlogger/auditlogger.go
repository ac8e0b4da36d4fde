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

// Package auditlogger writes one JSON line per data mutation to a rotating file. A Logger is
// created by the caller and is a no-op when auditing is disabled.
package auditlogger

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
)

const (
	DefaultAuditLogDir = "/var/log/annotation-store"
	EnvPodName         = "POD_NAME"

	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 30
)

// Entry is a single audit record of a save or delete
type Entry struct {
	ID             string `json:"id"`
	Timestamp      string `json:"timestamp"`
	Component      string `json:"component"`
	Operation      string `json:"operation"`
	Collection     string `json:"collection"`
	OrganizationID string `json:"organizationId,omitempty"`
	EntityID       string `json:"entityId,omitempty"`
	Event          string `json:"event,omitempty"`
	StatusCode     int    `json:"statusCode,omitempty"`
}

// Logger appends audit entries to a writer. A nil *Logger discards everything.
type Logger struct {
	mu        sync.Mutex
	out       io.WriteCloser
	component string
	now       func() time.Time
	newID     func() string
}

// New opens the audit log described by cfg. It returns a nil Logger when auditing is disabled.
// The file lives at cfg.Path, or {DefaultAuditLogDir}/{POD_NAME or component}-audit.log.
func New(component string, cfg config.AuditConfig) (*Logger, error) {
	if component == "" {
		return nil, fmt.Errorf("component name cannot be empty")
	}

	if !cfg.Enabled {
		return nil, nil
	}

	logPath := cfg.Path
	if logPath == "" {
		podName := os.Getenv(EnvPodName)
		if podName == "" {
			podName = component
		}

		logPath = filepath.Join(DefaultAuditLogDir, podName+"-audit.log")
	}

	out := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    valueOrDefault(cfg.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: valueOrDefault(cfg.MaxBackups, defaultMaxBackups),
		MaxAge:     valueOrDefault(cfg.MaxAgeDays, defaultMaxAgeDays),
		Compress:   cfg.Compress,
	}

	slog.Info("Audit logging enabled", "path", logPath, "maxSizeMB", out.MaxSize)

	return NewWithWriter(component, out), nil
}

// NewWithWriter builds a Logger on an arbitrary writer
func NewWithWriter(component string, out io.WriteCloser) *Logger {
	return &Logger{
		out:       out,
		component: component,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

func valueOrDefault(value, def int) int {
	if value <= 0 {
		return def
	}

	return value
}

// Log stamps entry with an id, timestamp and component and writes it
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry.ID = l.newID()
	entry.Timestamp = l.now().UTC().Format(time.RFC3339)
	entry.Component = l.component

	if err := json.NewEncoder(l.out).Encode(entry); err != nil {
		slog.Error("audit: failed to write entry", "error", err)
	}
}

// Close flushes and closes the underlying file
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.out.Close()
}
