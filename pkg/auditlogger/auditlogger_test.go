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

package auditlogger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []Entry

	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var entry Entry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))

		entries = append(entries, entry)
	}

	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		component   string
		cfg         config.AuditConfig
		expectNil   bool
		expectError bool
	}{
		{
			name:      "enabled with explicit path",
			component: "annotation-store",
			cfg:       config.AuditConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "audit.log")},
		},
		{
			name:      "disabled returns nil logger",
			component: "annotation-store",
			cfg:       config.AuditConfig{},
			expectNil: true,
		},
		{
			name:        "empty component name returns error",
			component:   "",
			cfg:         config.AuditConfig{Enabled: true},
			expectNil:   true,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.component, tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			if tt.expectNil {
				assert.Nil(t, logger)
			} else {
				require.NotNil(t, logger)
				assert.NoError(t, logger.Close())
			}
		})
	}
}

func TestLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	logger, err := New("annotation-store", config.AuditConfig{Enabled: true, Path: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Log(Entry{
		Operation:      "save",
		Collection:     "comment_annotations",
		OrganizationID: "org-123",
		EntityID:       "ann-1",
		Event:          "comment_annotation.add",
		StatusCode:     200,
	})
	logger.Log(Entry{
		Operation:  "delete",
		Collection: "attachments",
		EntityID:   "42",
		StatusCode: 404,
	})

	require.NoError(t, logger.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "annotation-store", first.Component)
	assert.Equal(t, "save", first.Operation)
	assert.Equal(t, "org-123", first.OrganizationID)
	assert.Equal(t, 200, first.StatusCode)
	assert.NotEmpty(t, first.Timestamp)

	_, err = uuid.Parse(first.ID)
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, entries[1].ID)

	assert.Equal(t, "delete", entries[1].Operation)
	assert.Empty(t, entries[1].OrganizationID)
}

func TestNilLoggerIsNoop(t *testing.T) {
	var logger *Logger

	assert.NotPanics(t, func() {
		logger.Log(Entry{Operation: "save"})
	})
	assert.NoError(t, logger.Close())
}
