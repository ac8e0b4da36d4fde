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

package datastore

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
)

// ConnectionManager owns the single pooled connection of a process. It is created by the
// caller at startup and handed to every component that needs the store.
type ConnectionManager struct {
	cfg         *config.Config
	provisioner IndexProvisioner
	opener      ProviderFactory
	instrument  bool

	mu      sync.RWMutex
	adapter StoreAdapter

	indexMu            sync.Mutex
	indexesProvisioned bool
}

// ManagerOption configures a ConnectionManager
type ManagerOption func(*ConnectionManager)

// WithOpener replaces the provider registry lookup used to open connections
func WithOpener(opener ProviderFactory) ManagerOption {
	return func(m *ConnectionManager) {
		m.opener = opener
	}
}

// WithoutInstrumentation returns adapters without the metrics decorator
func WithoutInstrumentation() ManagerOption {
	return func(m *ConnectionManager) {
		m.instrument = false
	}
}

// NewConnectionManager creates a manager for cfg. The provisioner may be nil.
func NewConnectionManager(cfg *config.Config, provisioner IndexProvisioner, opts ...ManagerOption) *ConnectionManager {
	m := &ConnectionManager{
		cfg:         cfg,
		provisioner: provisioner,
		opener:      Open,
		instrument:  true,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Acquire returns the live adapter, opening the connection and provisioning indexes on first use.
// A failed open leaves no partial state behind, so the next call starts from scratch.
func (m *ConnectionManager) Acquire(ctx context.Context) (StoreAdapter, error) {
	m.mu.RLock()
	adapter := m.adapter
	m.mu.RUnlock()

	if adapter != nil {
		return adapter, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have connected while we waited for the lock
	if m.adapter != nil {
		return m.adapter, nil
	}

	opened, err := m.opener(ctx, m.cfg)
	if err != nil {
		provider := DataStoreProvider(m.cfg.Database.Type)

		slog.Error("Failed to open datastore connection", "provider", provider, "error", err)

		var datastoreErr *DatastoreError
		if errors.As(err, &datastoreErr) {
			return nil, err
		}

		return nil, NewConnectionError(provider, "failed to connect to database", err)
	}

	if m.instrument {
		opened = NewInstrumentedAdapter(opened)
	}

	m.ensureIndexes(ctx, opened)
	m.adapter = opened

	slog.Info("Datastore connection established", "provider", opened.Provider())

	return opened, nil
}

// ensureIndexes runs the provisioner once per live connection. Failures are logged only.
func (m *ConnectionManager) ensureIndexes(ctx context.Context, adapter StoreAdapter) {
	if m.provisioner == nil {
		return
	}

	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	if m.indexesProvisioned {
		return
	}

	if err := m.provisioner.EnsureIndexes(ctx, adapter); err != nil {
		slog.Warn("Index provisioning completed with errors", "error", err)
	}

	m.indexesProvisioned = true
}

// Release closes the connection if open and clears all cached state
func (m *ConnectionManager) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.indexMu.Lock()
	m.indexesProvisioned = false
	m.indexMu.Unlock()

	if m.adapter == nil {
		return nil
	}

	adapter := m.adapter
	m.adapter = nil

	if err := adapter.Close(ctx); err != nil {
		return NewConnectionError(adapter.Provider(), "failed to close database connection", err)
	}

	slog.Info("Datastore connection released", "provider", adapter.Provider())

	return nil
}

// Connected reports whether a live adapter is cached
func (m *ConnectionManager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.adapter != nil
}

// IndexesProvisioned reports whether provisioning has run for the current connection
func (m *ConnectionManager) IndexesProvisioned() bool {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	return m.indexesProvisioned
}

// Healthy pings the store when connected. An unopened manager is considered healthy.
func (m *ConnectionManager) Healthy(ctx context.Context) error {
	m.mu.RLock()
	adapter := m.adapter
	m.mu.RUnlock()

	if adapter == nil {
		return nil
	}

	return adapter.Ping(ctx)
}

// Ready requires an open connection that answers a ping
func (m *ConnectionManager) Ready(ctx context.Context) error {
	m.mu.RLock()
	adapter := m.adapter
	m.mu.RUnlock()

	if adapter == nil {
		return NewConnectionError(DataStoreProvider(m.cfg.Database.Type), "datastore connection not established", nil)
	}

	return adapter.Ping(ctx)
}
