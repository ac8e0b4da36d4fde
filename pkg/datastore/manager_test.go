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

package datastore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/metrics"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/query"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/testutils"
)

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) EnsureIndexes(ctx context.Context, adapter datastore.StoreAdapter) error {
	args := m.Called(ctx, adapter)
	return args.Error(0)
}

func testConfig() *config.Config {
	return &config.Config{Database: config.DatabaseConfig{
		Type:         config.DatabaseTypeMongoDB,
		Host:         "localhost",
		Username:     "u",
		Password:     "p",
		AuthDatabase: "admin",
		DatabaseName: "velt",
	}}
}

func countingOpener(store *testutils.MemoryStore, opens *int32) datastore.ProviderFactory {
	return func(ctx context.Context, cfg *config.Config) (datastore.StoreAdapter, error) {
		atomic.AddInt32(opens, 1)
		return store, nil
	}
}

func TestConnectionManager_AcquireCachesAdapter(t *testing.T) {
	store := testutils.NewMemoryStore()

	var opens int32

	provisioner := &mockProvisioner{}
	provisioner.On("EnsureIndexes", mock.Anything, mock.Anything).Return(nil).Once()

	manager := datastore.NewConnectionManager(testConfig(), provisioner,
		datastore.WithOpener(countingOpener(store, &opens)))

	ctx := context.Background()

	first, err := manager.Acquire(ctx)
	require.NoError(t, err)

	second, err := manager.Acquire(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&opens))
	assert.True(t, manager.Connected())
	assert.True(t, manager.IndexesProvisioned())
	provisioner.AssertExpectations(t)
}

func TestConnectionManager_ConcurrentAcquireOpensOnce(t *testing.T) {
	store := testutils.NewMemoryStore()

	var opens int32

	manager := datastore.NewConnectionManager(testConfig(), nil,
		datastore.WithOpener(countingOpener(store, &opens)), datastore.WithoutInstrumentation())

	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := manager.Acquire(context.Background())
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&opens))
}

func TestConnectionManager_ProvisioningFailureIsNotFatal(t *testing.T) {
	store := testutils.NewMemoryStore()

	var opens int32

	provisioner := &mockProvisioner{}
	provisioner.On("EnsureIndexes", mock.Anything, mock.Anything).Return(errors.New("index conflict")).Once()

	manager := datastore.NewConnectionManager(testConfig(), provisioner,
		datastore.WithOpener(countingOpener(store, &opens)))

	adapter, err := manager.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, adapter)
	assert.True(t, manager.IndexesProvisioned())
}

func TestConnectionManager_OpenFailureLeavesNoState(t *testing.T) {
	store := testutils.NewMemoryStore()
	attempts := 0

	opener := func(ctx context.Context, cfg *config.Config) (datastore.StoreAdapter, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("server selection timeout")
		}

		return store, nil
	}

	manager := datastore.NewConnectionManager(testConfig(), nil,
		datastore.WithOpener(opener), datastore.WithoutInstrumentation())

	_, err := manager.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, datastore.IsConnectionError(err))
	assert.True(t, datastore.IsDatabaseError(err))
	assert.False(t, manager.Connected())

	adapter, err := manager.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, store, adapter)
	assert.Equal(t, 2, attempts)
}

func TestConnectionManager_OpenFailureKeepsDatastoreError(t *testing.T) {
	expected := datastore.NewDatastoreError(
		datastore.ErrorTypeAuthentication, datastore.ProviderMongoDB, "bad credentials", nil)

	opener := func(ctx context.Context, cfg *config.Config) (datastore.StoreAdapter, error) {
		return nil, expected
	}

	manager := datastore.NewConnectionManager(testConfig(), nil, datastore.WithOpener(opener))

	_, err := manager.Acquire(context.Background())
	assert.Same(t, expected, err)
}

func TestConnectionManager_ReleaseClearsState(t *testing.T) {
	store := testutils.NewMemoryStore()

	var opens int32

	provisioner := &mockProvisioner{}
	provisioner.On("EnsureIndexes", mock.Anything, mock.Anything).Return(nil).Twice()

	manager := datastore.NewConnectionManager(testConfig(), provisioner,
		datastore.WithOpener(countingOpener(store, &opens)))

	ctx := context.Background()

	_, err := manager.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, manager.Release(ctx))
	assert.True(t, store.Closed())
	assert.False(t, manager.Connected())
	assert.False(t, manager.IndexesProvisioned())

	// Releasing twice is harmless
	require.NoError(t, manager.Release(ctx))
	assert.Equal(t, 1, store.CloseCalls)

	_, err = manager.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&opens))
	provisioner.AssertExpectations(t)
}

func TestConnectionManager_HealthAndReadiness(t *testing.T) {
	store := testutils.NewMemoryStore()

	var opens int32

	manager := datastore.NewConnectionManager(testConfig(), nil,
		datastore.WithOpener(countingOpener(store, &opens)))

	ctx := context.Background()

	assert.NoError(t, manager.Healthy(ctx))
	assert.Error(t, manager.Ready(ctx))

	_, err := manager.Acquire(ctx)
	require.NoError(t, err)
	assert.NoError(t, manager.Ready(ctx))

	store.SetPingError(errors.New("no primary"))
	assert.Error(t, manager.Healthy(ctx))
	assert.Error(t, manager.Ready(ctx))
}

func TestInstrumentedAdapter_RecordsOperations(t *testing.T) {
	store := testutils.NewMemoryStore()
	adapter := datastore.NewInstrumentedAdapter(store)

	assert.Same(t, adapter, datastore.NewInstrumentedAdapter(adapter))
	assert.Same(t, store, adapter.Raw())

	ctx := context.Background()
	collection := "instrumented_test_collection"

	success := metrics.StoreOperationsTotal.WithLabelValues(
		string(testutils.ProviderMemory), collection, "find", metrics.StatusSuccess)
	failure := metrics.StoreOperationsTotal.WithLabelValues(
		string(testutils.ProviderMemory), collection, "find", metrics.StatusError)

	before := testutil.ToFloat64(success)

	_, err := adapter.Find(ctx, collection, query.New().Build(query.Eq("a", 1)), nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(success))

	store.FailOperation("find", errors.New("boom"))

	beforeFailure := testutil.ToFloat64(failure)
	_, err = adapter.Find(ctx, collection, query.New(), nil)
	require.Error(t, err)
	assert.Equal(t, beforeFailure+1, testutil.ToFloat64(failure))
}
