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
	"log/slog"
	"time"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/metrics"
)

// InstrumentedAdapter decorates a StoreAdapter with operation counters and latency histograms
type InstrumentedAdapter struct {
	inner StoreAdapter
}

// NewInstrumentedAdapter wraps inner. Wrapping an already instrumented adapter is a no-op.
func NewInstrumentedAdapter(inner StoreAdapter) StoreAdapter {
	if _, ok := inner.(*InstrumentedAdapter); ok {
		return inner
	}

	return &InstrumentedAdapter{inner: inner}
}

// Unwrap returns the decorated adapter
func (a *InstrumentedAdapter) Unwrap() StoreAdapter {
	return a.inner
}

func (a *InstrumentedAdapter) observe(collection, operation string, start time.Time, err error) {
	provider := string(a.inner.Provider())

	status := metrics.StatusSuccess
	if err != nil && !IsNotFoundError(err) {
		status = metrics.StatusError

		slog.Debug("Store operation failed",
			"provider", provider,
			"collection", collection,
			"operation", operation,
			"errorType", TypeOf(err),
			"error", err)
	}

	metrics.StoreOperationsTotal.WithLabelValues(provider, collection, operation, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(provider, collection, operation).
		Observe(time.Since(start).Seconds())
}

func (a *InstrumentedAdapter) Find(
	ctx context.Context, collection string, filter QueryBuilder, opts *FindOptions,
) (Cursor, error) {
	start := time.Now()
	cursor, err := a.inner.Find(ctx, collection, filter, opts)
	a.observe(collection, "find", start, err)

	return cursor, err
}

func (a *InstrumentedAdapter) FindOne(
	ctx context.Context, collection string, filter QueryBuilder, opts *FindOneOptions,
) (SingleResult, error) {
	start := time.Now()
	result, err := a.inner.FindOne(ctx, collection, filter, opts)
	a.observe(collection, "find_one", start, err)

	return result, err
}

func (a *InstrumentedAdapter) InsertOne(
	ctx context.Context, collection string, document interface{},
) (*InsertOneResult, error) {
	start := time.Now()
	result, err := a.inner.InsertOne(ctx, collection, document)
	a.observe(collection, "insert_one", start, err)

	return result, err
}

func (a *InstrumentedAdapter) UpdateOne(
	ctx context.Context, collection string, filter QueryBuilder, update UpdateBuilder, opts *UpdateOptions,
) (*UpdateResult, error) {
	start := time.Now()
	result, err := a.inner.UpdateOne(ctx, collection, filter, update, opts)
	a.observe(collection, "update_one", start, err)

	return result, err
}

func (a *InstrumentedAdapter) UpdateMany(
	ctx context.Context, collection string, filter QueryBuilder, update UpdateBuilder,
) (*UpdateResult, error) {
	start := time.Now()
	result, err := a.inner.UpdateMany(ctx, collection, filter, update)
	a.observe(collection, "update_many", start, err)

	return result, err
}

func (a *InstrumentedAdapter) DeleteOne(
	ctx context.Context, collection string, filter QueryBuilder,
) (*DeleteResult, error) {
	start := time.Now()
	result, err := a.inner.DeleteOne(ctx, collection, filter)
	a.observe(collection, "delete_one", start, err)

	return result, err
}

func (a *InstrumentedAdapter) DeleteMany(
	ctx context.Context, collection string, filter QueryBuilder,
) (*DeleteResult, error) {
	start := time.Now()
	result, err := a.inner.DeleteMany(ctx, collection, filter)
	a.observe(collection, "delete_many", start, err)

	return result, err
}

func (a *InstrumentedAdapter) CreateIndex(ctx context.Context, collection string, index IndexModel) (string, error) {
	start := time.Now()
	name, err := a.inner.CreateIndex(ctx, collection, index)
	a.observe(collection, "create_index", start, err)

	return name, err
}

func (a *InstrumentedAdapter) Raw() interface{} {
	return a.inner.Raw()
}

func (a *InstrumentedAdapter) Ping(ctx context.Context) error {
	return a.inner.Ping(ctx)
}

func (a *InstrumentedAdapter) Close(ctx context.Context) error {
	return a.inner.Close(ctx)
}

func (a *InstrumentedAdapter) Provider() DataStoreProvider {
	return a.inner.Provider()
}
