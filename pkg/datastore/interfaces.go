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
)

// StoreAdapter is the capability interface every storage engine implements.
// Each operation is scoped to one named collection; services depend only on this interface.
type StoreAdapter interface {
	// Query operations
	Find(ctx context.Context, collection string, filter QueryBuilder, opts *FindOptions) (Cursor, error)
	FindOne(ctx context.Context, collection string, filter QueryBuilder, opts *FindOneOptions) (SingleResult, error)

	// Write operations
	InsertOne(ctx context.Context, collection string, document interface{}) (*InsertOneResult, error)
	UpdateOne(
		ctx context.Context, collection string, filter QueryBuilder, update UpdateBuilder, opts *UpdateOptions,
	) (*UpdateResult, error)
	UpdateMany(ctx context.Context, collection string, filter QueryBuilder, update UpdateBuilder) (*UpdateResult, error)
	DeleteOne(ctx context.Context, collection string, filter QueryBuilder) (*DeleteResult, error)
	DeleteMany(ctx context.Context, collection string, filter QueryBuilder) (*DeleteResult, error)

	// Index management
	CreateIndex(ctx context.Context, collection string, index IndexModel) (string, error)

	// Raw returns the engine handle (*mongo.Database or *sql.DB) for engine-specific work
	Raw() interface{}

	// Connection management
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	// Provider identification
	Provider() DataStoreProvider
}

// QueryBuilder interface for database-agnostic queries
type QueryBuilder interface {
	ToMongo() map[string]interface{}
	ToSQL() (string, []interface{})
}

// UpdateBuilder interface for database-agnostic updates
type UpdateBuilder interface {
	ToMongo() map[string]interface{}
	ToSQL() (string, []interface{})
}

// SingleResult represents a single document result
type SingleResult interface {
	Decode(v interface{}) error
	Err() error
}

// Cursor represents a query result cursor
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v interface{}) error
	Close(ctx context.Context) error
	All(ctx context.Context, results interface{}) error
	Err() error
}

// IndexProvisioner creates the indexes a freshly opened store needs
type IndexProvisioner interface {
	EnsureIndexes(ctx context.Context, adapter StoreAdapter) error
}
