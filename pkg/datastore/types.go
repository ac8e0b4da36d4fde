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

// DataStoreProvider defines the supported datastore types
type DataStoreProvider string

const (
	ProviderMongoDB    DataStoreProvider = "mongodb"
	ProviderPostgreSQL DataStoreProvider = "postgresql"
)

// Document represents a database-agnostic document as a map.
type Document map[string]interface{}

// SortOrder is the direction of an index key or sort field
type SortOrder int

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

// SortField is one key of an ordered sort
type SortField struct {
	Field string
	Order SortOrder
}

// IndexKey is one field of a (possibly compound) index
type IndexKey struct {
	Field string
	Order SortOrder
}

// IndexModel describes an index to create on a collection
type IndexModel struct {
	Name       string
	Keys       []IndexKey
	Unique     bool
	Background bool
}

// Fields returns the key field names in order
func (m IndexModel) Fields() []string {
	fields := make([]string, len(m.Keys))
	for i, key := range m.Keys {
		fields[i] = key.Field
	}

	return fields
}

// FindOptions holds options for Find operations
type FindOptions struct {
	Projection map[string]int
	Sort       []SortField
	Limit      *int64
}

// FindOneOptions holds options for FindOne operations
type FindOneOptions struct {
	Projection map[string]int
}

// UpdateOptions holds options for Update operations
type UpdateOptions struct {
	Upsert bool
}

// InsertOneResult represents the result of an insert operation
type InsertOneResult struct {
	InsertedID interface{}
}

// UpdateResult represents the result of an update operation
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
	UpsertedID    interface{}
}

// DeleteResult represents the result of a delete operation
type DeleteResult struct {
	DeletedCount int64
}
