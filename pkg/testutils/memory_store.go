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

// Package testutils provides an in-memory StoreAdapter for exercising services without a database.
package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
)

// ProviderMemory identifies the in-memory adapter
const ProviderMemory datastore.DataStoreProvider = "memory"

// MemoryStore is a StoreAdapter keeping JSON-normalised documents in process memory.
// Filters are evaluated from their MongoDB rendering, supporting equality, $in, $ne, $gt,
// $lt, $and and $or on dotted paths.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string][]map[string]interface{}
	indexes     map[string][]datastore.IndexModel
	errors      map[string]error
	nextID      int
	closed      bool
	pingErr     error
	CloseCalls  int
}

var _ datastore.StoreAdapter = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]map[string]interface{}),
		indexes:     make(map[string][]datastore.IndexModel),
		errors:      make(map[string]error),
	}
}

// FailOperation makes every subsequent call of operation (for example "find" or "update_one") return err
func (s *MemoryStore) FailOperation(operation string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.errors, operation)
		return
	}

	s.errors[operation] = err
}

// SetPingError controls the result of Ping
func (s *MemoryStore) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pingErr = err
}

// Seed inserts raw documents into collection, bypassing error injection
func (s *MemoryStore) Seed(collection string, docs ...map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		s.insertLocked(collection, doc)
	}
}

// Documents returns copies of every document in collection
func (s *MemoryStore) Documents(collection string) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]map[string]interface{}, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, deepCopy(doc))
	}

	return docs
}

// Indexes returns the index models created on collection
func (s *MemoryStore) Indexes(collection string) []datastore.IndexModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]datastore.IndexModel(nil), s.indexes[collection]...)
}

// Closed reports whether Close has been called
func (s *MemoryStore) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *MemoryStore) Find(
	ctx context.Context, collection string, filter datastore.QueryBuilder, opts *datastore.FindOptions,
) (datastore.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errors["find"]; err != nil {
		return nil, err
	}

	matches := s.matchLocked(collection, filter)

	if opts != nil {
		sortDocuments(matches, opts.Sort)

		if opts.Limit != nil && *opts.Limit > 0 && int64(len(matches)) > *opts.Limit {
			matches = matches[:*opts.Limit]
		}
	}

	return &memoryCursor{docs: matches, pos: -1}, nil
}

func (s *MemoryStore) FindOne(
	ctx context.Context, collection string, filter datastore.QueryBuilder, opts *datastore.FindOneOptions,
) (datastore.SingleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errors["find_one"]; err != nil {
		return nil, err
	}

	matches := s.matchLocked(collection, filter)
	if len(matches) == 0 {
		return &memoryResult{err: datastore.NewDocumentNotFoundError(ProviderMemory, "no document matched filter", nil)}, nil
	}

	return &memoryResult{doc: matches[0]}, nil
}

func (s *MemoryStore) InsertOne(
	ctx context.Context, collection string, document interface{},
) (*datastore.InsertOneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errors["insert_one"]; err != nil {
		return nil, err
	}

	doc, err := normalize(document)
	if err != nil {
		return nil, datastore.NewSerializationError(ProviderMemory, "failed to normalise document", err)
	}

	if field, ok := s.duplicateLocked(collection, doc, nil); ok {
		return nil, datastore.NewInsertError(ProviderMemory, "duplicate key on unique index", nil).
			WithMetadata("collection", collection).WithMetadata("field", field)
	}

	id := s.insertLocked(collection, doc)

	return &datastore.InsertOneResult{InsertedID: id}, nil
}

func (s *MemoryStore) UpdateOne(
	ctx context.Context, collection string, filter datastore.QueryBuilder, update datastore.UpdateBuilder,
	opts *datastore.UpdateOptions,
) (*datastore.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errors["update_one"]; err != nil {
		return nil, err
	}

	set, err := setDocument(update)
	if err != nil {
		return nil, err
	}

	for i, doc := range s.collections[collection] {
		if matches(doc, filter.ToMongo()) {
			if err := s.replaceLocked(collection, i, set); err != nil {
				return nil, err
			}

			return &datastore.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}

	if opts == nil || !opts.Upsert {
		return &datastore.UpdateResult{}, nil
	}

	seed := make(map[string]interface{})
	for field, value := range equalities(filter.ToMongo()) {
		setPath(seed, field, value)
	}

	applySet(seed, set)

	if field, ok := s.duplicateLocked(collection, seed, nil); ok {
		return nil, datastore.NewUpdateError(ProviderMemory, "duplicate key on unique index", nil).
			WithMetadata("collection", collection).WithMetadata("field", field)
	}

	id := s.insertLocked(collection, seed)

	return &datastore.UpdateResult{UpsertedCount: 1, UpsertedID: id}, nil
}

func (s *MemoryStore) UpdateMany(
	ctx context.Context, collection string, filter datastore.QueryBuilder, update datastore.UpdateBuilder,
) (*datastore.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errors["update_many"]; err != nil {
		return nil, err
	}

	set, err := setDocument(update)
	if err != nil {
		return nil, err
	}

	result := &datastore.UpdateResult{}

	for i, doc := range s.collections[collection] {
		if matches(doc, filter.ToMongo()) {
			if err := s.replaceLocked(collection, i, set); err != nil {
				return result, err
			}

			result.MatchedCount++
			result.ModifiedCount++
		}
	}

	return result, nil
}

func (s *MemoryStore) DeleteOne(
	ctx context.Context, collection string, filter datastore.QueryBuilder,
) (*datastore.DeleteResult, error) {
	return s.delete(collection, filter, "delete_one", 1)
}

func (s *MemoryStore) DeleteMany(
	ctx context.Context, collection string, filter datastore.QueryBuilder,
) (*datastore.DeleteResult, error) {
	return s.delete(collection, filter, "delete_many", -1)
}

func (s *MemoryStore) delete(
	collection string, filter datastore.QueryBuilder, operation string, limit int,
) (*datastore.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errors[operation]; err != nil {
		return nil, err
	}

	kept := make([]map[string]interface{}, 0, len(s.collections[collection]))
	deleted := 0

	for _, doc := range s.collections[collection] {
		if (limit < 0 || deleted < limit) && matches(doc, filter.ToMongo()) {
			deleted++
			continue
		}

		kept = append(kept, doc)
	}

	s.collections[collection] = kept

	return &datastore.DeleteResult{DeletedCount: int64(deleted)}, nil
}

func (s *MemoryStore) CreateIndex(ctx context.Context, collection string, index datastore.IndexModel) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errors["create_index:"+collection]; err != nil {
		return "", err
	}

	if err := s.errors["create_index"]; err != nil {
		return "", err
	}

	name := index.Name
	if name == "" {
		parts := make([]string, 0, len(index.Keys))
		for _, key := range index.Keys {
			parts = append(parts, fmt.Sprintf("%s_%d", key.Field, key.Order))
		}

		name = strings.Join(parts, "_")
	}

	for _, existing := range s.indexes[collection] {
		if reflect.DeepEqual(existing.Keys, index.Keys) {
			return name, nil
		}
	}

	s.indexes[collection] = append(s.indexes[collection], index)

	return name, nil
}

func (s *MemoryStore) Raw() interface{} {
	return s
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pingErr
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.CloseCalls++

	return nil
}

func (s *MemoryStore) Provider() datastore.DataStoreProvider {
	return ProviderMemory
}

// replaceLocked applies set to the i-th document unless the result would collide on a unique index
func (s *MemoryStore) replaceLocked(collection string, i int, set map[string]interface{}) error {
	docs := s.collections[collection]

	updated := deepCopy(docs[i])
	applySet(updated, set)

	if field, ok := s.duplicateLocked(collection, updated, docs[i]); ok {
		return datastore.NewUpdateError(ProviderMemory, "duplicate key on unique index", nil).
			WithMetadata("collection", collection).WithMetadata("field", field)
	}

	docs[i] = updated

	return nil
}

// duplicateLocked reports the first unique index on which candidate collides with a stored
// document other than self. Documents missing an indexed field are not checked.
func (s *MemoryStore) duplicateLocked(
	collection string, candidate map[string]interface{}, self map[string]interface{},
) (string, bool) {
	for _, index := range s.indexes[collection] {
		if !index.Unique {
			continue
		}

		key, ok := indexKey(candidate, index)
		if !ok {
			continue
		}

		for _, doc := range s.collections[collection] {
			if self != nil && reflect.ValueOf(doc).Pointer() == reflect.ValueOf(self).Pointer() {
				continue
			}

			if existing, ok := indexKey(doc, index); ok && equal(existing, key) {
				return strings.Join(index.Fields(), ","), true
			}
		}
	}

	return "", false
}

func indexKey(doc map[string]interface{}, index datastore.IndexModel) ([]interface{}, bool) {
	key := make([]interface{}, 0, len(index.Keys))

	for _, field := range index.Keys {
		value, ok := lookup(doc, field.Field)
		if !ok {
			return nil, false
		}

		key = append(key, value)
	}

	return key, true
}

func (s *MemoryStore) insertLocked(collection string, doc map[string]interface{}) string {
	s.nextID++
	id := fmt.Sprintf("%024d", s.nextID)

	stored := deepCopy(doc)
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = id
	}

	s.collections[collection] = append(s.collections[collection], stored)

	return id
}

func (s *MemoryStore) matchLocked(collection string, filter datastore.QueryBuilder) []map[string]interface{} {
	var mongoFilter map[string]interface{}
	if filter != nil {
		mongoFilter = filter.ToMongo()
	}

	result := make([]map[string]interface{}, 0)

	for _, doc := range s.collections[collection] {
		if matches(doc, mongoFilter) {
			result = append(result, deepCopy(doc))
		}
	}

	return result
}

// matches evaluates a MongoDB-style filter against doc
func matches(doc map[string]interface{}, filter map[string]interface{}) bool {
	for key, expected := range filter {
		switch key {
		case "$and":
			for _, sub := range toSlice(expected) {
				subFilter, _ := sub.(map[string]interface{})
				if !matches(doc, subFilter) {
					return false
				}
			}
		case "$or":
			matched := false

			for _, sub := range toSlice(expected) {
				subFilter, _ := sub.(map[string]interface{})
				if matches(doc, subFilter) {
					matched = true
					break
				}
			}

			if !matched {
				return false
			}
		default:
			actual, present := lookup(doc, key)
			if !matchField(actual, present, expected) {
				return false
			}
		}
	}

	return true
}

func matchField(actual interface{}, present bool, expected interface{}) bool {
	ops, isOps := expected.(map[string]interface{})
	if !isOps || !hasOperator(ops) {
		return present && equal(actual, expected)
	}

	for op, operand := range ops {
		switch op {
		case "$in":
			found := false

			for _, candidate := range toSlice(operand) {
				if present && equal(actual, candidate) {
					found = true
					break
				}
			}

			if !found {
				return false
			}
		case "$ne":
			if present && equal(actual, operand) {
				return false
			}
		case "$gt", "$lt":
			a, aok := toFloat(actual)
			b, bok := toFloat(operand)

			if !present || !aok || !bok {
				return false
			}

			if (op == "$gt" && a <= b) || (op == "$lt" && a >= b) {
				return false
			}
		default:
			return false
		}
	}

	return true
}

func hasOperator(m map[string]interface{}) bool {
	for key := range m {
		if strings.HasPrefix(key, "$") {
			return true
		}
	}

	return false
}

// equalities collects the plain equality fields of a filter, as an upsert would copy them
func equalities(filter map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for key, value := range filter {
		if key == "$and" {
			for _, sub := range toSlice(value) {
				if subFilter, ok := sub.(map[string]interface{}); ok {
					for k, v := range equalities(subFilter) {
						result[k] = v
					}
				}
			}

			continue
		}

		if strings.HasPrefix(key, "$") {
			continue
		}

		if ops, ok := value.(map[string]interface{}); ok && hasOperator(ops) {
			continue
		}

		result[key] = value
	}

	return result
}

func setDocument(update datastore.UpdateBuilder) (map[string]interface{}, error) {
	rendered := update.ToMongo()

	set, ok := rendered["$set"].(map[string]interface{})
	if !ok {
		return nil, datastore.NewValidationError(ProviderMemory, "only $set updates are supported", nil)
	}

	return set, nil
}

func applySet(doc map[string]interface{}, set map[string]interface{}) {
	for field, value := range set {
		setPath(doc, field, value)
	}
}

func setPath(doc map[string]interface{}, path string, value interface{}) {
	normalized, err := normalizeValue(value)
	if err != nil {
		normalized = value
	}

	parts := strings.Split(path, ".")
	current := doc

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}

		current = next
	}

	current[parts[len(parts)-1]] = normalized
}

func lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = doc

	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func equal(a, b interface{}) bool {
	na, errA := normalizeValue(a)
	nb, errB := normalizeValue(b)

	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}

	return reflect.DeepEqual(na, nb)
}

func toSlice(value interface{}) []interface{} {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}

	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out
}

func toFloat(value interface{}) (float64, bool) {
	normalized, err := normalizeValue(value)
	if err != nil {
		return 0, false
	}

	f, ok := normalized.(float64)

	return f, ok
}

func sortDocuments(docs []map[string]interface{}, fields []datastore.SortField) {
	if len(fields) == 0 {
		return
	}

	sort.SliceStable(docs, func(i, j int) bool {
		for _, field := range fields {
			a, _ := lookup(docs[i], field.Field)
			b, _ := lookup(docs[j], field.Field)

			as, bs := fmt.Sprint(a), fmt.Sprint(b)
			if as == bs {
				continue
			}

			if field.Order == datastore.Descending {
				return as > bs
			}

			return as < bs
		}

		return false
	})
}

// normalize converts any JSON-serialisable value into a plain map
func normalize(document interface{}) (map[string]interface{}, error) {
	value, err := normalizeValue(document)
	if err != nil {
		return nil, err
	}

	doc, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("document must serialise to an object, got %T", value)
	}

	return doc, nil
}

func normalizeValue(value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func deepCopy(doc map[string]interface{}) map[string]interface{} {
	copied, err := normalize(doc)
	if err != nil {
		return doc
	}

	return copied
}

type memoryCursor struct {
	docs []map[string]interface{}
	pos  int
}

func (c *memoryCursor) Next(ctx context.Context) bool {
	c.pos++
	return c.pos < len(c.docs)
}

func (c *memoryCursor) Decode(v interface{}) error {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return fmt.Errorf("cursor is not positioned on a document")
	}

	return decodeInto(c.docs[c.pos], v)
}

func (c *memoryCursor) Close(ctx context.Context) error {
	return nil
}

func (c *memoryCursor) All(ctx context.Context, results interface{}) error {
	return decodeInto(c.docs, results)
}

func (c *memoryCursor) Err() error {
	return nil
}

type memoryResult struct {
	doc map[string]interface{}
	err error
}

func (r *memoryResult) Decode(v interface{}) error {
	if r.err != nil {
		return r.err
	}

	return decodeInto(r.doc, v)
}

func (r *memoryResult) Err() error {
	return r.err
}

func decodeInto(source interface{}, target interface{}) error {
	data, err := json.Marshal(source)
	if err != nil {
		return datastore.NewSerializationError(ProviderMemory, "failed to encode document", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return datastore.NewSerializationError(ProviderMemory, "failed to decode document", err)
	}

	return nil
}
