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

package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/query"
)

// Adapter implements datastore.StoreAdapter on PostgreSQL. Every collection is a table holding
// one JSONB document per row, and filters are rendered onto JSONB paths.
type Adapter struct {
	db *sql.DB
}

var _ datastore.StoreAdapter = (*Adapter)(nil)

// NewAdapter wraps an open database handle
func NewAdapter(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

// offsetRenderer is implemented by the query package builders
type offsetRenderer interface {
	ToSQLWithOffset(startParam int) (string, []interface{})
}

// equalityProvider exposes the equality fields an upsert seeds a new document with
type equalityProvider interface {
	Equalities() map[string]interface{}
}

// Find finds multiple documents. Projections are not applied because whole documents are returned.
func (a *Adapter) Find(
	ctx context.Context, collection string, filter datastore.QueryBuilder, opts *datastore.FindOptions,
) (datastore.Cursor, error) {
	where, args := whereClause(filter, 1)

	var sb strings.Builder

	fmt.Fprintf(&sb, "SELECT document FROM %s%s", pq.QuoteIdentifier(collection), where)

	if opts != nil {
		if len(opts.Sort) > 0 {
			parts := make([]string, 0, len(opts.Sort))

			for _, field := range opts.Sort {
				direction := "ASC"
				if field.Order == datastore.Descending {
					direction = "DESC"
				}

				parts = append(parts, fmt.Sprintf("%s %s", query.FieldToSQL(field.Field), direction))
			}

			sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
		}

		if opts.Limit != nil && *opts.Limit > 0 {
			fmt.Fprintf(&sb, " LIMIT %d", *opts.Limit)
		}
	}

	rows, err := a.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, datastore.NewQueryError(
			datastore.ProviderPostgreSQL,
			"failed to execute find query",
			err,
		).WithMetadata("collection", collection)
	}

	return &postgresqlCursor{rows: rows}, nil
}

// FindOne finds a single document. A miss is reported through the result, not the error.
func (a *Adapter) FindOne(
	ctx context.Context, collection string, filter datastore.QueryBuilder, opts *datastore.FindOneOptions,
) (datastore.SingleResult, error) {
	where, args := whereClause(filter, 1)
	sqlQuery := fmt.Sprintf("SELECT document FROM %s%s LIMIT 1", pq.QuoteIdentifier(collection), where)

	var data []byte

	err := a.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return &postgresqlSingleResult{err: datastore.NewDocumentNotFoundError(
			datastore.ProviderPostgreSQL,
			"no document matched filter",
			err,
		).WithMetadata("collection", collection)}, nil
	}

	if err != nil {
		return nil, datastore.NewQueryError(
			datastore.ProviderPostgreSQL,
			"failed to execute find one query",
			err,
		).WithMetadata("collection", collection)
	}

	return &postgresqlSingleResult{data: data}, nil
}

// InsertOne inserts a single document and returns the generated row id
func (a *Adapter) InsertOne(
	ctx context.Context, collection string, document interface{},
) (*datastore.InsertOneResult, error) {
	id, err := insertDocument(ctx, a.db, collection, document)
	if err != nil {
		return nil, err
	}

	return &datastore.InsertOneResult{InsertedID: id}, nil
}

// UpdateOne updates the first matching row. With opts.Upsert and no match, a document seeded
// from the filter's equality fields is inserted and the update applied to it, all in one transaction.
func (a *Adapter) UpdateOne(
	ctx context.Context, collection string, filter datastore.QueryBuilder, update datastore.UpdateBuilder,
	opts *datastore.UpdateOptions,
) (*datastore.UpdateResult, error) {
	table := pq.QuoteIdentifier(collection)
	where, whereArgs := whereClause(filter, 1)

	setClause, setArgs, err := renderUpdate(update, len(whereArgs)+1)
	if err != nil {
		return nil, err
	}

	updateSQL := fmt.Sprintf("UPDATE %s SET %s WHERE id = (SELECT id FROM %s%s LIMIT 1)",
		table, setClause, table, where)
	args := append(append([]interface{}{}, whereArgs...), setArgs...)

	upsert := opts != nil && opts.Upsert
	if !upsert {
		affected, err := execAffected(ctx, a.db, updateSQL, args)
		if err != nil {
			return nil, updateError(collection, err)
		}

		return &datastore.UpdateResult{MatchedCount: affected, ModifiedCount: affected}, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, updateError(collection, err)
	}

	result, err := upsertInTx(ctx, tx, collection, filter, update, updateSQL, args)
	if err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			slog.Warn("Failed to roll back upsert", "collection", collection, "error", rollbackErr)
		}

		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, updateError(collection, err)
	}

	return result, nil
}

func upsertInTx(
	ctx context.Context, tx *sql.Tx, collection string, filter datastore.QueryBuilder,
	update datastore.UpdateBuilder, updateSQL string, args []interface{},
) (*datastore.UpdateResult, error) {
	affected, err := execAffected(ctx, tx, updateSQL, args)
	if err != nil {
		return nil, updateError(collection, err)
	}

	if affected > 0 {
		return &datastore.UpdateResult{MatchedCount: affected, ModifiedCount: affected}, nil
	}

	seed := map[string]interface{}{}

	if provider, ok := filter.(equalityProvider); ok {
		for field, value := range provider.Equalities() {
			setNested(seed, field, value)
		}
	}

	id, err := insertDocument(ctx, tx, collection, seed)
	if err != nil {
		return nil, err
	}

	setClause, setArgs, err := renderUpdate(update, 1)
	if err != nil {
		return nil, err
	}

	applySQL := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		pq.QuoteIdentifier(collection), setClause, len(setArgs)+1)

	if _, err := execAffected(ctx, tx, applySQL, append(setArgs, id)); err != nil {
		return nil, updateError(collection, err)
	}

	return &datastore.UpdateResult{UpsertedCount: 1, UpsertedID: id}, nil
}

// UpdateMany updates every matching row
func (a *Adapter) UpdateMany(
	ctx context.Context, collection string, filter datastore.QueryBuilder, update datastore.UpdateBuilder,
) (*datastore.UpdateResult, error) {
	where, whereArgs := whereClause(filter, 1)

	setClause, setArgs, err := renderUpdate(update, len(whereArgs)+1)
	if err != nil {
		return nil, err
	}

	sqlQuery := fmt.Sprintf("UPDATE %s SET %s%s", pq.QuoteIdentifier(collection), setClause, where)

	affected, err := execAffected(ctx, a.db, sqlQuery, append(whereArgs, setArgs...))
	if err != nil {
		return nil, updateError(collection, err)
	}

	return &datastore.UpdateResult{MatchedCount: affected, ModifiedCount: affected}, nil
}

// DeleteOne deletes the first matching row
func (a *Adapter) DeleteOne(
	ctx context.Context, collection string, filter datastore.QueryBuilder,
) (*datastore.DeleteResult, error) {
	table := pq.QuoteIdentifier(collection)
	where, args := whereClause(filter, 1)
	sqlQuery := fmt.Sprintf("DELETE FROM %s WHERE id = (SELECT id FROM %s%s LIMIT 1)", table, table, where)

	affected, err := execAffected(ctx, a.db, sqlQuery, args)
	if err != nil {
		return nil, datastore.NewDeleteError(
			datastore.ProviderPostgreSQL,
			"failed to delete document",
			err,
		).WithMetadata("collection", collection)
	}

	return &datastore.DeleteResult{DeletedCount: affected}, nil
}

// DeleteMany deletes every matching row
func (a *Adapter) DeleteMany(
	ctx context.Context, collection string, filter datastore.QueryBuilder,
) (*datastore.DeleteResult, error) {
	where, args := whereClause(filter, 1)
	sqlQuery := fmt.Sprintf("DELETE FROM %s%s", pq.QuoteIdentifier(collection), where)

	affected, err := execAffected(ctx, a.db, sqlQuery, args)
	if err != nil {
		return nil, datastore.NewDeleteError(
			datastore.ProviderPostgreSQL,
			"failed to delete documents",
			err,
		).WithMetadata("collection", collection)
	}

	return &datastore.DeleteResult{DeletedCount: affected}, nil
}

// CreateIndex creates an expression index over the JSONB paths of the index keys.
// Background has no PostgreSQL equivalent inside IF NOT EXISTS creation and is ignored.
func (a *Adapter) CreateIndex(ctx context.Context, collection string, index datastore.IndexModel) (string, error) {
	if len(index.Keys) == 0 {
		return "", datastore.NewValidationError(datastore.ProviderPostgreSQL, "index must have at least one key", nil)
	}

	name := index.Name
	if name == "" {
		name = indexName(collection, index)
	}

	expressions := make([]string, 0, len(index.Keys))

	for _, key := range index.Keys {
		expr := fmt.Sprintf("(%s)", query.FieldToSQL(key.Field))
		if key.Order == datastore.Descending {
			expr += " DESC"
		}

		expressions = append(expressions, expr)
	}

	unique := ""
	if index.Unique {
		unique = "UNIQUE "
	}

	ddl := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, pq.QuoteIdentifier(name), pq.QuoteIdentifier(collection), strings.Join(expressions, ", "))

	if _, err := a.db.ExecContext(ctx, ddl); err != nil {
		return "", datastore.NewIndexError(
			datastore.ProviderPostgreSQL,
			"failed to create index",
			err,
		).WithMetadata("collection", collection).WithMetadata("fields", index.Fields())
	}

	return name, nil
}

// Raw returns the *sql.DB handle
func (a *Adapter) Raw() interface{} {
	return a.db
}

// Ping tests the database connection
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return datastore.NewConnectionError(datastore.ProviderPostgreSQL, "failed to ping database", err)
	}

	return nil
}

// Close closes the database connection
func (a *Adapter) Close(ctx context.Context) error {
	return a.db.Close()
}

// Provider returns the provider type
func (a *Adapter) Provider() datastore.DataStoreProvider {
	return datastore.ProviderPostgreSQL
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func execAffected(ctx context.Context, db execer, sqlQuery string, args []interface{}) (int64, error) {
	result, err := db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func insertDocument(ctx context.Context, db execer, collection string, document interface{}) (int64, error) {
	data, err := json.Marshal(document)
	if err != nil {
		return 0, datastore.NewSerializationError(
			datastore.ProviderPostgreSQL,
			"failed to marshal document",
			err,
		).WithMetadata("collection", collection)
	}

	sqlQuery := fmt.Sprintf("INSERT INTO %s (document) VALUES ($1) RETURNING id", pq.QuoteIdentifier(collection))

	var id int64
	if err := db.QueryRowContext(ctx, sqlQuery, data).Scan(&id); err != nil {
		return 0, datastore.NewInsertError(
			datastore.ProviderPostgreSQL,
			"failed to insert document",
			err,
		).WithMetadata("collection", collection)
	}

	return id, nil
}

func whereClause(filter datastore.QueryBuilder, startParam int) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var (
		where string
		args  []interface{}
	)

	if renderer, ok := filter.(offsetRenderer); ok {
		where, args = renderer.ToSQLWithOffset(startParam)
	} else {
		where, args = filter.ToSQL()
	}

	if where == "" {
		return "", nil
	}

	return " WHERE " + where, args
}

func renderUpdate(update datastore.UpdateBuilder, startParam int) (string, []interface{}, error) {
	var (
		setClause string
		args      []interface{}
	)

	if renderer, ok := update.(offsetRenderer); ok {
		setClause, args = renderer.ToSQLWithOffset(startParam)
	} else if startParam == 1 {
		setClause, args = update.ToSQL()
	} else {
		return "", nil, datastore.NewValidationError(
			datastore.ProviderPostgreSQL, "update builder does not support parameter offsets", nil)
	}

	if setClause == "" {
		return "", nil, datastore.NewValidationError(datastore.ProviderPostgreSQL, "update has no fields to set", nil)
	}

	return setClause, args, nil
}

func updateError(collection string, err error) error {
	var datastoreErr *datastore.DatastoreError
	if errors.As(err, &datastoreErr) {
		return err
	}

	return datastore.NewUpdateError(
		datastore.ProviderPostgreSQL,
		"failed to update document",
		err,
	).WithMetadata("collection", collection)
}

// setNested assigns value at a dotted path, creating intermediate objects
func setNested(doc map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	current := doc

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			current[part] = next
		}

		current = next
	}

	current[parts[len(parts)-1]] = value
}

func indexName(collection string, index datastore.IndexModel) string {
	parts := []string{collection}

	for _, field := range index.Fields() {
		parts = append(parts, strings.ReplaceAll(field, ".", "_"))
	}

	name := strings.Join(parts, "_") + "_idx"

	// PostgreSQL truncates identifiers at 63 bytes
	if len(name) > 63 {
		name = name[:63]
	}

	return name
}
