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
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/query"
)

type commentDoc struct {
	AnnotationID string `json:"annotationId"`
	Status       string `json:"status"`
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return NewAdapter(db), mock
}

func TestAdapter_Find(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	limit := int64(5)

	mock.ExpectQuery(`SELECT document FROM "comment_annotations" ` +
		`WHERE document->'metadata'->>'organizationId' = $1 ` +
		`ORDER BY document->>'lastUpdated' DESC LIMIT 5`).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).
			AddRow([]byte(`{"annotationId":"a1","status":"open"}`)).
			AddRow([]byte(`{"annotationId":"a2","status":"resolved"}`)))

	filter := query.New().Build(query.Eq("metadata.organizationId", "org-1"))

	cursor, err := adapter.Find(context.Background(), "comment_annotations", filter, &datastore.FindOptions{
		Projection: map[string]int{"_id": 0},
		Sort:       []datastore.SortField{{Field: "lastUpdated", Order: datastore.Descending}},
		Limit:      &limit,
	})
	require.NoError(t, err)

	var docs []commentDoc
	require.NoError(t, cursor.All(context.Background(), &docs))

	require.Len(t, docs, 2)
	assert.Equal(t, "a1", docs[0].AnnotationID)
	assert.Equal(t, "resolved", docs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FindWithoutFilter(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(`SELECT document FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow([]byte(`{"userId":"u-1"}`)))

	cursor, err := adapter.Find(context.Background(), "users", query.New(), nil)
	require.NoError(t, err)

	count := 0

	for cursor.Next(context.Background()) {
		var doc map[string]interface{}
		require.NoError(t, cursor.Decode(&doc))
		assert.Equal(t, "u-1", doc["userId"])

		count++
	}

	require.NoError(t, cursor.Err())
	require.NoError(t, cursor.Close(context.Background()))
	assert.Equal(t, 1, count)
}

func TestAdapter_FindError(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(`SELECT document FROM "users"`).WillReturnError(errors.New("connection reset"))

	_, err := adapter.Find(context.Background(), "users", nil, nil)
	require.Error(t, err)
	assert.True(t, datastore.IsDatabaseError(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAdapter_FindOne(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectQuery(`SELECT document FROM "attachments" ` +
			`WHERE (document->>'attachmentId' = $1) AND (document->'metadata'->>'organizationId' = $2) LIMIT 1`).
			WithArgs(42, "org-1").
			WillReturnRows(sqlmock.NewRows([]string{"document"}).
				AddRow([]byte(`{"attachmentId":42,"name":"diagram.png"}`)))

		filter := query.New().Build(query.And(
			query.Eq("attachmentId", 42),
			query.Eq("metadata.organizationId", "org-1"),
		))

		result, err := adapter.FindOne(context.Background(), "attachments", filter, nil)
		require.NoError(t, err)
		require.NoError(t, result.Err())

		var doc map[string]interface{}
		require.NoError(t, result.Decode(&doc))
		assert.Equal(t, float64(42), doc["attachmentId"])
		assert.Equal(t, "diagram.png", doc["name"])
	})

	t.Run("not found", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectQuery(`SELECT document FROM "attachments" WHERE document->>'attachmentId' = $1 LIMIT 1`).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"document"}))

		result, err := adapter.FindOne(context.Background(), "attachments",
			query.New().Build(query.Eq("attachmentId", 7)), nil)
		require.NoError(t, err)
		assert.True(t, datastore.IsNotFoundError(result.Err()))

		var doc map[string]interface{}
		assert.True(t, datastore.IsNotFoundError(result.Decode(&doc)))
	})

	t.Run("query error", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectQuery(`SELECT document FROM "attachments" LIMIT 1`).
			WillReturnError(errors.New("relation does not exist"))

		_, err := adapter.FindOne(context.Background(), "attachments", query.New(), nil)
		require.Error(t, err)
		assert.False(t, datastore.IsNotFoundError(err))
		assert.True(t, datastore.IsDatabaseError(err))
	})
}

func TestAdapter_InsertOne(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(`INSERT INTO "users" (document) VALUES ($1) RETURNING id`).
		WithArgs([]byte(`{"userId":"u-1"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	result, err := adapter.InsertOne(context.Background(), "users", map[string]interface{}{"userId": "u-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.InsertedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UpdateOne(t *testing.T) {
	const updateSQL = `UPDATE "reaction_annotations" ` +
		`SET document = jsonb_set(document, '{icon}', $2::jsonb, true), updated_at = NOW() ` +
		`WHERE id = (SELECT id FROM "reaction_annotations" WHERE document->>'annotationId' = $1 LIMIT 1)`

	t.Run("matches existing row", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectExec(updateSQL).
			WithArgs("reaction-1", `"heart"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := adapter.UpdateOne(context.Background(), "reaction_annotations",
			query.New().Build(query.Eq("annotationId", "reaction-1")),
			query.NewUpdate().Set("icon", "heart"), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.MatchedCount)
		assert.Equal(t, int64(1), result.ModifiedCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("upsert updates existing row", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(updateSQL).
			WithArgs("reaction-1", `"heart"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := adapter.UpdateOne(context.Background(), "reaction_annotations",
			query.New().Build(query.Eq("annotationId", "reaction-1")),
			query.NewUpdate().Set("icon", "heart"), &datastore.UpdateOptions{Upsert: true})
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.MatchedCount)
		assert.Equal(t, int64(0), result.UpsertedCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("upsert inserts seeded document", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "reaction_annotations" ` +
			`SET document = jsonb_set(document, '{icon}', $3::jsonb, true), updated_at = NOW() ` +
			`WHERE id = (SELECT id FROM "reaction_annotations" ` +
			`WHERE (document->>'annotationId' = $1) AND (document->'metadata'->>'organizationId' = $2) LIMIT 1)`).
			WithArgs("reaction-1", "org-1", `"heart"`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO "reaction_annotations" (document) VALUES ($1) RETURNING id`).
			WithArgs([]byte(`{"annotationId":"reaction-1","metadata":{"organizationId":"org-1"}}`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
		mock.ExpectExec(`UPDATE "reaction_annotations" ` +
			`SET document = jsonb_set(document, '{icon}', $1::jsonb, true), updated_at = NOW() WHERE id = $2`).
			WithArgs(`"heart"`, int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		filter := query.New().Build(query.And(
			query.Eq("annotationId", "reaction-1"),
			query.Eq("metadata.organizationId", "org-1"),
		))

		result, err := adapter.UpdateOne(context.Background(), "reaction_annotations", filter,
			query.NewUpdate().Set("icon", "heart"), &datastore.UpdateOptions{Upsert: true})
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.MatchedCount)
		assert.Equal(t, int64(1), result.UpsertedCount)
		assert.Equal(t, int64(9), result.UpsertedID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("upsert rolls back on insert failure", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectBegin()
		mock.ExpectExec(updateSQL).
			WithArgs("reaction-1", `"heart"`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO "reaction_annotations" (document) VALUES ($1) RETURNING id`).
			WillReturnError(errors.New("duplicate key value violates unique constraint"))
		mock.ExpectRollback()

		_, err := adapter.UpdateOne(context.Background(), "reaction_annotations",
			query.New().Build(query.Eq("annotationId", "reaction-1")),
			query.NewUpdate().Set("icon", "heart"), &datastore.UpdateOptions{Upsert: true})
		require.Error(t, err)

		var datastoreErr *datastore.DatastoreError
		require.ErrorAs(t, err, &datastoreErr)
		assert.Equal(t, datastore.ErrorTypeInsert, datastoreErr.Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec error", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectExec(updateSQL).WillReturnError(errors.New("deadlock detected"))

		_, err := adapter.UpdateOne(context.Background(), "reaction_annotations",
			query.New().Build(query.Eq("annotationId", "reaction-1")),
			query.NewUpdate().Set("icon", "heart"), nil)
		require.Error(t, err)

		var datastoreErr *datastore.DatastoreError
		require.ErrorAs(t, err, &datastoreErr)
		assert.Equal(t, datastore.ErrorTypeUpdate, datastoreErr.Type)
		assert.Equal(t, "reaction_annotations", datastoreErr.Metadata["collection"])
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		adapter, _ := newMockAdapter(t)

		_, err := adapter.UpdateOne(context.Background(), "reaction_annotations",
			query.New().Build(query.Eq("annotationId", "reaction-1")), query.NewUpdate(), nil)
		require.Error(t, err)
		assert.True(t, datastore.IsValidationError(err))
	})
}

func TestAdapter_UpdateMany(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(`UPDATE "users" SET document = jsonb_set(document, '{color}', $2::jsonb, true), ` +
		`updated_at = NOW() WHERE document->>'organizationId' = $1`).
		WithArgs("org-1", `"#fff"`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	result, err := adapter.UpdateMany(context.Background(), "users",
		query.New().Build(query.Eq("organizationId", "org-1")),
		query.NewUpdate().Set("color", "#fff"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.MatchedCount)
}

func TestAdapter_Delete(t *testing.T) {
	t.Run("delete one", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectExec(`DELETE FROM "comment_annotations" WHERE id = ` +
			`(SELECT id FROM "comment_annotations" WHERE document->>'annotationId' = $1 LIMIT 1)`).
			WithArgs("ann-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := adapter.DeleteOne(context.Background(), "comment_annotations",
			query.New().Build(query.Eq("annotationId", "ann-1")))
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.DeletedCount)
	})

	t.Run("delete many", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectExec(`DELETE FROM "comment_annotations" WHERE document->'metadata'->>'organizationId' = $1`).
			WithArgs("org-404").
			WillReturnResult(sqlmock.NewResult(0, 0))

		result, err := adapter.DeleteMany(context.Background(), "comment_annotations",
			query.New().Build(query.Eq("metadata.organizationId", "org-404")))
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.DeletedCount)
	})

	t.Run("delete error", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectExec(`DELETE FROM "attachments" WHERE id = (SELECT id FROM "attachments" LIMIT 1)`).
			WillReturnError(errors.New("permission denied"))

		_, err := adapter.DeleteOne(context.Background(), "attachments", query.New())
		require.Error(t, err)

		var datastoreErr *datastore.DatastoreError
		require.ErrorAs(t, err, &datastoreErr)
		assert.Equal(t, datastore.ErrorTypeDelete, datastoreErr.Type)
	})
}

func TestAdapter_CreateIndex(t *testing.T) {
	t.Run("unique single field", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectExec(`CREATE UNIQUE INDEX IF NOT EXISTS "comment_annotations_annotationId_idx" ` +
			`ON "comment_annotations" ((document->>'annotationId'))`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		name, err := adapter.CreateIndex(context.Background(), "comment_annotations", datastore.IndexModel{
			Keys:       []datastore.IndexKey{{Field: "annotationId", Order: datastore.Ascending}},
			Unique:     true,
			Background: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "comment_annotations_annotationId_idx", name)
	})

	t.Run("compound with explicit name", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "org_document" ON "comment_annotations" ` +
			`((document->'metadata'->>'organizationId'), (document->'metadata'->>'documentId') DESC)`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		name, err := adapter.CreateIndex(context.Background(), "comment_annotations", datastore.IndexModel{
			Name: "org_document",
			Keys: []datastore.IndexKey{
				{Field: "metadata.organizationId", Order: datastore.Ascending},
				{Field: "metadata.documentId", Order: datastore.Descending},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "org_document", name)
	})

	t.Run("no keys", func(t *testing.T) {
		adapter, _ := newMockAdapter(t)

		_, err := adapter.CreateIndex(context.Background(), "users", datastore.IndexModel{})
		require.Error(t, err)
		assert.True(t, datastore.IsValidationError(err))
	})

	t.Run("failure", func(t *testing.T) {
		adapter, mock := newMockAdapter(t)

		mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "users_userId_idx" ON "users" ((document->>'userId'))`).
			WillReturnError(errors.New("could not create unique index"))

		_, err := adapter.CreateIndex(context.Background(), "users", datastore.IndexModel{
			Keys: []datastore.IndexKey{{Field: "userId", Order: datastore.Ascending}},
		})
		require.Error(t, err)

		var datastoreErr *datastore.DatastoreError
		require.ErrorAs(t, err, &datastoreErr)
		assert.Equal(t, datastore.ErrorTypeIndex, datastoreErr.Type)
		assert.Equal(t, []string{"userId"}, datastoreErr.Metadata["fields"])
	})
}

func TestIndexNameTruncation(t *testing.T) {
	name := indexName("a_very_long_collection_name_for_comment_annotations", datastore.IndexModel{
		Keys: []datastore.IndexKey{
			{Field: "metadata.organizationId"},
			{Field: "metadata.documentId"},
		},
	})

	assert.Len(t, name, 63)
}

func TestAdapter_PingAndClose(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	adapter := NewAdapter(db)

	mock.ExpectPing()
	assert.NoError(t, adapter.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("server closed the connection"))
	err = adapter.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, datastore.IsConnectionError(err))

	assert.Equal(t, datastore.ProviderPostgreSQL, adapter.Provider())
	assert.Same(t, db, adapter.Raw())

	mock.ExpectClose()
	require.NoError(t, adapter.Close(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "attachments"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "users"`).WillReturnError(errors.New("permission denied"))

	err = CreateTables(context.Background(), db, []string{"attachments", "users"})
	require.Error(t, err)

	var datastoreErr *datastore.DatastoreError
	require.ErrorAs(t, err, &datastoreErr)
	assert.Equal(t, "users", datastoreErr.Metadata["table"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetNested(t *testing.T) {
	doc := map[string]interface{}{}
	setNested(doc, "metadata.organizationId", "org-1")
	setNested(doc, "metadata.documentId", "doc-1")
	setNested(doc, "userId", "u-1")

	assert.Equal(t, map[string]interface{}{
		"metadata": map[string]interface{}{"organizationId": "org-1", "documentId": "doc-1"},
		"userId":   "u-1",
	}, doc)
}
