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

package testutils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/query"
)

func uniqueIndex(field string) datastore.IndexModel {
	return datastore.IndexModel{
		Keys:   []datastore.IndexKey{{Field: field, Order: datastore.Ascending}},
		Unique: true,
	}
}

func TestMemoryStore_UniqueIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.CreateIndex(ctx, "attachments", uniqueIndex("attachmentId"))
	require.NoError(t, err)

	_, err = store.InsertOne(ctx, "attachments", map[string]interface{}{"attachmentId": 1})
	require.NoError(t, err)

	_, err = store.InsertOne(ctx, "attachments", map[string]interface{}{"attachmentId": 1})
	require.Error(t, err)
	assert.Equal(t, datastore.ErrorTypeInsert, datastore.TypeOf(err))

	upsert := &datastore.UpdateOptions{Upsert: true}
	filter := query.New().Build(query.And(
		query.Eq("attachmentId", 1),
		query.Eq("metadata.organizationId", "org-2"),
	))

	_, err = store.UpdateOne(ctx, "attachments", filter, query.NewUpdate().Set("name", "a.png"), upsert)
	require.Error(t, err)
	assert.Equal(t, datastore.ErrorTypeUpdate, datastore.TypeOf(err))

	_, err = store.InsertOne(ctx, "attachments", map[string]interface{}{"attachmentId": 2})
	require.NoError(t, err)

	_, err = store.UpdateOne(ctx, "attachments",
		query.New().Build(query.Eq("attachmentId", 2)), query.NewUpdate().Set("attachmentId", 1), nil)
	require.Error(t, err)

	// documents without the indexed field are not constrained
	_, err = store.InsertOne(ctx, "attachments", map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	_, err = store.InsertOne(ctx, "attachments", map[string]interface{}{"name": "y"})
	require.NoError(t, err)

	assert.Len(t, store.Documents("attachments"), 4)
}

func TestMemoryStore_NonUniqueIndexAllowsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.CreateIndex(ctx, "users", datastore.IndexModel{
		Keys: []datastore.IndexKey{{Field: "organizationId", Order: datastore.Ascending}},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := store.InsertOne(ctx, "users", map[string]interface{}{"organizationId": "org-1"})
		require.NoError(t, err)
	}

	assert.Len(t, store.Documents("users"), 2)
}
