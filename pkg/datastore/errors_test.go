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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatastoreError_Error(t *testing.T) {
	cause := errors.New("socket closed")

	withCause := NewQueryError(ProviderMongoDB, "failed to find documents", cause)
	assert.Equal(t, "[mongodb:query] failed to find documents: socket closed", withCause.Error())
	assert.ErrorIs(t, withCause, cause)

	withoutCause := NewValidationError(ProviderPostgreSQL, "organizationId is required", nil)
	assert.Equal(t, "[postgresql:validation] organizationId is required", withoutCause.Error())
}

func TestDatastoreError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewDeleteError(ProviderMongoDB, "delete failed", nil))

	assert.ErrorIs(t, err, NewDeleteError(ProviderMongoDB, "", nil))
	assert.NotErrorIs(t, err, NewDeleteError(ProviderPostgreSQL, "", nil))
	assert.NotErrorIs(t, err, NewUpdateError(ProviderMongoDB, "", nil))
}

func TestDatastoreError_WithMetadata(t *testing.T) {
	err := NewIndexError(ProviderMongoDB, "failed to create index", nil).
		WithMetadata("collection", "users").
		WithMetadata("fields", []string{"userId"})

	assert.Equal(t, "users", err.Metadata["collection"])
	assert.Equal(t, []string{"userId"}, err.Metadata["fields"])

	bare := &DatastoreError{Type: ErrorTypeIndex}
	bare.WithMetadata("k", "v")
	assert.Equal(t, "v", bare.Metadata["k"])
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		isConnection bool
		isNotFound   bool
		isValidation bool
		isDatabase   bool
	}{
		{
			name:         "connection",
			err:          NewConnectionError(ProviderMongoDB, "dial failed", nil),
			isConnection: true,
			isDatabase:   true,
		},
		{
			name:         "timeout",
			err:          NewTimeoutError(ProviderMongoDB, "deadline", nil),
			isConnection: true,
			isDatabase:   true,
		},
		{
			name:       "query",
			err:        NewQueryError(ProviderMongoDB, "bad filter", nil),
			isDatabase: true,
		},
		{
			name:       "insert",
			err:        NewInsertError(ProviderPostgreSQL, "duplicate", nil),
			isDatabase: true,
		},
		{
			name:       "not found",
			err:        NewDocumentNotFoundError(ProviderMongoDB, "missing", nil),
			isNotFound: true,
		},
		{
			name:         "validation",
			err:          NewValidationError(ProviderMongoDB, "bad input", nil),
			isValidation: true,
		},
		{
			name: "configuration",
			err:  NewConfigurationError(ProviderMongoDB, "bad config", nil),
		},
		{
			name:       "wrapped serialization",
			err:        fmt.Errorf("decode: %w", NewSerializationError(ProviderMongoDB, "bad bson", nil)),
			isDatabase: true,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isConnection, IsConnectionError(tt.err))
			assert.Equal(t, tt.isNotFound, IsNotFoundError(tt.err))
			assert.Equal(t, tt.isValidation, IsValidationError(tt.err))
			assert.Equal(t, tt.isDatabase, IsDatabaseError(tt.err))
		})
	}
}

func TestIndexModel_Fields(t *testing.T) {
	model := IndexModel{Keys: []IndexKey{
		{Field: "metadata.organizationId", Order: Ascending},
		{Field: "metadata.documentId", Order: Ascending},
	}}

	assert.Equal(t, []string{"metadata.organizationId", "metadata.documentId"}, model.Fields())
}

func TestTypeOf(t *testing.T) {
	err := fmt.Errorf("saving comments: %w", NewUpdateError(ProviderMongoDB, "failed to update document", nil))

	assert.Equal(t, ErrorTypeUpdate, TypeOf(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}
