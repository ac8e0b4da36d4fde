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

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// CommentID identifies a comment. Clients send it as a string or a number; it is stored as a string.
type CommentID string

// UnmarshalJSON accepts a JSON string or number
func (id *CommentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*id = CommentID(s)

		return nil
	}

	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("commentId must be a string or number: %w", err)
	}

	*id = CommentID(n.String())

	return nil
}

// UnmarshalBSONValue accepts documents written with a numeric commentId
func (id *CommentID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	value := bsoncore.Value{Type: t, Data: data}

	switch t {
	case bson.TypeString:
		*id = CommentID(value.StringValue())
	case bson.TypeInt32:
		*id = CommentID(strconv.FormatInt(int64(value.Int32()), 10))
	case bson.TypeInt64:
		*id = CommentID(strconv.FormatInt(value.Int64(), 10))
	case bson.TypeDouble:
		*id = CommentID(strconv.FormatFloat(value.Double(), 'f', -1, 64))
	case bson.TypeNull, bson.TypeUndefined:
		*id = ""
	default:
		return fmt.Errorf("cannot decode %s into commentId", t)
	}

	return nil
}

// Comment is a single message within a comment annotation
type Comment struct {
	CommentID          CommentID                 `json:"commentId" bson:"commentId"`
	CommentHTML        string                    `json:"commentHtml,omitempty" bson:"commentHtml,omitempty"`
	CommentText        string                    `json:"commentText,omitempty" bson:"commentText,omitempty"`
	Attachments        map[int]PartialAttachment `json:"attachments,omitempty" bson:"attachments,omitempty"`
	From               *PartialUser              `json:"from,omitempty" bson:"from,omitempty"`
	To                 []PartialUser             `json:"to,omitempty" bson:"to,omitempty"`
	TaggedUserContacts []TaggedUserContact       `json:"taggedUserContacts,omitempty" bson:"taggedUserContacts,omitempty"`
}

// CommentAnnotation is a thread of comments keyed by comment id
type CommentAnnotation struct {
	AnnotationID string             `json:"annotationId" bson:"annotationId"`
	Metadata     *Metadata          `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Comments     map[string]Comment `json:"comments,omitempty" bson:"comments,omitempty"`
}

// AnnotationKey returns the unique annotation id
func (a CommentAnnotation) AnnotationKey() string {
	return a.AnnotationID
}

// GetMetadata returns the tenant metadata, which may be nil
func (a CommentAnnotation) GetMetadata() *Metadata {
	return a.Metadata
}

// WithIdentity returns a copy keyed by id and carrying metadata
func (a CommentAnnotation) WithIdentity(id string, metadata *Metadata) CommentAnnotation {
	a.AnnotationID = id
	a.Metadata = metadata

	return a
}

// UpdateFields returns the top-level fields written by a save
func (a CommentAnnotation) UpdateFields() map[string]interface{} {
	fields := map[string]interface{}{
		"annotationId": a.AnnotationID,
		"metadata":     a.Metadata,
	}

	if a.Comments != nil {
		fields["comments"] = a.Comments
	}

	return fields
}

// GetCommentRequest selects comment annotations of one organization
type GetCommentRequest struct {
	OrganizationID       string   `json:"organizationId"`
	CommentAnnotationIDs []string `json:"commentAnnotationIds,omitempty"`
	DocumentIDs          []string `json:"documentIds,omitempty"`
	FolderID             string   `json:"folderId,omitempty"`
	AllDocuments         *bool    `json:"allDocuments,omitempty"`
}

// SaveCommentRequest upserts comment annotations keyed by annotation id
type SaveCommentRequest struct {
	CommentAnnotation map[string]CommentAnnotation `json:"commentAnnotation"`
	Event             ResolverAction               `json:"event,omitempty"`
	Metadata          *Metadata                    `json:"metadata,omitempty"`
	CommentID         string                       `json:"commentId,omitempty"`
}

// DeleteCommentRequest removes one comment annotation
type DeleteCommentRequest struct {
	CommentAnnotationID string         `json:"commentAnnotationId"`
	Metadata            *Metadata      `json:"metadata,omitempty"`
	Event               ResolverAction `json:"event,omitempty"`
}
