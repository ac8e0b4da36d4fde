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

// Package model defines the typed entities, requests and response envelope of the annotation store.
// Every struct carries matching bson and json tags so that documents round-trip through both
// MongoDB and the JSONB store unchanged.
package model

// Metadata scopes a document to a tenant. OrganizationID is the isolation boundary.
type Metadata struct {
	APIKey               string `json:"apiKey,omitempty" bson:"apiKey,omitempty"`
	DocumentID           string `json:"documentId,omitempty" bson:"documentId,omitempty"`
	ClientDocumentID     string `json:"clientDocumentId,omitempty" bson:"clientDocumentId,omitempty"`
	OrganizationID       string `json:"organizationId,omitempty" bson:"organizationId,omitempty"`
	ClientOrganizationID string `json:"clientOrganizationId,omitempty" bson:"clientOrganizationId,omitempty"`
	FolderID             string `json:"folderId,omitempty" bson:"folderId,omitempty"`
	VeltFolderID         string `json:"veltFolderId,omitempty" bson:"veltFolderId,omitempty"`
}

// ResolverAction names the client event that triggered a save or delete
type ResolverAction string

const (
	ActionCommentAnnotationAdd    ResolverAction = "comment_annotation.add"
	ActionCommentAnnotationDelete ResolverAction = "comment_annotation.delete"
	ActionCommentAdd              ResolverAction = "comment.add"
	ActionCommentDelete           ResolverAction = "comment.delete"
	ActionCommentUpdate           ResolverAction = "comment.update"
	ActionReactionAdd             ResolverAction = "reaction.add"
	ActionReactionDelete          ResolverAction = "reaction.delete"
	ActionAttachmentAdd           ResolverAction = "attachment.add"
	ActionAttachmentDelete        ResolverAction = "attachment.delete"
)

var knownActions = map[ResolverAction]struct{}{
	ActionCommentAnnotationAdd:    {},
	ActionCommentAnnotationDelete: {},
	ActionCommentAdd:              {},
	ActionCommentDelete:           {},
	ActionCommentUpdate:           {},
	ActionReactionAdd:             {},
	ActionReactionDelete:          {},
	ActionAttachmentAdd:           {},
	ActionAttachmentDelete:        {},
}

// Known reports whether a is one of the defined actions. Unknown actions are carried verbatim.
func (a ResolverAction) Known() bool {
	_, ok := knownActions[a]
	return ok
}

// PartialUser references a user by id
type PartialUser struct {
	UserID string `json:"userId" bson:"userId"`
}

// TaggedUserContact is a user mentioned in a comment
type TaggedUserContact struct {
	UserID  string       `json:"userId" bson:"userId"`
	Contact *PartialUser `json:"contact,omitempty" bson:"contact,omitempty"`
	Text    string       `json:"text,omitempty" bson:"text,omitempty"`
}
