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

// ReactionAnnotation is a single reaction placed by a user
type ReactionAnnotation struct {
	AnnotationID string       `json:"annotationId" bson:"annotationId"`
	Metadata     *Metadata    `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Icon         string       `json:"icon,omitempty" bson:"icon,omitempty"`
	User         *PartialUser `json:"user,omitempty" bson:"user,omitempty"`
}

// AnnotationKey returns the unique annotation id
func (a ReactionAnnotation) AnnotationKey() string {
	return a.AnnotationID
}

// GetMetadata returns the tenant metadata, which may be nil
func (a ReactionAnnotation) GetMetadata() *Metadata {
	return a.Metadata
}

// WithIdentity returns a copy keyed by id and carrying metadata
func (a ReactionAnnotation) WithIdentity(id string, metadata *Metadata) ReactionAnnotation {
	a.AnnotationID = id
	a.Metadata = metadata

	return a
}

// UpdateFields returns the top-level fields written by a save
func (a ReactionAnnotation) UpdateFields() map[string]interface{} {
	fields := map[string]interface{}{
		"annotationId": a.AnnotationID,
		"metadata":     a.Metadata,
	}

	if a.Icon != "" {
		fields["icon"] = a.Icon
	}

	if a.User != nil {
		fields["user"] = a.User
	}

	return fields
}

// GetReactionRequest selects reaction annotations of one organization
type GetReactionRequest struct {
	OrganizationID        string   `json:"organizationId"`
	ReactionAnnotationIDs []string `json:"reactionAnnotationIds,omitempty"`
	DocumentIDs           []string `json:"documentIds,omitempty"`
	FolderID              string   `json:"folderId,omitempty"`
	AllDocuments          *bool    `json:"allDocuments,omitempty"`
}

// SaveReactionRequest upserts reaction annotations keyed by annotation id
type SaveReactionRequest struct {
	ReactionAnnotation map[string]ReactionAnnotation `json:"reactionAnnotation"`
	Metadata           *Metadata                     `json:"metadata,omitempty"`
	Event              ResolverAction                `json:"event,omitempty"`
}

// DeleteReactionRequest removes one reaction annotation
type DeleteReactionRequest struct {
	ReactionAnnotationID string         `json:"reactionAnnotationId"`
	Metadata             *Metadata      `json:"metadata,omitempty"`
	Event                ResolverAction `json:"event,omitempty"`
}
