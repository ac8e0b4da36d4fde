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

import "fmt"

// AttachmentURLPrefix is the path under which saved attachments are served
const AttachmentURLPrefix = "/api/velt/attachments/get/"

// PartialAttachment is the reference to an attachment embedded in a comment
type PartialAttachment struct {
	URL          string `json:"url" bson:"url"`
	Name         string `json:"name" bson:"name"`
	AttachmentID int    `json:"attachmentId" bson:"attachmentId"`
}

// AttachmentMetadata scopes an attachment to a tenant and, optionally, to the annotation it belongs to
type AttachmentMetadata struct {
	OrganizationID      string `json:"organizationId,omitempty" bson:"organizationId,omitempty"`
	DocumentID          string `json:"documentId,omitempty" bson:"documentId,omitempty"`
	FolderID            string `json:"folderId,omitempty" bson:"folderId,omitempty"`
	AttachmentID        *int   `json:"attachmentId,omitempty" bson:"attachmentId,omitempty"`
	CommentAnnotationID string `json:"commentAnnotationId,omitempty" bson:"commentAnnotationId,omitempty"`
	APIKey              string `json:"apiKey,omitempty" bson:"apiKey,omitempty"`
}

// Attachment is a stored file. File holds the base64-encoded content.
type Attachment struct {
	AttachmentID *int                `json:"attachmentId" bson:"attachmentId"`
	File         string              `json:"file" bson:"file"`
	Name         string              `json:"name,omitempty" bson:"name,omitempty"`
	MimeType     string              `json:"mimeType,omitempty" bson:"mimeType,omitempty"`
	Metadata     *AttachmentMetadata `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// SaveAttachmentData is returned by a successful attachment save
type SaveAttachmentData struct {
	URL string `json:"url"`
}

// AttachmentURL returns the path an attachment is served from
func AttachmentURL(attachmentID int) string {
	return fmt.Sprintf("%s%d", AttachmentURLPrefix, attachmentID)
}

// SaveAttachmentRequest upserts one attachment
type SaveAttachmentRequest struct {
	Attachment *Attachment         `json:"attachment"`
	Metadata   *AttachmentMetadata `json:"metadata,omitempty"`
	Event      ResolverAction      `json:"event,omitempty"`
}

// DeleteAttachmentRequest removes one attachment. AttachmentID is a pointer so that a missing id
// can be told apart from id 0.
type DeleteAttachmentRequest struct {
	AttachmentID *int                `json:"attachmentId"`
	Metadata     *AttachmentMetadata `json:"metadata,omitempty"`
	Event        ResolverAction      `json:"event,omitempty"`
}
