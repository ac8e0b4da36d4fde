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

package services

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/auditlogger"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/model"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/query"
)

const fieldAttachmentID = "attachmentId"

// AttachmentService stores attachment files and their tenant metadata
type AttachmentService struct {
	baseService
}

// NewAttachmentService creates an attachment service on the configured attachments collection
func NewAttachmentService(store StoreSource, cfg *config.Config, audit *auditlogger.Logger) *AttachmentService {
	return &AttachmentService{
		baseService: newBaseService("attachments", config.CollectionAttachments, store, cfg, audit),
	}
}

// GetAttachment returns one attachment of the organization. A miss, including an attachment of
// another organization, is a NOT_FOUND envelope. Validation and database failures are returned as errors.
func (s *AttachmentService) GetAttachment(
	ctx context.Context, organizationID string, attachmentID int,
) (model.Response[model.Attachment], error) {
	const operation = "get"

	if err := validateOrganizationID(organizationID); err != nil {
		s.observe(operation, http.StatusBadRequest)
		return model.Response[model.Attachment]{}, err
	}

	store, err := s.store.Acquire(ctx)
	if err != nil {
		s.observe(operation, http.StatusInternalServerError)
		return model.Response[model.Attachment]{}, wrapDatabaseError("getting attachment", err)
	}

	filter := query.New().Build(query.And(
		query.Eq(fieldAttachmentID, attachmentID),
		query.Eq(fieldOrganizationID, organizationID),
	))

	result, err := store.FindOne(ctx, s.collection, filter, nil)
	if err != nil {
		s.observe(operation, http.StatusInternalServerError)
		return model.Response[model.Attachment]{}, wrapDatabaseError("getting attachment", err)
	}

	var attachment model.Attachment
	if err := result.Decode(&attachment); err != nil {
		if datastore.IsNotFoundError(err) {
			s.observe(operation, http.StatusNotFound)
			return notFound[model.Attachment]("Attachment not found or does not belong to organization"), nil
		}

		s.observe(operation, http.StatusInternalServerError)

		return model.Response[model.Attachment]{}, wrapDatabaseError("getting attachment", err)
	}

	s.observe(operation, http.StatusOK)

	return model.OK(attachment), nil
}

// SaveAttachment upserts the attachment and returns the URL it is served from
func (s *AttachmentService) SaveAttachment(
	ctx context.Context, req model.SaveAttachmentRequest,
) (model.Response[model.SaveAttachmentData], error) {
	const operation = "save"

	if req.Metadata == nil || req.Metadata.OrganizationID == "" {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[model.SaveAttachmentData]("organizationId is required in metadata"), nil
	}

	if req.Attachment == nil {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[model.SaveAttachmentData]("attachment is required"), nil
	}

	if req.Attachment.AttachmentID == nil {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[model.SaveAttachmentData]("attachment.attachmentId is required"), nil
	}

	attachmentID := *req.Attachment.AttachmentID
	organizationID := req.Metadata.OrganizationID

	store, err := s.store.Acquire(ctx)
	if err != nil {
		s.observe(operation, http.StatusInternalServerError)
		return model.Response[model.SaveAttachmentData]{}, wrapDatabaseError("saving attachment", err)
	}

	filter := query.New().Build(query.And(
		query.Eq(fieldAttachmentID, attachmentID),
		query.Eq(fieldOrganizationID, organizationID),
	))
	update := query.NewUpdate().SetMultiple(attachmentFields(req.Attachment,
		stampAttachmentMetadata(req.Attachment.Metadata, req.Metadata, s.apiKey())))

	if _, err := store.UpdateOne(ctx, s.collection, filter, update, &datastore.UpdateOptions{Upsert: true}); err != nil {
		slog.Error("Failed to save attachment", "attachmentId", attachmentID, "organizationId", organizationID,
			"error", err)
		s.observe(operation, http.StatusInternalServerError)

		return model.Response[model.SaveAttachmentData]{}, wrapDatabaseError("saving attachment", err)
	}

	s.record(operation, organizationID, strconv.Itoa(attachmentID), req.Event)
	s.observe(operation, http.StatusOK)

	return model.OK(model.SaveAttachmentData{URL: model.AttachmentURL(attachmentID)}), nil
}

// DeleteAttachment removes an attachment by id alone
func (s *AttachmentService) DeleteAttachment(
	ctx context.Context, req model.DeleteAttachmentRequest,
) model.Response[model.Empty] {
	const operation = "delete"

	if req.AttachmentID == nil {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[model.Empty]("attachmentId is required")
	}

	attachmentID := *req.AttachmentID

	deleted, err := s.deleteOne(ctx, attachmentID)
	if err != nil {
		slog.Error("Failed to delete attachment", "attachmentId", attachmentID, "error", err)

		response := failureResponse[model.Empty]("deleting attachment", err)
		s.observe(operation, response.StatusCode)

		return response
	}

	if deleted == 0 {
		s.observe(operation, http.StatusNotFound)
		return notFound[model.Empty]("Attachment not found")
	}

	organizationID := ""
	if req.Metadata != nil {
		organizationID = req.Metadata.OrganizationID
	}

	s.record(operation, organizationID, strconv.Itoa(attachmentID), req.Event)
	s.observe(operation, http.StatusOK)

	return model.OKNoData[model.Empty]()
}

func (s *AttachmentService) deleteOne(ctx context.Context, attachmentID int) (int64, error) {
	store, err := s.store.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	result, err := store.DeleteOne(ctx, s.collection, query.New().Build(query.Eq(fieldAttachmentID, attachmentID)))
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

func attachmentFields(attachment *model.Attachment, metadata *model.AttachmentMetadata) map[string]interface{} {
	fields := map[string]interface{}{
		"attachmentId": *attachment.AttachmentID,
		"file":         attachment.File,
		"metadata":     metadata,
	}

	if attachment.Name != "" {
		fields["name"] = attachment.Name
	}

	if attachment.MimeType != "" {
		fields["mimeType"] = attachment.MimeType
	}

	return fields
}

// stampAttachmentMetadata follows the same precedence as stampMetadata
func stampAttachmentMetadata(
	existing *model.AttachmentMetadata, request *model.AttachmentMetadata, apiKey string,
) *model.AttachmentMetadata {
	stamped := model.AttachmentMetadata{}
	if existing != nil {
		stamped = *existing
	}

	stamped.OrganizationID = request.OrganizationID

	if request.DocumentID != "" {
		stamped.DocumentID = request.DocumentID
	}

	if request.FolderID != "" {
		stamped.FolderID = request.FolderID
	}

	switch {
	case apiKey != "":
		stamped.APIKey = apiKey
	case request.APIKey != "":
		stamped.APIKey = request.APIKey
	}

	return &stamped
}
