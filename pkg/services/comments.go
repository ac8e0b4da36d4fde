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

	"github.com/nvidia/nvsentinel/annotation-store/pkg/auditlogger"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/model"
)

// CommentService reads and writes comment annotations
type CommentService struct {
	annotations annotationService[model.CommentAnnotation]
}

// NewCommentService creates a comment service on the configured comments collection
func NewCommentService(store StoreSource, cfg *config.Config, audit *auditlogger.Logger) *CommentService {
	return &CommentService{
		annotations: newAnnotationService[model.CommentAnnotation]("comments", config.CollectionComments,
			annotationLabels{
				plural:        "comments",
				singular:      "comment",
				payloadField:  "commentAnnotation",
				idField:       "commentAnnotationId",
				notFoundError: "Comment annotation not found",
			}, store, cfg, audit),
	}
}

// Collection returns the physical collection name
func (s *CommentService) Collection() string {
	return s.annotations.Collection()
}

// GetComments returns the comment annotations of one organization keyed by annotation id
func (s *CommentService) GetComments(
	ctx context.Context, req model.GetCommentRequest,
) model.Response[map[string]model.CommentAnnotation] {
	return s.annotations.get(ctx, annotationQuery{
		organizationID: req.OrganizationID,
		annotationIDs:  req.CommentAnnotationIDs,
		documentIDs:    req.DocumentIDs,
		folderID:       req.FolderID,
		allDocuments:   boolValue(req.AllDocuments),
	})
}

// SaveComments upserts every annotation in the request. Database failures are returned as errors.
func (s *CommentService) SaveComments(
	ctx context.Context, req model.SaveCommentRequest,
) (model.Response[model.Empty], error) {
	return s.annotations.save(ctx, req.CommentAnnotation, req.Metadata, req.Event)
}

// DeleteComment removes the comment annotation with the given id
func (s *CommentService) DeleteComment(ctx context.Context, req model.DeleteCommentRequest) model.Response[model.Empty] {
	return s.annotations.delete(ctx, req.CommentAnnotationID, req.Metadata, req.Event)
}
