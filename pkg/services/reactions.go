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

// ReactionService reads and writes reaction annotations
type ReactionService struct {
	annotations annotationService[model.ReactionAnnotation]
}

// NewReactionService creates a reaction service on the configured reactions collection
func NewReactionService(store StoreSource, cfg *config.Config, audit *auditlogger.Logger) *ReactionService {
	return &ReactionService{
		annotations: newAnnotationService[model.ReactionAnnotation]("reactions", config.CollectionReactions,
			annotationLabels{
				plural:        "reactions",
				singular:      "reaction",
				payloadField:  "reactionAnnotation",
				idField:       "reactionAnnotationId",
				notFoundError: "Reaction annotation not found",
			}, store, cfg, audit),
	}
}

// Collection returns the physical collection name
func (s *ReactionService) Collection() string {
	return s.annotations.Collection()
}

// GetReactions returns the reaction annotations of one organization keyed by annotation id
func (s *ReactionService) GetReactions(
	ctx context.Context, req model.GetReactionRequest,
) model.Response[map[string]model.ReactionAnnotation] {
	return s.annotations.get(ctx, annotationQuery{
		organizationID: req.OrganizationID,
		annotationIDs:  req.ReactionAnnotationIDs,
		documentIDs:    req.DocumentIDs,
		folderID:       req.FolderID,
		allDocuments:   boolValue(req.AllDocuments),
	})
}

// SaveReactions upserts every annotation in the request. Database failures are returned as errors.
func (s *ReactionService) SaveReactions(
	ctx context.Context, req model.SaveReactionRequest,
) (model.Response[model.Empty], error) {
	return s.annotations.save(ctx, req.ReactionAnnotation, req.Metadata, req.Event)
}

// DeleteReaction removes the reaction annotation with the given id
func (s *ReactionService) DeleteReaction(ctx context.Context, req model.DeleteReactionRequest) model.Response[model.Empty] {
	return s.annotations.delete(ctx, req.ReactionAnnotationID, req.Metadata, req.Event)
}
