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
	"sort"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/auditlogger"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/model"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/query"
)

const (
	fieldAnnotationID   = "annotationId"
	fieldOrganizationID = "metadata.organizationId"
	fieldAPIKey         = "metadata.apiKey"
	fieldDocumentID     = "metadata.documentId"
	fieldFolderID       = "metadata.folderId"
)

// annotation is the shape shared by comment and reaction annotations
type annotation[A any] interface {
	AnnotationKey() string
	GetMetadata() *model.Metadata
	WithIdentity(id string, metadata *model.Metadata) A
	UpdateFields() map[string]interface{}
}

// annotationLabels holds the names an annotation service uses in messages and logs
type annotationLabels struct {
	plural        string
	singular      string
	payloadField  string
	idField       string
	notFoundError string
}

// annotationQuery is the collection-independent form of a get request
type annotationQuery struct {
	organizationID string
	annotationIDs  []string
	documentIDs    []string
	folderID       string
	allDocuments   bool
}

type annotationService[A annotation[A]] struct {
	baseService
	labels annotationLabels
}

// filter builds the tenant-scoped filter of a get request. Only one selector applies:
// document ids first, then annotation ids, then the folder when allDocuments is set.
func (s *annotationService[A]) filter(q annotationQuery) datastore.QueryBuilder {
	conditions := []query.Condition{query.Eq(fieldOrganizationID, q.organizationID)}

	if apiKey := s.apiKey(); apiKey != "" {
		conditions = append(conditions, query.Eq(fieldAPIKey, apiKey))
	}

	switch {
	case len(q.documentIDs) > 0:
		conditions = append(conditions, query.InStrings(fieldDocumentID, q.documentIDs))
	case len(q.annotationIDs) > 0:
		conditions = append(conditions, query.InStrings(fieldAnnotationID, q.annotationIDs))
	case q.allDocuments && q.folderID != "":
		conditions = append(conditions, query.Eq(fieldFolderID, q.folderID))
	}

	return query.New().Build(query.And(conditions...))
}

func (s *annotationService[A]) get(ctx context.Context, q annotationQuery) model.Response[map[string]A] {
	const operation = "get"

	if q.organizationID == "" {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[map[string]A]("organizationId is required")
	}

	annotations, err := s.find(ctx, q)
	if err != nil {
		slog.Error("Failed to get annotations", "service", s.name, "organizationId", q.organizationID, "error", err)

		response := failureResponse[map[string]A]("getting "+s.labels.plural, err)
		s.observe(operation, response.StatusCode)

		return response
	}

	s.observe(operation, http.StatusOK)

	return model.OK(annotations)
}

func (s *annotationService[A]) find(ctx context.Context, q annotationQuery) (map[string]A, error) {
	store, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := store.Find(ctx, s.collection, s.filter(q), nil)
	if err != nil {
		return nil, err
	}

	var docs []A
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make(map[string]A, len(docs))
	for _, doc := range docs {
		// documents written without an annotation id cannot be addressed
		if key := doc.AnnotationKey(); key != "" {
			result[key] = doc
		}
	}

	return result, nil
}

// save upserts every entry keyed by annotation id. Entries are written one by one in key order
// and the first failure stops the loop; earlier writes are kept.
func (s *annotationService[A]) save(
	ctx context.Context, entries map[string]A, metadata *model.Metadata, event model.ResolverAction,
) (model.Response[model.Empty], error) {
	const operation = "save"

	if metadata == nil || metadata.OrganizationID == "" {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[model.Empty]("organizationId is required in metadata"), nil
	}

	if len(entries) == 0 {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[model.Empty](s.labels.payloadField + " must be a non-empty dictionary"), nil
	}

	store, err := s.store.Acquire(ctx)
	if err != nil {
		s.observe(operation, http.StatusInternalServerError)
		return model.Response[model.Empty]{}, wrapDatabaseError("saving "+s.labels.plural, err)
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	apiKey := s.apiKey()

	for _, key := range keys {
		if key == "" {
			continue
		}

		entry := entries[key]
		entry = entry.WithIdentity(key, stampMetadata(entry.GetMetadata(), metadata, apiKey))

		filter := query.New().Build(query.And(
			query.Eq(fieldAnnotationID, key),
			query.Eq(fieldOrganizationID, metadata.OrganizationID),
		))
		update := query.NewUpdate().SetMultiple(entry.UpdateFields())

		if _, err := store.UpdateOne(ctx, s.collection, filter, update, &datastore.UpdateOptions{Upsert: true}); err != nil {
			slog.Error("Failed to save annotation", "service", s.name, "annotationId", key,
				"organizationId", metadata.OrganizationID, "error", err)
			s.observe(operation, http.StatusInternalServerError)

			return model.Response[model.Empty]{}, wrapDatabaseError("saving "+s.labels.plural, err)
		}

		s.record(operation, metadata.OrganizationID, key, event)
	}

	s.observe(operation, http.StatusOK)

	return model.OKNoData[model.Empty](), nil
}

// delete removes one annotation by id alone. The organization in metadata is recorded but does
// not narrow the filter.
func (s *annotationService[A]) delete(
	ctx context.Context, annotationID string, metadata *model.Metadata, event model.ResolverAction,
) model.Response[model.Empty] {
	const operation = "delete"

	if annotationID == "" {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[model.Empty](s.labels.idField + " is required")
	}

	deleted, err := s.deleteOne(ctx, annotationID)
	if err != nil {
		slog.Error("Failed to delete annotation", "service", s.name, "annotationId", annotationID, "error", err)

		response := failureResponse[model.Empty]("deleting "+s.labels.singular, err)
		s.observe(operation, response.StatusCode)

		return response
	}

	if deleted == 0 {
		s.observe(operation, http.StatusNotFound)
		return notFound[model.Empty](s.labels.notFoundError)
	}

	organizationID := ""
	if metadata != nil {
		organizationID = metadata.OrganizationID
	}

	s.record(operation, organizationID, annotationID, event)
	s.observe(operation, http.StatusOK)

	return model.OKNoData[model.Empty]()
}

func (s *annotationService[A]) deleteOne(ctx context.Context, annotationID string) (int64, error) {
	store, err := s.store.Acquire(ctx)
	if err != nil {
		return 0, err
	}

	result, err := store.DeleteOne(ctx, s.collection, query.New().Build(query.Eq(fieldAnnotationID, annotationID)))
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

func newAnnotationService[A annotation[A]](
	name string, kind config.CollectionKind, labels annotationLabels,
	store StoreSource, cfg *config.Config, audit *auditlogger.Logger,
) annotationService[A] {
	return annotationService[A]{
		baseService: newBaseService(name, kind, store, cfg, audit),
		labels:      labels,
	}
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
