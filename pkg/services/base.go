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

// Package services implements the tenant-scoped entity operations of the annotation store:
// comments, reactions, attachments and users. Services depend only on datastore.StoreAdapter.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/auditlogger"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/metrics"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/model"
)

// StoreSource hands out the live adapter. *datastore.ConnectionManager implements it.
type StoreSource interface {
	Acquire(ctx context.Context) (datastore.StoreAdapter, error)
}

// ValidationError reports a malformed argument that the caller must fix
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is, or wraps, a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func validateOrganizationID(organizationID string) error {
	if organizationID == "" {
		return &ValidationError{Message: "organizationId must be a non-empty string"}
	}

	return nil
}

// baseService carries what every entity service shares
type baseService struct {
	name       string
	collection string
	store      StoreSource
	cfg        *config.Config
	audit      *auditlogger.Logger
}

func newBaseService(
	name string, kind config.CollectionKind, store StoreSource, cfg *config.Config, audit *auditlogger.Logger,
) baseService {
	return baseService{
		name:       name,
		collection: cfg.CollectionName(kind),
		store:      store,
		cfg:        cfg,
		audit:      audit,
	}
}

// Collection returns the physical collection name the service operates on
func (b *baseService) Collection() string {
	return b.collection
}

func (b *baseService) apiKey() string {
	return b.cfg.APIKey()
}

func (b *baseService) observe(operation string, statusCode int) {
	metrics.ServiceRequestsTotal.WithLabelValues(b.name, operation, strconv.Itoa(statusCode)).Inc()
}

func (b *baseService) record(operation, organizationID, entityID string, event model.ResolverAction) {
	b.audit.Log(auditlogger.Entry{
		Operation:      operation,
		Collection:     b.collection,
		OrganizationID: organizationID,
		EntityID:       entityID,
		Event:          string(event),
		StatusCode:     http.StatusOK,
	})
}

// wrapDatabaseError keeps the datastore error type of err and prefixes the operation context.
// Anything that is not a datastore error is reported as unexpected.
func wrapDatabaseError(action string, err error) error {
	var datastoreErr *datastore.DatastoreError
	if errors.As(err, &datastoreErr) {
		return datastore.NewDatastoreError(datastoreErr.Type, datastoreErr.Provider,
			"Database error while "+action, err)
	}

	return datastore.NewDatastoreError(datastore.ErrorTypeUnknown, "", "Unexpected error while "+action, err)
}

// failureResponse turns an error of a read or delete path into an error envelope
func failureResponse[T any](action string, err error) model.Response[T] {
	if IsValidationError(err) {
		return model.Fail[T](http.StatusBadRequest, model.ErrorCodeValidationError, err.Error())
	}

	var datastoreErr *datastore.DatastoreError
	if errors.As(err, &datastoreErr) {
		return model.Fail[T](http.StatusInternalServerError, model.ErrorCodeDatabaseError,
			fmt.Sprintf("Database error while %s: %v", action, err))
	}

	return model.Fail[T](http.StatusInternalServerError, model.ErrorCodeInternalError,
		fmt.Sprintf("Unexpected error while %s: %v", action, err))
}

func invalidInput[T any](message string) model.Response[T] {
	return model.Fail[T](http.StatusBadRequest, model.ErrorCodeInvalidInput, message)
}

func notFound[T any](message string) model.Response[T] {
	return model.Fail[T](http.StatusNotFound, model.ErrorCodeNotFound, message)
}

// stampMetadata applies the tenant fields of a save request onto an entity's own metadata.
// organizationId always comes from the request; documentId and folderId only override when
// the request carries them; the configured API key wins over the request's.
func stampMetadata(existing *model.Metadata, request *model.Metadata, apiKey string) *model.Metadata {
	stamped := model.Metadata{}
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
