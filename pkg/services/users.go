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

	"github.com/nvidia/nvsentinel/annotation-store/pkg/auditlogger"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/model"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/query"
)

// UserService reads users stored in the operator's own shape and writes users in canonical shape
type UserService struct {
	baseService
	mapping *SchemaMapping
}

// NewUserService creates a user service whose reads go through the configured schema mapping
func NewUserService(store StoreSource, cfg *config.Config, audit *auditlogger.Logger) *UserService {
	return &UserService{
		baseService: newBaseService("users", config.CollectionUsers, store, cfg, audit),
		mapping:     NewSchemaMapping(cfg.UserSchema),
	}
}

// Mapping returns the schema mapping applied to reads
func (s *UserService) Mapping() *SchemaMapping {
	return s.mapping
}

// GetUsers returns the users of one organization keyed by canonical user id. Documents that
// resolve to no user id are skipped.
func (s *UserService) GetUsers(
	ctx context.Context, organizationID string, userIDs []string,
) (model.Response[map[string]model.User], error) {
	const operation = "get"

	if err := validateOrganizationID(organizationID); err != nil {
		s.observe(operation, http.StatusBadRequest)
		return model.Response[map[string]model.User]{}, err
	}

	if len(userIDs) == 0 {
		s.observe(operation, http.StatusOK)
		return model.OK(map[string]model.User{}), nil
	}

	docs, err := s.find(ctx, organizationID, userIDs)
	if err != nil {
		slog.Error("Failed to get users", "organizationId", organizationID, "error", err)
		s.observe(operation, http.StatusInternalServerError)

		return model.Response[map[string]model.User]{}, wrapDatabaseError("getting users", err)
	}

	users := make(map[string]model.User, len(docs))

	for _, doc := range docs {
		user := s.mapping.Transform(doc)
		if user.UserID == "" {
			continue
		}

		users[user.UserID] = user
	}

	s.observe(operation, http.StatusOK)

	return model.OK(users), nil
}

func (s *UserService) find(ctx context.Context, organizationID string, userIDs []string) ([]map[string]interface{}, error) {
	store, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	filter := query.New().Build(query.And(
		query.InStrings(s.mapping.QueryField(model.UserFieldUserID), userIDs),
		query.Eq(s.mapping.QueryField(model.UserFieldOrganizationID), organizationID),
	))

	cursor, err := store.Find(ctx, s.collection, filter, nil)
	if err != nil {
		return nil, err
	}

	var docs []map[string]interface{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	return docs, nil
}

// SaveUser upserts a user under canonical field names, stamped with the organization.
// Writes do not go through the schema mapping.
func (s *UserService) SaveUser(
	ctx context.Context, organizationID string, user *model.User,
) (model.Response[model.Empty], error) {
	const operation = "save"

	if err := validateOrganizationID(organizationID); err != nil {
		s.observe(operation, http.StatusBadRequest)
		return model.Response[model.Empty]{}, err
	}

	if user == nil {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[model.Empty]("user is required"), nil
	}

	if user.UserID == "" {
		s.observe(operation, http.StatusBadRequest)
		return invalidInput[model.Empty]("user.userId is required"), nil
	}

	stamped := *user
	stamped.OrganizationID = organizationID

	fields := stamped.Fields()
	delete(fields, "_id")

	store, err := s.store.Acquire(ctx)
	if err != nil {
		s.observe(operation, http.StatusInternalServerError)
		return model.Response[model.Empty]{}, wrapDatabaseError("saving user", err)
	}

	filter := query.New().Build(query.And(
		query.Eq(model.UserFieldUserID, user.UserID),
		query.Eq(model.UserFieldOrganizationID, organizationID),
	))

	_, err = store.UpdateOne(ctx, s.collection, filter, query.NewUpdate().SetMultiple(fields),
		&datastore.UpdateOptions{Upsert: true})
	if err != nil {
		slog.Error("Failed to save user", "userId", user.UserID, "organizationId", organizationID, "error", err)
		s.observe(operation, http.StatusInternalServerError)

		return model.Response[model.Empty]{}, wrapDatabaseError("saving user", err)
	}

	s.record(operation, organizationID, user.UserID, "")
	s.observe(operation, http.StatusOK)

	return model.OKNoData[model.Empty](), nil
}
