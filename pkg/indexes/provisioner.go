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

// Package indexes provisions the uniqueness and lookup indexes of every annotation store collection.
package indexes

import (
	"context"
	"fmt"
	"log/slog"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/metrics"
)

const (
	fieldAnnotationID   = "annotationId"
	fieldAttachmentID   = "attachmentId"
	fieldUserID         = "userId"
	fieldOrganizationID = "organizationId"

	metaOrganizationID = "metadata.organizationId"
	metaDocumentID     = "metadata.documentId"
	metaAPIKey         = "metadata.apiKey"
	metaFolderID       = "metadata.folderId"
)

// CollectionIndexes is the set of indexes wanted on one physical collection
type CollectionIndexes struct {
	Kind       config.CollectionKind
	Collection string
	Indexes    []datastore.IndexModel
}

// Provisioner implements datastore.IndexProvisioner for the configured collections
type Provisioner struct {
	plan []CollectionIndexes
}

var _ datastore.IndexProvisioner = (*Provisioner)(nil)

// NewProvisioner builds the index plan against the collection names of cfg
func NewProvisioner(cfg *config.Config) *Provisioner {
	return &Provisioner{plan: Plan(cfg)}
}

// Plan returns the indexes of every collection, in a fixed order
func Plan(cfg *config.Config) []CollectionIndexes {
	return []CollectionIndexes{
		{
			Kind:       config.CollectionComments,
			Collection: cfg.CollectionName(config.CollectionComments),
			Indexes:    annotationIndexes(),
		},
		{
			Kind:       config.CollectionReactions,
			Collection: cfg.CollectionName(config.CollectionReactions),
			Indexes:    annotationIndexes(),
		},
		{
			Kind:       config.CollectionAttachments,
			Collection: cfg.CollectionName(config.CollectionAttachments),
			Indexes: []datastore.IndexModel{
				unique(fieldAttachmentID),
				ascending(metaDocumentID),
			},
		},
		{
			Kind:       config.CollectionUsers,
			Collection: cfg.CollectionName(config.CollectionUsers),
			Indexes: []datastore.IndexModel{
				unique(fieldUserID),
				ascending(fieldOrganizationID),
			},
		},
	}
}

// annotationIndexes are shared by comment and reaction annotations
func annotationIndexes() []datastore.IndexModel {
	return []datastore.IndexModel{
		unique(fieldAnnotationID),
		ascending(metaOrganizationID),
		ascending(metaDocumentID),
		ascending(metaAPIKey),
		ascending(metaFolderID),
		ascending(metaOrganizationID, metaDocumentID),
		ascending(metaOrganizationID, metaAPIKey, metaDocumentID),
		ascending(metaOrganizationID, metaAPIKey, fieldAnnotationID),
		ascending(metaOrganizationID, metaAPIKey, metaFolderID),
	}
}

func unique(field string) datastore.IndexModel {
	model := ascending(field)
	model.Unique = true

	return model
}

func ascending(fields ...string) datastore.IndexModel {
	keys := make([]datastore.IndexKey, 0, len(fields))
	for _, field := range fields {
		keys = append(keys, datastore.IndexKey{Field: field, Order: datastore.Ascending})
	}

	return datastore.IndexModel{Keys: keys, Background: true}
}

// EnsureIndexes creates every planned index. Each failure is collected and the rest still run;
// the returned error aggregates all failures.
func (p *Provisioner) EnsureIndexes(ctx context.Context, adapter datastore.StoreAdapter) error {
	var result *multierror.Error

	created := 0

	for _, collection := range p.plan {
		for _, index := range collection.Indexes {
			name, err := adapter.CreateIndex(ctx, collection.Collection, index)
			if err != nil {
				metrics.IndexCreationsTotal.WithLabelValues(collection.Collection, metrics.StatusError).Inc()

				slog.Warn("Failed to create index",
					"collection", collection.Collection,
					"fields", index.Fields(),
					"unique", index.Unique,
					"error", err)

				result = multierror.Append(result, fmt.Errorf("collection %s index %v: %w",
					collection.Collection, index.Fields(), err))

				continue
			}

			metrics.IndexCreationsTotal.WithLabelValues(collection.Collection, metrics.StatusSuccess).Inc()

			created++

			slog.Debug("Index ensured", "collection", collection.Collection, "index", name)
		}
	}

	slog.Info("Index provisioning finished", "ensured", created, "failed", failures(result))

	return result.ErrorOrNil()
}

func failures(err *multierror.Error) int {
	if err == nil {
		return 0
	}

	return len(err.Errors)
}
