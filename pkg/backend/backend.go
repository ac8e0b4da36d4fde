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

// Package backend is the entry point a host application embeds: it owns the store connection
// and hands out the entity services built on it.
package backend

import (
	"context"
	"sync"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/auditlogger"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/indexes"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/services"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/token"

	// storage engines register themselves with the datastore registry
	_ "github.com/nvidia/nvsentinel/annotation-store/pkg/datastore/providers/mongodb"
	_ "github.com/nvidia/nvsentinel/annotation-store/pkg/datastore/providers/postgresql"
)

// AuditComponent is the component name written into audit entries
const AuditComponent = "annotation-store"

// Backend wires the connection manager and the entity services. Services are created lazily,
// once each, and share the single connection.
type Backend struct {
	cfg     *config.Config
	manager *datastore.ConnectionManager
	audit   *auditlogger.Logger

	commentsOnce    sync.Once
	comments        *services.CommentService
	reactionsOnce   sync.Once
	reactions       *services.ReactionService
	attachmentsOnce sync.Once
	attachments     *services.AttachmentService
	usersOnce       sync.Once
	users           *services.UserService
	tokenOnce       sync.Once
	token           *token.Service
}

type options struct {
	managerOpts []datastore.ManagerOption
	audit       *auditlogger.Logger
}

// Option configures a Backend
type Option func(*options)

// WithManagerOptions passes options through to the connection manager
func WithManagerOptions(opts ...datastore.ManagerOption) Option {
	return func(o *options) {
		o.managerOpts = append(o.managerOpts, opts...)
	}
}

// WithAuditLogger replaces the audit logger built from cfg.Audit
func WithAuditLogger(audit *auditlogger.Logger) Option {
	return func(o *options) {
		o.audit = audit
	}
}

// New validates cfg and creates a backend. No connection is opened until a service needs one.
func New(cfg *config.Config, opts ...Option) (*Backend, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, datastore.NewConfigurationError(datastore.DataStoreProvider(cfg.Database.Type),
			"invalid database configuration", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	audit := o.audit
	if audit == nil {
		var err error

		audit, err = auditlogger.New(AuditComponent, cfg.Audit)
		if err != nil {
			return nil, err
		}
	}

	return &Backend{
		cfg:     cfg,
		manager: datastore.NewConnectionManager(cfg, indexes.NewProvisioner(cfg), o.managerOpts...),
		audit:   audit,
	}, nil
}

// Manager returns the connection manager, for probes and for direct store access
func (b *Backend) Manager() *datastore.ConnectionManager {
	return b.manager
}

// Connect opens the connection and provisions indexes ahead of the first request
func (b *Backend) Connect(ctx context.Context) error {
	_, err := b.manager.Acquire(ctx)
	return err
}

func (b *Backend) Comments() *services.CommentService {
	b.commentsOnce.Do(func() {
		b.comments = services.NewCommentService(b.manager, b.cfg, b.audit)
	})

	return b.comments
}

func (b *Backend) Reactions() *services.ReactionService {
	b.reactionsOnce.Do(func() {
		b.reactions = services.NewReactionService(b.manager, b.cfg, b.audit)
	})

	return b.reactions
}

func (b *Backend) Attachments() *services.AttachmentService {
	b.attachmentsOnce.Do(func() {
		b.attachments = services.NewAttachmentService(b.manager, b.cfg, b.audit)
	})

	return b.attachments
}

func (b *Backend) Users() *services.UserService {
	b.usersOnce.Do(func() {
		b.users = services.NewUserService(b.manager, b.cfg, b.audit)
	})

	return b.users
}

func (b *Backend) Token() *token.Service {
	b.tokenOnce.Do(func() {
		b.token = token.NewService(b.cfg)
	})

	return b.token
}

// Close releases the connection and the audit log
func (b *Backend) Close(ctx context.Context) error {
	var result *multierror.Error

	if err := b.manager.Release(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	if err := b.audit.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}
