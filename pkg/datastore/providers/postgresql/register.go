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

package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 10
	connMaxLifetime = time.Hour
)

// init automatically registers the PostgreSQL provider with the global registry
func init() {
	datastore.RegisterProvider(datastore.ProviderPostgreSQL, NewPostgreSQLStore)
}

// NewPostgreSQLStore opens a connection pool, verifies it and creates the document table of every
// configured collection.
func NewPostgreSQLStore(ctx context.Context, cfg *config.Config) (datastore.StoreAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, datastore.NewConfigurationError(datastore.ProviderPostgreSQL, "invalid database configuration", err)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresDSN())
	if err != nil {
		return nil, datastore.NewConnectionError(datastore.ProviderPostgreSQL, "failed to open database", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, datastore.NewConnectionError(datastore.ProviderPostgreSQL, "failed to ping database", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	tables := make([]string, 0, len(cfg.CollectionNames()))
	for _, name := range cfg.CollectionNames() {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	if err := CreateTables(ctx, db, tables); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("Successfully connected to PostgreSQL",
		"host", cfg.Database.Host,
		"database", cfg.Database.DatabaseName,
		"tables", tables)

	return NewAdapter(db), nil
}

// CreateTables creates one JSONB document table per collection if it does not exist yet
func CreateTables(ctx context.Context, db *sql.DB, tables []string) error {
	for _, table := range tables {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			document JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`, pq.QuoteIdentifier(table))

		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return datastore.NewConnectionError(
				datastore.ProviderPostgreSQL,
				"failed to create table",
				err,
			).WithMetadata("table", table)
		}
	}

	return nil
}
