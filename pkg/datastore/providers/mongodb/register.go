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

package mongodb

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
)

// init automatically registers the MongoDB provider with the global registry
func init() {
	datastore.RegisterProvider(datastore.ProviderMongoDB, NewMongoDBStore)
}

// NewMongoDBStore connects to MongoDB, verifies liveness and selects the configured database.
// On any failure the client is disconnected so that no half-open pool is left behind.
func NewMongoDBStore(ctx context.Context, cfg *config.Config) (datastore.StoreAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, datastore.NewConfigurationError(datastore.ProviderMongoDB, "invalid database configuration", err)
	}

	opts := ClientOptions(cfg.Database)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, datastore.NewConnectionError(datastore.ProviderMongoDB, "failed to create MongoDB client", err)
	}

	if err := ping(ctx, client); err != nil {
		if disconnectErr := client.Disconnect(ctx); disconnectErr != nil {
			slog.Warn("Failed to disconnect after ping failure", "error", disconnectErr)
		}

		return nil, err
	}

	slog.Info("Successfully connected to MongoDB",
		"database", cfg.Database.DatabaseName,
		"managedCloud", config.IsManagedCloudHost(cfg.Database.MongoURI()),
		"tls", cfg.Database.UsesTLS())

	return NewAdapter(client.Database(cfg.Database.DatabaseName)), nil
}
