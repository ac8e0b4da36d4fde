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
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
)

// Adapter implements datastore.StoreAdapter on top of a MongoDB database handle
type Adapter struct {
	db *mongo.Database
}

var _ datastore.StoreAdapter = (*Adapter)(nil)

// NewAdapter wraps an already connected database
func NewAdapter(db *mongo.Database) *Adapter {
	return &Adapter{db: db}
}

// Find finds multiple documents
func (a *Adapter) Find(
	ctx context.Context, collection string, filter datastore.QueryBuilder, opts *datastore.FindOptions,
) (datastore.Cursor, error) {
	mongoFilter := toFilter(filter)
	mongoOpts := options.Find()

	if opts != nil {
		if len(opts.Projection) > 0 {
			mongoOpts.SetProjection(toProjection(opts.Projection))
		}

		if len(opts.Sort) > 0 {
			sort := bson.D{}
			for _, field := range opts.Sort {
				sort = append(sort, bson.E{Key: field.Field, Value: int(field.Order)})
			}

			mongoOpts.SetSort(sort)
		}

		if opts.Limit != nil {
			mongoOpts.SetLimit(*opts.Limit)
		}
	}

	cursor, err := a.db.Collection(collection).Find(ctx, mongoFilter, mongoOpts)
	if err != nil {
		return nil, datastore.NewQueryError(
			datastore.ProviderMongoDB,
			"failed to execute find query",
			err,
		).WithMetadata("collection", collection).WithMetadata("filter", mongoFilter)
	}

	return &mongoCursor{cursor: cursor}, nil
}

// FindOne finds a single document. A miss is reported through the result, not the error.
func (a *Adapter) FindOne(
	ctx context.Context, collection string, filter datastore.QueryBuilder, opts *datastore.FindOneOptions,
) (datastore.SingleResult, error) {
	mongoFilter := toFilter(filter)
	mongoOpts := options.FindOne()

	if opts != nil && len(opts.Projection) > 0 {
		mongoOpts.SetProjection(toProjection(opts.Projection))
	}

	result := a.db.Collection(collection).FindOne(ctx, mongoFilter, mongoOpts)

	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &mongoSingleResult{err: datastore.NewDocumentNotFoundError(
				datastore.ProviderMongoDB,
				"no document matched filter",
				err,
			).WithMetadata("collection", collection)}, nil
		}

		return nil, datastore.NewQueryError(
			datastore.ProviderMongoDB,
			"failed to execute find one query",
			err,
		).WithMetadata("collection", collection).WithMetadata("filter", mongoFilter)
	}

	return &mongoSingleResult{result: result}, nil
}

// InsertOne inserts a single document
func (a *Adapter) InsertOne(
	ctx context.Context, collection string, document interface{},
) (*datastore.InsertOneResult, error) {
	result, err := a.db.Collection(collection).InsertOne(ctx, document)
	if err != nil {
		return nil, datastore.NewInsertError(
			datastore.ProviderMongoDB,
			"failed to insert document",
			err,
		).WithMetadata("collection", collection)
	}

	return &datastore.InsertOneResult{InsertedID: normalizeValue(result.InsertedID)}, nil
}

// UpdateOne updates the first matching document, inserting one when opts.Upsert is set
func (a *Adapter) UpdateOne(
	ctx context.Context, collection string, filter datastore.QueryBuilder, update datastore.UpdateBuilder,
	opts *datastore.UpdateOptions,
) (*datastore.UpdateResult, error) {
	mongoFilter := toFilter(filter)
	mongoOpts := options.Update()

	if opts != nil && opts.Upsert {
		mongoOpts.SetUpsert(true)
	}

	result, err := a.db.Collection(collection).UpdateOne(ctx, mongoFilter, update.ToMongo(), mongoOpts)
	if err != nil {
		return nil, datastore.NewUpdateError(
			datastore.ProviderMongoDB,
			"failed to update document",
			err,
		).WithMetadata("collection", collection).WithMetadata("filter", mongoFilter)
	}

	return toUpdateResult(result), nil
}

// UpdateMany updates every matching document
func (a *Adapter) UpdateMany(
	ctx context.Context, collection string, filter datastore.QueryBuilder, update datastore.UpdateBuilder,
) (*datastore.UpdateResult, error) {
	mongoFilter := toFilter(filter)

	result, err := a.db.Collection(collection).UpdateMany(ctx, mongoFilter, update.ToMongo())
	if err != nil {
		return nil, datastore.NewUpdateError(
			datastore.ProviderMongoDB,
			"failed to update documents",
			err,
		).WithMetadata("collection", collection).WithMetadata("filter", mongoFilter)
	}

	return toUpdateResult(result), nil
}

// DeleteOne deletes the first matching document
func (a *Adapter) DeleteOne(
	ctx context.Context, collection string, filter datastore.QueryBuilder,
) (*datastore.DeleteResult, error) {
	mongoFilter := toFilter(filter)

	result, err := a.db.Collection(collection).DeleteOne(ctx, mongoFilter)
	if err != nil {
		return nil, datastore.NewDeleteError(
			datastore.ProviderMongoDB,
			"failed to delete document",
			err,
		).WithMetadata("collection", collection).WithMetadata("filter", mongoFilter)
	}

	return &datastore.DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// DeleteMany deletes every matching document
func (a *Adapter) DeleteMany(
	ctx context.Context, collection string, filter datastore.QueryBuilder,
) (*datastore.DeleteResult, error) {
	mongoFilter := toFilter(filter)

	result, err := a.db.Collection(collection).DeleteMany(ctx, mongoFilter)
	if err != nil {
		return nil, datastore.NewDeleteError(
			datastore.ProviderMongoDB,
			"failed to delete documents",
			err,
		).WithMetadata("collection", collection).WithMetadata("filter", mongoFilter)
	}

	return &datastore.DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// CreateIndex creates an index and returns its name. Creating an existing index is a no-op on the server.
func (a *Adapter) CreateIndex(ctx context.Context, collection string, index datastore.IndexModel) (string, error) {
	keys := bson.D{}
	for _, key := range index.Keys {
		keys = append(keys, bson.E{Key: key.Field, Value: int(key.Order)})
	}

	indexOpts := options.Index().SetUnique(index.Unique).SetBackground(index.Background)
	if index.Name != "" {
		indexOpts.SetName(index.Name)
	}

	name, err := a.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: indexOpts,
	})
	if err != nil {
		return "", datastore.NewIndexError(
			datastore.ProviderMongoDB,
			"failed to create index",
			err,
		).WithMetadata("collection", collection).WithMetadata("fields", index.Fields())
	}

	slog.Debug("Ensured index", "collection", collection, "index", name, "unique", index.Unique)

	return name, nil
}

// Raw returns the *mongo.Database handle
func (a *Adapter) Raw() interface{} {
	return a.db
}

// Ping checks database connectivity against the admin database
func (a *Adapter) Ping(ctx context.Context) error {
	return ping(ctx, a.db.Client())
}

// Close disconnects the underlying client
func (a *Adapter) Close(ctx context.Context) error {
	if err := a.db.Client().Disconnect(ctx); err != nil {
		return datastore.NewConnectionError(datastore.ProviderMongoDB, "failed to disconnect", err)
	}

	return nil
}

// Provider returns the datastore provider type
func (a *Adapter) Provider() datastore.DataStoreProvider {
	return datastore.ProviderMongoDB
}

func ping(ctx context.Context, client *mongo.Client) error {
	var result bson.M

	err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Decode(&result)
	if err != nil {
		return datastore.NewConnectionError(
			datastore.ProviderMongoDB,
			"failed to ping database",
			err,
		)
	}

	return nil
}

func toFilter(filter datastore.QueryBuilder) bson.M {
	if filter == nil {
		return bson.M{}
	}

	return bson.M(filter.ToMongo())
}

func toProjection(projection map[string]int) bson.M {
	result := bson.M{}
	for field, include := range projection {
		result[field] = include
	}

	return result
}

func toUpdateResult(result *mongo.UpdateResult) *datastore.UpdateResult {
	return &datastore.UpdateResult{
		MatchedCount:  result.MatchedCount,
		ModifiedCount: result.ModifiedCount,
		UpsertedCount: result.UpsertedCount,
		UpsertedID:    normalizeValue(result.UpsertedID),
	}
}
