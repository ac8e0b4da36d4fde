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

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
)

type mongoSingleResult struct {
	result *mongo.SingleResult
	err    error
}

func (r *mongoSingleResult) Decode(v interface{}) error {
	if r.err != nil {
		return r.err
	}

	if target, ok := v.(*map[string]interface{}); ok {
		var raw bson.M
		if err := r.result.Decode(&raw); err != nil {
			return decodeError(err)
		}

		*target = normalizeDocument(raw)

		return nil
	}

	if err := r.result.Decode(v); err != nil {
		return decodeError(err)
	}

	return nil
}

func (r *mongoSingleResult) Err() error {
	return r.err
}

type mongoCursor struct {
	cursor *mongo.Cursor
}

func (c *mongoCursor) Next(ctx context.Context) bool {
	return c.cursor.Next(ctx)
}

func (c *mongoCursor) Decode(v interface{}) error {
	if target, ok := v.(*map[string]interface{}); ok {
		var raw bson.M
		if err := c.cursor.Decode(&raw); err != nil {
			return decodeError(err)
		}

		*target = normalizeDocument(raw)

		return nil
	}

	if err := c.cursor.Decode(v); err != nil {
		return decodeError(err)
	}

	return nil
}

func (c *mongoCursor) Close(ctx context.Context) error {
	return c.cursor.Close(ctx)
}

// All decodes every remaining document. Generic map targets are normalised to plain Go types.
func (c *mongoCursor) All(ctx context.Context, results interface{}) error {
	if target, ok := results.(*[]map[string]interface{}); ok {
		var raw []bson.M
		if err := c.cursor.All(ctx, &raw); err != nil {
			return decodeError(err)
		}

		docs := make([]map[string]interface{}, 0, len(raw))
		for _, doc := range raw {
			docs = append(docs, normalizeDocument(doc))
		}

		*target = docs

		return nil
	}

	if err := c.cursor.All(ctx, results); err != nil {
		return decodeError(err)
	}

	return nil
}

func (c *mongoCursor) Err() error {
	if err := c.cursor.Err(); err != nil {
		return datastore.NewQueryError(datastore.ProviderMongoDB, "cursor iteration failed", err)
	}

	return nil
}

func decodeError(err error) error {
	return datastore.NewSerializationError(datastore.ProviderMongoDB, "failed to decode document", err)
}

func normalizeDocument(doc bson.M) map[string]interface{} {
	result := make(map[string]interface{}, len(doc))
	for key, value := range doc {
		result[key] = normalizeValue(value)
	}

	return result
}

// normalizeValue recursively converts MongoDB-specific types to standard Go types so that
// services never see driver types such as primitive.D or primitive.ObjectID
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time()
	case primitive.ObjectID:
		return v.Hex()
	case bson.M:
		return normalizeDocument(v)
	case map[string]interface{}:
		return normalizeDocument(v)
	case primitive.D:
		result := make(map[string]interface{}, len(v))
		for _, elem := range v {
			result[elem.Key] = normalizeValue(elem.Value)
		}

		return result
	case primitive.A:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = normalizeValue(item)
		}

		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = normalizeValue(item)
		}

		return result
	default:
		return v
	}
}
