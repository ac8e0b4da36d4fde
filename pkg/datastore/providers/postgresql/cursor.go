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
	"encoding/json"
	"reflect"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/datastore"
)

type postgresqlSingleResult struct {
	data []byte
	err  error
}

func (r *postgresqlSingleResult) Decode(v interface{}) error {
	if r.err != nil {
		return r.err
	}

	if err := json.Unmarshal(r.data, v); err != nil {
		return decodeError(err)
	}

	return nil
}

func (r *postgresqlSingleResult) Err() error {
	return r.err
}

type postgresqlCursor struct {
	rows *sql.Rows
}

func (c *postgresqlCursor) Next(ctx context.Context) bool {
	return c.rows.Next()
}

func (c *postgresqlCursor) Decode(v interface{}) error {
	var jsonData []byte
	if err := c.rows.Scan(&jsonData); err != nil {
		return datastore.NewQueryError(datastore.ProviderPostgreSQL, "failed to scan row", err)
	}

	if err := json.Unmarshal(jsonData, v); err != nil {
		return decodeError(err)
	}

	return nil
}

func (c *postgresqlCursor) Close(ctx context.Context) error {
	return c.rows.Close()
}

func (c *postgresqlCursor) Err() error {
	if err := c.rows.Err(); err != nil {
		return datastore.NewQueryError(datastore.ProviderPostgreSQL, "cursor iteration failed", err)
	}

	return nil
}

// All decodes every remaining row into results, which must be a pointer to a slice.
// The rows are closed afterwards.
func (c *postgresqlCursor) All(ctx context.Context, results interface{}) error {
	defer c.rows.Close()

	resultsVal := reflect.ValueOf(results)
	if resultsVal.Kind() != reflect.Ptr || resultsVal.Elem().Kind() != reflect.Slice {
		return datastore.NewValidationError(datastore.ProviderPostgreSQL, "results must be a pointer to a slice", nil)
	}

	sliceVal := reflect.MakeSlice(resultsVal.Elem().Type(), 0, 0)
	elemType := sliceVal.Type().Elem()

	for c.rows.Next() {
		elemPtr := reflect.New(elemType)

		if err := c.Decode(elemPtr.Interface()); err != nil {
			return err
		}

		sliceVal = reflect.Append(sliceVal, elemPtr.Elem())
	}

	resultsVal.Elem().Set(sliceVal)

	return c.Err()
}

func decodeError(err error) error {
	return datastore.NewSerializationError(datastore.ProviderPostgreSQL, "failed to decode document", err)
}
