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

package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// UpdateBuilder provides a database-agnostic update builder
// It generates MongoDB update documents or PostgreSQL UPDATE SET clauses from the same API
type UpdateBuilder struct {
	operations []*setOperation
}

// NewUpdate creates a new update builder
func NewUpdate() *UpdateBuilder {
	return &UpdateBuilder{
		operations: make([]*setOperation, 0),
	}
}

// Set adds a $set operation (field = value)
func (u *UpdateBuilder) Set(field string, value interface{}) *UpdateBuilder {
	u.operations = append(u.operations, &setOperation{field: field, value: value})
	return u
}

// SetMultiple adds multiple $set operations at once, in field name order
func (u *UpdateBuilder) SetMultiple(updates map[string]interface{}) *UpdateBuilder {
	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	for _, field := range fields {
		u.operations = append(u.operations, &setOperation{field: field, value: updates[field]})
	}

	return u
}

// Fields returns the $set field/value pairs in the order they were added
func (u *UpdateBuilder) Fields() []FieldValue {
	if u == nil {
		return nil
	}

	fields := make([]FieldValue, 0, len(u.operations))
	for _, op := range u.operations {
		fields = append(fields, FieldValue{Field: op.field, Value: op.value})
	}

	return fields
}

// FieldValue is a single field assignment
type FieldValue struct {
	Field string
	Value interface{}
}

// ToMongo generates a MongoDB update document
func (u *UpdateBuilder) ToMongo() map[string]interface{} {
	if u == nil || len(u.operations) == 0 {
		return map[string]interface{}{}
	}

	setDoc := make(map[string]interface{}, len(u.operations))
	for _, op := range u.operations {
		setDoc[op.field] = op.value
	}

	return map[string]interface{}{
		"$set": setDoc,
	}
}

// ToSQL generates a PostgreSQL UPDATE SET clause
func (u *UpdateBuilder) ToSQL() (string, []interface{}) {
	return u.ToSQLWithOffset(1)
}

// ToSQLWithOffset generates the SET clause with parameter numbering starting at startParam.
// All document assignments are folded into one nested jsonb_set expression because
// PostgreSQL rejects multiple assignments to the same column.
func (u *UpdateBuilder) ToSQLWithOffset(startParam int) (string, []interface{}) {
	if u == nil || len(u.operations) == 0 {
		return "", nil
	}

	expr := "document"
	args := make([]interface{}, 0, len(u.operations))
	param := startParam

	for _, op := range u.operations {
		expr = fmt.Sprintf("jsonb_set(%s, '{%s}', $%d::jsonb, true)", expr, jsonbPath(op.field), param)
		args = append(args, toJSONBValue(op.value))
		param++
	}

	return fmt.Sprintf("document = %s, updated_at = NOW()", expr), args
}

type setOperation struct {
	field string
	value interface{}
}

// jsonbPath converts MongoDB dot notation to a JSONB path array literal
// Example: "metadata.organizationId" -> "metadata,organizationId"
func jsonbPath(fieldPath string) string {
	parts := strings.Split(fieldPath, ".")
	for i, part := range parts {
		parts[i] = escapeLiteral(part)
	}

	return strings.Join(parts, ",")
}

// toJSONBValue converts a Go value to JSONB-compatible text
func toJSONBValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("%t", v)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", v)
	default:
		// Strings, floats and structured values all go through encoding/json so that
		// quoting and struct tags are honoured
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%q", fmt.Sprint(v))
		}

		return string(jsonBytes)
	}
}
