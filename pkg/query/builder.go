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
	"fmt"
	"strings"
)

// Builder provides a database-agnostic query builder
// It generates MongoDB filters or PostgreSQL WHERE clauses from the same API
type Builder struct {
	root Condition
}

// Condition represents a query condition that can be converted to MongoDB or SQL
type Condition interface {
	// ToMongo converts the condition to MongoDB filter format
	ToMongo() map[string]interface{}

	// ToSQL converts the condition to PostgreSQL WHERE clause
	// Returns the SQL string and parameter values
	ToSQL(paramNum int) (string, []interface{}, int)
}

// New creates a new query builder
func New() *Builder {
	return &Builder{}
}

// Build sets the root condition
func (b *Builder) Build(cond Condition) *Builder {
	b.root = cond
	return b
}

// ToMongo generates a MongoDB filter
func (b *Builder) ToMongo() map[string]interface{} {
	if b == nil || b.root == nil {
		return map[string]interface{}{}
	}

	return b.root.ToMongo()
}

// ToSQL generates a PostgreSQL WHERE clause
func (b *Builder) ToSQL() (string, []interface{}) {
	if b == nil || b.root == nil {
		return "", nil
	}

	sql, args, _ := b.root.ToSQL(1)

	return sql, args
}

// ToSQLWithOffset generates SQL with parameter numbering starting from the given offset
func (b *Builder) ToSQLWithOffset(startParam int) (string, []interface{}) {
	if b == nil || b.root == nil {
		return "", nil
	}

	sql, args, _ := b.root.ToSQL(startParam)

	return sql, args
}

// Equalities returns the field/value pairs that the filter pins with plain equality.
// Only top-level Eq conditions and Eq conditions nested in And are considered, which is
// the same set of fields MongoDB copies into a document created by an upsert.
func (b *Builder) Equalities() map[string]interface{} {
	result := make(map[string]interface{})

	if b == nil || b.root == nil {
		return result
	}

	collectEqualities(b.root, result)

	return result
}

func collectEqualities(cond Condition, into map[string]interface{}) {
	switch c := cond.(type) {
	case *comparison:
		if c.op == opEq {
			into[c.field] = c.value
		}
	case *logical:
		if c.op != "AND" {
			return
		}

		for _, child := range c.conditions {
			collectEqualities(child, into)
		}
	}
}

// --- Constructors ---

// Eq matches documents whose field equals value
func Eq(field string, value interface{}) Condition {
	return &comparison{field: field, op: opEq, value: value}
}

// Ne matches documents whose field differs from value
func Ne(field string, value interface{}) Condition {
	return &comparison{field: field, op: opNe, value: value}
}

func Gt(field string, value interface{}) Condition {
	return &comparison{field: field, op: opGt, value: value}
}

func Lt(field string, value interface{}) Condition {
	return &comparison{field: field, op: opLt, value: value}
}

// In matches documents whose field is one of values. An empty list matches nothing.
func In(field string, values []interface{}) Condition {
	return &inCondition{field: field, values: values}
}

// InStrings is In for the common case of string identifiers.
func InStrings(field string, values []string) Condition {
	converted := make([]interface{}, len(values))
	for i, v := range values {
		converted[i] = v
	}

	return In(field, converted)
}

// And requires every condition. An empty And matches everything.
func And(conditions ...Condition) Condition {
	return &logical{op: "AND", mongoOp: "$and", empty: "TRUE", conditions: conditions}
}

// Or requires at least one condition. An empty Or matches nothing.
func Or(conditions ...Condition) Condition {
	return &logical{op: "OR", mongoOp: "$or", empty: "FALSE", conditions: conditions}
}

// --- Comparisons ---

type operator struct {
	mongo string // empty for plain equality
	sql   string
}

var (
	opEq = operator{sql: "="}
	opNe = operator{mongo: "$ne", sql: "!="}
	opGt = operator{mongo: "$gt", sql: ">"}
	opLt = operator{mongo: "$lt", sql: "<"}
)

type comparison struct {
	field string
	op    operator
	value interface{}
}

func (c *comparison) ToMongo() map[string]interface{} {
	if c.op.mongo == "" {
		return map[string]interface{}{c.field: c.value}
	}

	return map[string]interface{}{
		c.field: map[string]interface{}{c.op.mongo: c.value},
	}
}

func (c *comparison) ToSQL(paramNum int) (string, []interface{}, int) {
	return fmt.Sprintf("%s %s $%d", FieldToSQL(c.field), c.op.sql, paramNum), []interface{}{c.value}, paramNum + 1
}

type inCondition struct {
	field  string
	values []interface{}
}

func (c *inCondition) ToMongo() map[string]interface{} {
	return map[string]interface{}{
		c.field: map[string]interface{}{"$in": c.values},
	}
}

func (c *inCondition) ToSQL(paramNum int) (string, []interface{}, int) {
	if len(c.values) == 0 {
		return "FALSE", nil, paramNum
	}

	placeholders := make([]string, len(c.values))
	for i := range c.values {
		placeholders[i] = fmt.Sprintf("$%d", paramNum+i)
	}

	sql := fmt.Sprintf("%s IN (%s)", FieldToSQL(c.field), strings.Join(placeholders, ", "))

	return sql, append([]interface{}(nil), c.values...), paramNum + len(c.values)
}

// --- Logical ---

type logical struct {
	op         string
	mongoOp    string
	empty      string
	conditions []Condition
}

func (c *logical) ToMongo() map[string]interface{} {
	if len(c.conditions) == 0 {
		return map[string]interface{}{}
	}

	if c.mongoOp == "$and" {
		if merged, ok := mergeDisjoint(c.conditions); ok {
			return merged
		}
	}

	clauses := make([]interface{}, len(c.conditions))
	for i, cond := range c.conditions {
		clauses[i] = cond.ToMongo()
	}

	return map[string]interface{}{c.mongoOp: clauses}
}

// mergeDisjoint folds single-key filters on distinct fields into one document,
// the form MongoDB upserts copy equality fields from
func mergeDisjoint(conditions []Condition) (map[string]interface{}, bool) {
	merged := make(map[string]interface{}, len(conditions))

	for _, cond := range conditions {
		filter := cond.ToMongo()
		if len(filter) > 1 {
			return nil, false
		}

		for key, value := range filter {
			if _, dup := merged[key]; dup {
				return nil, false
			}

			merged[key] = value
		}
	}

	return merged, true
}

func (c *logical) ToSQL(paramNum int) (string, []interface{}, int) {
	if len(c.conditions) == 0 {
		return c.empty, nil, paramNum
	}

	parts := make([]string, 0, len(c.conditions))

	var args []interface{}

	for _, cond := range c.conditions {
		sql, condArgs, next := cond.ToSQL(paramNum)
		parts = append(parts, "("+sql+")")
		args = append(args, condArgs...)
		paramNum = next
	}

	return strings.Join(parts, " "+c.op+" "), args, paramNum
}

// --- Helper Functions ---

// FieldToSQL converts a MongoDB dot-notation field path to PostgreSQL JSONB syntax.
// Example: "metadata.organizationId" -> "document->'metadata'->>'organizationId'"
//
// Intermediate path segments use -> to stay JSONB, the final one uses ->> to extract text.
func FieldToSQL(fieldPath string) string {
	if !strings.Contains(fieldPath, ".") {
		// MongoDB's _id maps onto the id column, every other name lives in the document
		if isColumnField(fieldPath) {
			return "id"
		}

		return fmt.Sprintf("document->>'%s'", escapeLiteral(fieldPath))
	}

	parts := strings.Split(fieldPath, ".")

	var jsonbPath strings.Builder
	jsonbPath.WriteString("document")

	for i, part := range parts {
		if i < len(parts)-1 {
			jsonbPath.WriteString(fmt.Sprintf("->'%s'", escapeLiteral(part)))
		} else {
			jsonbPath.WriteString(fmt.Sprintf("->>'%s'", escapeLiteral(part)))
		}
	}

	return jsonbPath.String()
}

// isColumnField checks if a field is a table column (not JSONB)
func isColumnField(field string) bool {
	return field == "_id"
}

// escapeLiteral doubles single quotes so a field name can sit inside a SQL string literal.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
