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
	"log/slog"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/model"
)

// SchemaMapping translates user documents stored in an operator-defined shape into model.User.
// Each canonical field maps to an ordered list of candidate source keys; the first candidate
// present in a document wins.
type SchemaMapping struct {
	candidates map[string][]string
	sources    map[string]struct{}
	configured bool
}

// NewSchemaMapping builds the resolution table from the userSchema section of the config.
// A string value is a single candidate and a list of strings is used in order. Any other
// value leaves the field unmapped.
func NewSchemaMapping(raw map[string]interface{}) *SchemaMapping {
	m := &SchemaMapping{
		candidates: make(map[string][]string),
		sources:    make(map[string]struct{}),
		configured: len(raw) > 0,
	}

	for field, value := range raw {
		candidates, ok := toCandidates(value)
		if !ok {
			slog.Warn("Ignoring user schema entry with unsupported shape", "field", field)
			continue
		}

		m.candidates[field] = candidates

		for _, source := range candidates {
			m.sources[source] = struct{}{}
		}
	}

	return m
}

func toCandidates(value interface{}) ([]string, bool) {
	switch v := value.(type) {
	case string:
		return []string{v}, true
	case []string:
		return append([]string(nil), v...), true
	case []interface{}:
		candidates := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}

			candidates = append(candidates, s)
		}

		return candidates, true
	default:
		return nil, false
	}
}

// Configured reports whether any mapping was supplied
func (m *SchemaMapping) Configured() bool {
	return m.configured
}

// Resolve reads canonical from doc. Unmapped fields are read under their own name.
func (m *SchemaMapping) Resolve(doc map[string]interface{}, canonical string) (interface{}, bool) {
	candidates, ok := m.candidates[canonical]
	if !ok {
		value, present := doc[canonical]
		return value, present
	}

	for _, source := range candidates {
		if value, present := doc[source]; present {
			return value, true
		}
	}

	return nil, false
}

// QueryField returns the stored key used to filter on canonical
func (m *SchemaMapping) QueryField(canonical string) string {
	if candidates := m.candidates[canonical]; len(candidates) > 0 {
		return candidates[0]
	}

	return canonical
}

// Transform converts a stored document into a User. Keys that are neither a canonical field
// nor a mapped source are kept in Extras; _id is always dropped.
func (m *SchemaMapping) Transform(doc map[string]interface{}) model.User {
	var user model.User

	if !m.configured {
		for key, value := range doc {
			if key == "_id" {
				continue
			}

			if model.IsCanonicalUserField(key) && user.SetField(key, value) {
				continue
			}

			setExtra(&user, key, value)
		}

		return user
	}

	resolved := make(map[string]struct{}, len(model.CanonicalUserFields))

	for _, field := range model.CanonicalUserFields {
		value, present := m.Resolve(doc, field)
		if !present || value == nil {
			continue
		}

		resolved[field] = struct{}{}

		if !user.SetField(field, value) {
			setExtra(&user, field, value)
		}
	}

	for key, value := range doc {
		if key == "_id" {
			continue
		}

		if _, ok := resolved[key]; ok {
			continue
		}

		if _, mapped := m.sources[key]; mapped {
			continue
		}

		if model.IsCanonicalUserField(key) && user.SetField(key, value) {
			continue
		}

		setExtra(&user, key, value)
	}

	return user
}

func setExtra(user *model.User, key string, value interface{}) {
	if user.Extras == nil {
		user.Extras = make(map[string]interface{})
	}

	user.Extras[key] = value
}
