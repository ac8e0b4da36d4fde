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

package model

import (
	"encoding/json"
	"fmt"
)

// Canonical user field names
const (
	UserFieldUserID         = "userId"
	UserFieldName           = "name"
	UserFieldPhotoURL       = "photoUrl"
	UserFieldEmail          = "email"
	UserFieldColor          = "color"
	UserFieldTextColor      = "textColor"
	UserFieldIsAdmin        = "isAdmin"
	UserFieldInitial        = "initial"
	UserFieldOrganizationID = "organizationId"
)

// CanonicalUserFields lists the canonical user fields in resolution order
var CanonicalUserFields = []string{
	UserFieldUserID,
	UserFieldName,
	UserFieldPhotoURL,
	UserFieldEmail,
	UserFieldColor,
	UserFieldTextColor,
	UserFieldIsAdmin,
	UserFieldInitial,
	UserFieldOrganizationID,
}

// IsCanonicalUserField reports whether name is one of CanonicalUserFields
func IsCanonicalUserField(name string) bool {
	for _, field := range CanonicalUserFields {
		if field == name {
			return true
		}
	}

	return false
}

// User is the canonical user shape. Extras carries operator-specific fields that are passed
// through untouched; on the wire they sit next to the canonical fields.
type User struct {
	UserID         string `json:"userId" bson:"userId"`
	Name           string `json:"name,omitempty" bson:"name,omitempty"`
	PhotoURL       string `json:"photoUrl,omitempty" bson:"photoUrl,omitempty"`
	Email          string `json:"email,omitempty" bson:"email,omitempty"`
	Color          string `json:"color,omitempty" bson:"color,omitempty"`
	TextColor      string `json:"textColor,omitempty" bson:"textColor,omitempty"`
	IsAdmin        *bool  `json:"isAdmin,omitempty" bson:"isAdmin,omitempty"`
	Initial        string `json:"initial,omitempty" bson:"initial,omitempty"`
	OrganizationID string `json:"organizationId,omitempty" bson:"organizationId,omitempty"`

	Extras map[string]interface{} `json:"-" bson:"-"`
}

// SetField assigns a canonical field from a raw document value. Scalars are rendered as text for
// string fields and isAdmin only accepts a bool. It reports whether the value was taken.
func (u *User) SetField(name string, value interface{}) bool {
	if name == UserFieldIsAdmin {
		b, ok := value.(bool)
		if !ok {
			return false
		}

		u.IsAdmin = &b

		return true
	}

	target := u.stringField(name)
	if target == nil {
		return false
	}

	switch v := value.(type) {
	case nil:
		return false
	case string:
		*target = v
	case map[string]interface{}, []interface{}:
		return false
	default:
		*target = fmt.Sprint(v)
	}

	return true
}

func (u *User) stringField(name string) *string {
	switch name {
	case UserFieldUserID:
		return &u.UserID
	case UserFieldName:
		return &u.Name
	case UserFieldPhotoURL:
		return &u.PhotoURL
	case UserFieldEmail:
		return &u.Email
	case UserFieldColor:
		return &u.Color
	case UserFieldTextColor:
		return &u.TextColor
	case UserFieldInitial:
		return &u.Initial
	case UserFieldOrganizationID:
		return &u.OrganizationID
	default:
		return nil
	}
}

// Fields flattens the user into one map: extras first, then every non-empty canonical field
func (u User) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, len(u.Extras)+len(CanonicalUserFields))
	for key, value := range u.Extras {
		fields[key] = value
	}

	for _, name := range CanonicalUserFields {
		if name == UserFieldIsAdmin {
			if u.IsAdmin != nil {
				fields[name] = *u.IsAdmin
			}

			continue
		}

		if value := *u.stringField(name); value != "" {
			fields[name] = value
		}
	}

	return fields
}

// MarshalJSON writes canonical fields and extras side by side
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Fields())
}

// UnmarshalJSON reads canonical fields and collects every other key into Extras
func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = User{}

	for key, value := range raw {
		if IsCanonicalUserField(key) {
			if u.SetField(key, value) {
				continue
			}
		}

		if u.Extras == nil {
			u.Extras = make(map[string]interface{})
		}

		u.Extras[key] = value
	}

	return nil
}
