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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCommentID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    CommentID
		wantErr bool
	}{
		{name: "string", input: `{"commentId":"c-1"}`, want: "c-1"},
		{name: "integer", input: `{"commentId":1712345678}`, want: "1712345678"},
		{name: "float", input: `{"commentId":1.5}`, want: "1.5"},
		{name: "null", input: `{"commentId":null}`, want: ""},
		{name: "object", input: `{"commentId":{"a":1}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var comment Comment

			err := json.Unmarshal([]byte(tt.input), &comment)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, comment.CommentID)
		})
	}
}

func TestCommentID_UnmarshalBSONValue(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"commentId": int32(7), "commentText": "hello"})
	require.NoError(t, err)

	var comment Comment
	require.NoError(t, bson.Unmarshal(raw, &comment))
	assert.Equal(t, CommentID("7"), comment.CommentID)
	assert.Equal(t, "hello", comment.CommentText)

	raw, err = bson.Marshal(bson.M{"commentId": "c-9"})
	require.NoError(t, err)

	require.NoError(t, bson.Unmarshal(raw, &comment))
	assert.Equal(t, CommentID("c-9"), comment.CommentID)
}

func TestCommentAnnotation_JSON(t *testing.T) {
	input := `{
		"annotationId": "ann-1",
		"metadata": {"organizationId": "org-123", "documentId": "doc-1"},
		"comments": {
			"c1": {
				"commentId": 42,
				"commentText": "looks good",
				"attachments": {"3": {"url": "/a/3", "name": "a.png", "attachmentId": 3}},
				"from": {"userId": "u-1"},
				"to": [{"userId": "u-2"}],
				"taggedUserContacts": [{"userId": "u-2", "text": "@bob"}]
			}
		}
	}`

	var annotation CommentAnnotation
	require.NoError(t, json.Unmarshal([]byte(input), &annotation))

	assert.Equal(t, "ann-1", annotation.AnnotationKey())
	assert.Equal(t, "org-123", annotation.Metadata.OrganizationID)

	comment := annotation.Comments["c1"]
	assert.Equal(t, CommentID("42"), comment.CommentID)
	assert.Equal(t, 3, comment.Attachments[3].AttachmentID)
	assert.Equal(t, "u-1", comment.From.UserID)
	assert.Equal(t, "@bob", comment.TaggedUserContacts[0].Text)

	out, err := json.Marshal(annotation.Metadata)
	require.NoError(t, err)
	assert.JSONEq(t, `{"organizationId":"org-123","documentId":"doc-1"}`, string(out))
}

func TestUser_JSONWithExtras(t *testing.T) {
	var user User
	require.NoError(t, json.Unmarshal([]byte(`{
		"userId": "u-1",
		"name": "Ada",
		"isAdmin": true,
		"department": "research",
		"level": 3
	}`), &user))

	assert.Equal(t, "u-1", user.UserID)
	assert.Equal(t, "Ada", user.Name)
	require.NotNil(t, user.IsAdmin)
	assert.True(t, *user.IsAdmin)
	assert.Equal(t, map[string]interface{}{"department": "research", "level": float64(3)}, user.Extras)

	out, err := json.Marshal(user)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u-1","name":"Ada","isAdmin":true,"department":"research","level":3}`, string(out))
}

func TestUser_CanonicalFieldsWinOverExtras(t *testing.T) {
	user := User{
		UserID: "u-1",
		Extras: map[string]interface{}{"userId": "shadow", "team": "infra"},
	}

	assert.Equal(t, map[string]interface{}{"userId": "u-1", "team": "infra"}, user.Fields())
}

func TestUser_SetField(t *testing.T) {
	var user User

	assert.True(t, user.SetField(UserFieldUserID, 1001))
	assert.Equal(t, "1001", user.UserID)

	assert.True(t, user.SetField(UserFieldEmail, "ada@example.com"))
	assert.Equal(t, "ada@example.com", user.Email)

	assert.False(t, user.SetField(UserFieldIsAdmin, "yes"))
	assert.Nil(t, user.IsAdmin)

	assert.False(t, user.SetField(UserFieldName, map[string]interface{}{"first": "Ada"}))
	assert.False(t, user.SetField(UserFieldColor, nil))
	assert.False(t, user.SetField("department", "research"))
}

func TestUser_InvalidCanonicalTypeGoesToExtras(t *testing.T) {
	var user User
	require.NoError(t, json.Unmarshal([]byte(`{"userId":"u-1","isAdmin":"yes"}`), &user))

	assert.Nil(t, user.IsAdmin)
	assert.Equal(t, "yes", user.Extras["isAdmin"])
}

func TestResponse_JSON(t *testing.T) {
	out, err := json.Marshal(OKNoData[Empty]())
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"statusCode":200}`, string(out))

	out, err = json.Marshal(OK(map[string]string{"a": "b"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"a":"b"},"success":true,"statusCode":200}`, string(out))

	out, err = json.Marshal(Fail[Empty](http.StatusNotFound, ErrorCodeNotFound, "Attachment not found"))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"success":false,"statusCode":404,"error":"Attachment not found","errorCode":"NOT_FOUND"}`,
		string(out))
}

func TestResolverAction_Known(t *testing.T) {
	assert.True(t, ActionCommentAnnotationAdd.Known())
	assert.True(t, ResolverAction("attachment.delete").Known())
	assert.False(t, ResolverAction("comment.pin").Known())
}

func TestAttachmentURL(t *testing.T) {
	assert.Equal(t, "/api/velt/attachments/get/42", AttachmentURL(42))
}
