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

import "net/http"

// ErrorCode is the machine-readable failure class of a response
type ErrorCode string

const (
	ErrorCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorCodeValidationError ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrorCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrorCodeInternalError   ErrorCode = "INTERNAL_ERROR"
	ErrorCodeConfigError     ErrorCode = "CONFIG_ERROR"
	ErrorCodeVeltAPIError    ErrorCode = "VELT_API_ERROR"
	ErrorCodeNoToken         ErrorCode = "NO_TOKEN"
)

// Response is the uniform envelope of every entity operation. A nil Data is omitted on the wire,
// which is how annotation saves and deletes report success.
type Response[T any] struct {
	Data       *T        `json:"data,omitempty"`
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode"`
	Error      string    `json:"error,omitempty"`
	ErrorCode  ErrorCode `json:"errorCode,omitempty"`
}

// OK wraps data in a successful envelope
func OK[T any](data T) Response[T] {
	return Response[T]{Data: &data, Success: true, StatusCode: http.StatusOK}
}

// OKNoData is a successful envelope without a data field
func OKNoData[T any]() Response[T] {
	return Response[T]{Success: true, StatusCode: http.StatusOK}
}

// Fail builds an error envelope
func Fail[T any](statusCode int, code ErrorCode, message string) Response[T] {
	return Response[T]{StatusCode: statusCode, Error: message, ErrorCode: code}
}

// Empty is the data type of envelopes that never carry data
type Empty struct{}

// TokenRequest asks the token API for a user token
type TokenRequest struct {
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	Email          string `json:"email,omitempty"`
	IsAdmin        *bool  `json:"isAdmin,omitempty"`
}

// TokenData is the payload of a successful token request
type TokenData struct {
	Token string `json:"token"`
}
