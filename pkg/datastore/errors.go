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

package datastore

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of datastore errors
type ErrorType string

const (
	// Connection errors
	ErrorTypeConnection     ErrorType = "connection"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeTimeout        ErrorType = "timeout"

	// Operation errors
	ErrorTypeQuery  ErrorType = "query"
	ErrorTypeInsert ErrorType = "insert"
	ErrorTypeUpdate ErrorType = "update"
	ErrorTypeDelete ErrorType = "delete"
	ErrorTypeIndex  ErrorType = "index"

	// Data errors
	ErrorTypeDocumentNotFound ErrorType = "document_not_found"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeSerialization    ErrorType = "serialization"

	// Configuration errors
	ErrorTypeConfiguration    ErrorType = "configuration"
	ErrorTypeProviderNotFound ErrorType = "provider_not_found"

	// Unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// DatastoreError represents a structured error from datastore operations
type DatastoreError struct {
	Type     ErrorType              `json:"type"`
	Provider DataStoreProvider      `json:"provider"`
	Message  string                 `json:"message"`
	Cause    error                  `json:"-"` // Original error, not serialized
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Error implements the error interface
func (e *DatastoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Provider, e.Type, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%s:%s] %s", e.Provider, e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping
func (e *DatastoreError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is()
func (e *DatastoreError) Is(target error) bool {
	var datastoreErr *DatastoreError
	if errors.As(target, &datastoreErr) {
		return e.Type == datastoreErr.Type && e.Provider == datastoreErr.Provider
	}

	return false
}

// NewDatastoreError creates a new structured datastore error
func NewDatastoreError(errorType ErrorType, provider DataStoreProvider, message string, cause error) *DatastoreError {
	return &DatastoreError{
		Type:     errorType,
		Provider: provider,
		Message:  message,
		Cause:    cause,
		Metadata: make(map[string]interface{}),
	}
}

// WithMetadata adds metadata to the error
func (e *DatastoreError) WithMetadata(key string, value interface{}) *DatastoreError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}

	e.Metadata[key] = value

	return e
}

// Error types grouped by origin
var (
	connectionTypes = []ErrorType{ErrorTypeConnection, ErrorTypeAuthentication, ErrorTypeTimeout}
	databaseTypes   = append([]ErrorType{
		ErrorTypeQuery, ErrorTypeInsert, ErrorTypeUpdate, ErrorTypeDelete, ErrorTypeIndex, ErrorTypeSerialization,
	}, connectionTypes...)
)

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown when err is not a DatastoreError
func TypeOf(err error) ErrorType {
	var datastoreErr *DatastoreError
	if errors.As(err, &datastoreErr) {
		return datastoreErr.Type
	}

	return ErrorTypeUnknown
}

func hasType(err error, types ...ErrorType) bool {
	var datastoreErr *DatastoreError
	if !errors.As(err, &datastoreErr) {
		return false
	}

	for _, t := range types {
		if datastoreErr.Type == t {
			return true
		}
	}

	return false
}

// IsConnectionError covers connection, authentication and timeout failures
func IsConnectionError(err error) bool {
	return hasType(err, connectionTypes...)
}

func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeDocumentNotFound)
}

// IsValidationError reports errors raised for bad caller input
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsDatabaseError reports whether err came from the storage engine or the connection to it.
// Validation, configuration and not-found errors are not database errors.
func IsDatabaseError(err error) bool {
	return hasType(err, databaseTypes...)
}

// Constructors, one per ErrorType

func NewConnectionError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeConnection, provider, message, cause)
}

func NewTimeoutError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeTimeout, provider, message, cause)
}

func NewQueryError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeQuery, provider, message, cause)
}

func NewInsertError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeInsert, provider, message, cause)
}

func NewUpdateError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeUpdate, provider, message, cause)
}

func NewDeleteError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeDelete, provider, message, cause)
}

func NewIndexError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeIndex, provider, message, cause)
}

func NewDocumentNotFoundError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeDocumentNotFound, provider, message, cause)
}

func NewValidationError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeValidation, provider, message, cause)
}

func NewConfigurationError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeConfiguration, provider, message, cause)
}

func NewProviderNotFoundError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeProviderNotFound, provider, message, cause)
}

func NewSerializationError(provider DataStoreProvider, message string, cause error) *DatastoreError {
	return NewDatastoreError(ErrorTypeSerialization, provider, message, cause)
}
