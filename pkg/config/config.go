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

// Package config holds the operator-supplied settings of the annotation store: database
// connection parameters, collection names, the user schema mapping and the credentials used
// to talk to the token API.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DatabaseType names a supported storage engine
type DatabaseType string

const (
	DatabaseTypeMongoDB    DatabaseType = "mongodb"
	DatabaseTypePostgreSQL DatabaseType = "postgresql"
)

// CollectionKind is the logical name of a collection, independent of operator overrides
type CollectionKind string

const (
	CollectionComments    CollectionKind = "comments"
	CollectionReactions   CollectionKind = "reactions"
	CollectionAttachments CollectionKind = "attachments"
	CollectionUsers       CollectionKind = "users"
)

// Default values for optional settings
const (
	DefaultTokenEndpoint   = "https://api.velt.dev/v2/auth/token/get"
	DefaultTokenTimeout    = 10 * time.Second
	DefaultTokenRetryMax   = 0 // one request unless retries are configured
	DefaultPostgreSQLPort  = 5432
	DefaultPostgresSSLMode = "prefer"
)

var defaultCollectionNames = map[CollectionKind]string{
	CollectionComments:    "comment_annotations",
	CollectionReactions:   "reaction_annotations",
	CollectionAttachments: "attachments",
	CollectionUsers:       "users",
}

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// DatabaseConfig holds the connection parameters of the backing store
type DatabaseConfig struct {
	Type             DatabaseType `yaml:"type" toml:"type" env:"DATASTORE_PROVIDER"`
	Host             string       `yaml:"host" toml:"host" env:"DATASTORE_HOST"`
	Port             int          `yaml:"port" toml:"port" env:"DATASTORE_PORT"`
	Username         string       `yaml:"username" toml:"username" env:"DATASTORE_USERNAME"`
	Password         string       `yaml:"password" toml:"password" env:"DATASTORE_PASSWORD"`
	AuthDatabase     string       `yaml:"authDatabase" toml:"authDatabase" env:"DATASTORE_AUTH_DATABASE"`
	DatabaseName     string       `yaml:"databaseName" toml:"databaseName" env:"DATASTORE_DATABASE"`
	ConnectionString string       `yaml:"connectionString" toml:"connectionString" env:"DATASTORE_CONNECTION_STRING"`
	UseSRV           bool         `yaml:"useSrv" toml:"useSrv" env:"DATASTORE_USE_SRV"`
	SSLMode          string       `yaml:"sslMode" toml:"sslMode" env:"DATASTORE_SSLMODE"`
}

// TokenConfig configures the outbound call to the token API
type TokenConfig struct {
	Endpoint string        `yaml:"endpoint" toml:"endpoint" env:"VELT_TOKEN_ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" toml:"timeout" env:"VELT_TOKEN_TIMEOUT"`
	RetryMax *int          `yaml:"retryMax" toml:"retryMax"`
}

// AuditConfig configures the rotating audit log of data mutations
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled" env:"AUDIT_ENABLED"`
	Path       string `yaml:"path" toml:"path" env:"AUDIT_LOG_PATH"`
	MaxSizeMB  int    `yaml:"maxSizeMB" toml:"maxSizeMB" env:"AUDIT_LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"maxBackups" toml:"maxBackups" env:"AUDIT_LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"maxAgeDays" toml:"maxAgeDays" env:"AUDIT_LOG_MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" toml:"compress" env:"AUDIT_LOG_COMPRESS"`
}

// Config is the complete annotation store configuration.
//
// APIKeyOverride and AuthTokenOverride are pointers so that an explicitly configured empty
// value still takes precedence over the environment.
type Config struct {
	Database    DatabaseConfig         `yaml:"database" toml:"database"`
	Collections map[string]string      `yaml:"collections" toml:"collections"`
	UserSchema  map[string]interface{} `yaml:"userSchema" toml:"userSchema"`
	Token       TokenConfig            `yaml:"token" toml:"token"`
	Audit       AuditConfig            `yaml:"audit" toml:"audit"`

	APIKeyOverride    *string `yaml:"apiKey" toml:"apiKey"`
	AuthTokenOverride *string `yaml:"authToken" toml:"authToken"`
}

// ApplyDefaults fills unset optional values
func (c *Config) ApplyDefaults() {
	if c.Database.Type == "" {
		c.Database.Type = DatabaseTypeMongoDB
	}

	if c.Database.Type == DatabaseTypePostgreSQL {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultPostgreSQLPort
		}

		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultPostgresSSLMode
		}
	}

	if c.Token.Endpoint == "" {
		c.Token.Endpoint = DefaultTokenEndpoint
	}

	if c.Token.Timeout <= 0 {
		c.Token.Timeout = DefaultTokenTimeout
	}

	if c.Token.RetryMax == nil {
		retryMax := DefaultTokenRetryMax
		c.Token.RetryMax = &retryMax
	}
}

// Validate checks that every required database field is present. It never touches the network.
func (c *Config) Validate() error {
	db := c.Database

	switch db.Type {
	case "", DatabaseTypeMongoDB, DatabaseTypePostgreSQL:
	default:
		return fmt.Errorf("%w: unsupported database type %q", ErrInvalidConfig, db.Type)
	}

	required := []struct {
		name  string
		value string
	}{
		{"host", db.Host},
		{"username", db.Username},
		{"password", db.Password},
		{"databaseName", db.DatabaseName},
	}

	if db.Type != DatabaseTypePostgreSQL {
		required = append(required, struct {
			name  string
			value string
		}{"authDatabase", db.AuthDatabase})
	}

	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%w: database configuration must include '%s'", ErrInvalidConfig, field.name)
		}
	}

	return nil
}

// CollectionName returns the operator override for kind, or its default name
func (c *Config) CollectionName(kind CollectionKind) string {
	if name, ok := c.Collections[string(kind)]; ok && name != "" {
		return name
	}

	if name, ok := defaultCollectionNames[kind]; ok {
		return name
	}

	return string(kind)
}

// CollectionNames returns the resolved names of all known collections
func (c *Config) CollectionNames() map[CollectionKind]string {
	names := make(map[CollectionKind]string, len(defaultCollectionNames))
	for kind := range defaultCollectionNames {
		names[kind] = c.CollectionName(kind)
	}

	return names
}

// APIKey returns the configured API key, falling back to VELT_API_KEY
func (c *Config) APIKey() string {
	if c.APIKeyOverride != nil {
		return *c.APIKeyOverride
	}

	return loadCredentials().APIKey
}

// AuthToken returns the configured auth token, falling back to VELT_AUTH_TOKEN
func (c *Config) AuthToken() string {
	if c.AuthTokenOverride != nil {
		return *c.AuthTokenOverride
	}

	return loadCredentials().AuthToken
}

// TokenRetryMax returns the configured retry budget for the token API
func (c *Config) TokenRetryMax() int {
	if c.Token.RetryMax == nil {
		return DefaultTokenRetryMax
	}

	return *c.Token.RetryMax
}

// LogSummary logs the non-secret parts of the configuration
func (c *Config) LogSummary() {
	slog.Info("Loaded annotation store configuration",
		"databaseType", c.Database.Type,
		"host", c.Database.Host,
		"database", c.Database.DatabaseName,
		"connectionStringOverride", c.Database.ConnectionString != "",
		"collections", c.CollectionNames(),
		"userSchemaFields", len(c.UserSchema),
		"auditEnabled", c.Audit.Enabled)
}
