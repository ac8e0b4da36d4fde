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

package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	managedCloudDomain = ".mongodb.net"
	srvScheme          = "mongodb+srv://"
	directScheme       = "mongodb://"
	managedCloudParams = "&retryWrites=true&w=majority"
)

// IsManagedCloudHost reports whether host belongs to the managed MongoDB cloud
func IsManagedCloudHost(host string) bool {
	return strings.Contains(host, managedCloudDomain)
}

// MongoURI builds the MongoDB connection URI. A non-empty ConnectionString is used verbatim.
// Credentials are query-escaped so that reserved characters survive inside the URI.
func (d DatabaseConfig) MongoURI() string {
	if d.ConnectionString != "" {
		return d.ConnectionString
	}

	user := url.QueryEscape(d.Username)
	pass := url.QueryEscape(d.Password)
	host := d.Host

	switch {
	case strings.Contains(host, srvScheme):
		// The operator pasted a full SRV URI into host; keep only the host part
		bare := stripHost(strings.Replace(host, srvScheme, "", 1))

		return fmt.Sprintf("%s%s:%s@%s/%s?authSource=%s",
			srvScheme, user, pass, bare, d.DatabaseName, d.AuthDatabase)
	case strings.HasPrefix(host, directScheme):
		bare := stripHost(strings.TrimPrefix(host, directScheme))
		if IsManagedCloudHost(bare) {
			return srvURI(user, pass, bare, d.DatabaseName, d.AuthDatabase)
		}

		return fmt.Sprintf("%s%s:%s@%s/%s?authSource=%s",
			directScheme, user, pass, bare, d.DatabaseName, d.AuthDatabase)
	case d.UseSRV || IsManagedCloudHost(host):
		return srvURI(user, pass, host, d.DatabaseName, d.AuthDatabase)
	default:
		return fmt.Sprintf("%s%s:%s@%s/%s?authSource=%s",
			directScheme, user, pass, host, d.DatabaseName, d.AuthDatabase)
	}
}

// UsesTLS reports whether the connection targets the managed cloud through a non-SRV URI,
// in which case TLS has to be enabled explicitly
func (d DatabaseConfig) UsesTLS() bool {
	uri := d.MongoURI()

	return IsManagedCloudHost(uri) && !strings.HasPrefix(uri, srvScheme)
}

// PostgresDSN builds a lib/pq key/value connection string
func (d DatabaseConfig) PostgresDSN() string {
	if d.ConnectionString != "" {
		return d.ConnectionString
	}

	port := d.Port
	if port == 0 {
		port = DefaultPostgreSQLPort
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = DefaultPostgresSSLMode
	}

	parts := []string{
		"host=" + quoteDSNValue(d.Host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + quoteDSNValue(d.DatabaseName),
		"user=" + quoteDSNValue(d.Username),
		"password=" + quoteDSNValue(d.Password),
		"sslmode=" + quoteDSNValue(sslMode),
	}

	return strings.Join(parts, " ")
}

func srvURI(user, pass, host, database, authSource string) string {
	return fmt.Sprintf("%s%s:%s@%s/%s?authSource=%s%s",
		srvScheme, user, pass, host, database, authSource, managedCloudParams)
}

// stripHost drops any path or query after the host
func stripHost(host string) string {
	if idx := strings.Index(host, "/"); idx >= 0 {
		return host[:idx]
	}

	return host
}

func quoteDSNValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}

	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)

	return "'" + escaped + "'"
}
