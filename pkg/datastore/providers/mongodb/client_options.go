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

package mongodb

import (
	"crypto/tls"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
)

// Pool and timeout settings for the shared client
const (
	MaxPoolSize            uint64 = 5
	MinPoolSize            uint64 = 1
	MaxConnIdleTime               = 30 * time.Second
	ServerSelectionTimeout        = 10 * time.Second
	SocketTimeout                 = 45 * time.Second
	AppName                       = "annotation-store"
)

// ClientOptions builds the driver options for db. TLS is switched on explicitly when a
// managed-cloud host is reached through a direct URI; SRV URIs enable it on their own.
func ClientOptions(db config.DatabaseConfig) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(db.MongoURI()).
		SetAppName(AppName).
		SetMaxPoolSize(MaxPoolSize).
		SetMinPoolSize(MinPoolSize).
		SetMaxConnIdleTime(MaxConnIdleTime).
		SetServerSelectionTimeout(ServerSelectionTimeout).
		SetSocketTimeout(SocketTimeout).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetReadPreference(readpref.Primary()).
		SetWriteConcern(writeconcern.Majority()).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	if db.UsesTLS() {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}
