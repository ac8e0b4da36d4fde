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

// Package metrics declares the Prometheus collectors exported by the annotation store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_store_operations_total",
			Help: "Total number of datastore operations by outcome.",
		},
		[]string{"provider", "collection", "operation", "status"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "annotation_store_operation_duration_seconds",
			Help:    "Histogram of datastore operation durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "collection", "operation"},
	)

	IndexCreationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_store_index_creations_total",
			Help: "Total number of index creation attempts during provisioning.",
		},
		[]string{"collection", "status"},
	)

	ServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_store_service_requests_total",
			Help: "Total number of entity service calls by response status code.",
		},
		[]string{"service", "operation", "status_code"},
	)

	TokenRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotation_store_token_requests_total",
			Help: "Total number of outbound token requests by result code.",
		},
		[]string{"result"},
	)

	// performance metrics
	TokenRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotation_store_token_request_duration_seconds",
			Help:    "Histogram of outbound token request durations.",
			Buckets: prometheus.DefBuckets,
		},
	)
)
