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
	"context"
	"fmt"
	"sort"
	"sync"

	"log/slog"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
)

// ProviderFactory is a function that opens a store adapter from configuration
type ProviderFactory func(ctx context.Context, cfg *config.Config) (StoreAdapter, error)

// Global provider registry
var (
	providerRegistry = make(map[DataStoreProvider]ProviderFactory)
	registryMutex    sync.RWMutex
)

// RegisterProvider registers a datastore provider with the global registry
func RegisterProvider(provider DataStoreProvider, factory ProviderFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	providerRegistry[provider] = factory

	slog.Debug("Registered datastore provider", "provider", provider)
}

// GetProvider gets a provider factory from the global registry
func GetProvider(provider DataStoreProvider) ProviderFactory {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	return providerRegistry[provider]
}

// SupportedProviders returns a sorted list of all registered provider types
func SupportedProviders() []DataStoreProvider {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	providers := make([]DataStoreProvider, 0, len(providerRegistry))
	for provider := range providerRegistry {
		providers = append(providers, provider)
	}

	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })

	return providers
}

// Open creates a store adapter with the provider named by the configuration
func Open(ctx context.Context, cfg *config.Config) (StoreAdapter, error) {
	provider := DataStoreProvider(cfg.Database.Type)
	if provider == "" {
		provider = ProviderMongoDB
	}

	factory := GetProvider(provider)
	if factory == nil {
		return nil, NewProviderNotFoundError(provider,
			fmt.Sprintf("unsupported datastore provider. Supported providers: %v", SupportedProviders()), nil)
	}

	slog.Info("Creating datastore", "provider", provider)

	adapter, err := factory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return adapter, nil
}
