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
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Environment variable names consulted when the configuration leaves a credential unset
const (
	EnvVeltAPIKey    = "VELT_API_KEY"
	EnvVeltAuthToken = "VELT_AUTH_TOKEN" // nolint:gosec
	EnvConfigPath    = "ANNOTATION_STORE_CONFIG"
)

type credentials struct {
	APIKey    string `env:"VELT_API_KEY"`
	AuthToken string `env:"VELT_AUTH_TOKEN"`
}

// loadCredentials reads the credential variables on every call so that rotated values are picked up
func loadCredentials() credentials {
	creds, err := env.ParseAs[credentials]()
	if err != nil {
		slog.Warn("Failed to parse credential environment variables", "error", err)
		return credentials{}
	}

	return creds
}

// Load reads a configuration file, applies environment overrides and defaults, then validates it.
// The file format is picked by extension: .toml is decoded as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	}

	return finalize(cfg)
}

// LoadFromEnv builds a configuration purely from environment variables
func LoadFromEnv() (*Config, error) {
	return finalize(&Config{})
}

func finalize(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
