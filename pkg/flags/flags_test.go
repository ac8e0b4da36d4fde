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

package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
)

func TestParse(t *testing.T) {
	opts, err := Parse("annotation-store", []string{"-config", "/etc/annotation-store/config.yaml", "-metrics-port", "9090", "-provision-only"})
	require.NoError(t, err)

	assert.Equal(t, "/etc/annotation-store/config.yaml", opts.ConfigPath)
	assert.Equal(t, 9090, opts.MetricsPort)
	assert.True(t, opts.ProvisionOnly)
	assert.False(t, opts.ShowVersion)
}

func TestParseDefaults(t *testing.T) {
	opts, err := Parse("annotation-store", nil)
	require.NoError(t, err)

	assert.Empty(t, opts.ConfigPath)
	assert.Equal(t, 2112, opts.MetricsPort)
	assert.False(t, opts.ProvisionOnly)
}

func TestParseRejects(t *testing.T) {
	_, err := Parse("annotation-store", []string{"-metrics-port", "70000"})
	assert.Error(t, err)

	_, err = Parse("annotation-store", []string{"-unknown"})
	assert.Error(t, err)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "/from/env.toml")

	assert.Equal(t, "/from/flag.yaml", (&Options{ConfigPath: "/from/flag.yaml"}).ResolveConfigPath())
	assert.Equal(t, "/from/env.toml", (&Options{}).ResolveConfigPath())

	t.Setenv(config.EnvConfigPath, "")
	assert.Empty(t, (&Options{}).ResolveConfigPath())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := (&Options{ConfigPath: "/nonexistent/annotation-store.yaml"}).LoadConfig()
	assert.Error(t, err)
}
