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

// Package flags defines the command-line surface of the annotation-store binary
package flags

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/server"
)

// Options holds the parsed command-line values
type Options struct {
	ConfigPath    string
	MetricsPort   int
	ProvisionOnly bool
	ShowVersion   bool
}

// Register binds the annotation-store flags on fs
func Register(fs *flag.FlagSet) *Options {
	opts := &Options{}

	fs.StringVar(&opts.ConfigPath, "config", "",
		"path to a YAML or TOML configuration file (falls back to $"+config.EnvConfigPath+
			", then to environment variables only)")
	fs.IntVar(&opts.MetricsPort, "metrics-port", server.DefaultPort,
		"port serving /metrics, /healthz and /readyz")
	fs.BoolVar(&opts.ProvisionOnly, "provision-only", false,
		"connect, ensure indexes and exit")
	fs.BoolVar(&opts.ShowVersion, "version", false, "print version and exit")

	return opts
}

// Parse registers the flags on a new FlagSet named name and parses args
func Parse(name string, args []string) (*Options, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	opts := Register(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.MetricsPort < 0 || opts.MetricsPort > 65535 {
		return nil, fmt.Errorf("metrics-port %d out of range", opts.MetricsPort)
	}

	return opts, nil
}

// ResolveConfigPath returns the -config value, or the path in ANNOTATION_STORE_CONFIG when the
// flag was not given. An empty result means configuration comes from the environment alone.
func (o *Options) ResolveConfigPath() string {
	if o.ConfigPath != "" {
		slog.Info("Using configuration file from flag", "path", o.ConfigPath)
		return o.ConfigPath
	}

	if path := os.Getenv(config.EnvConfigPath); path != "" {
		slog.Info("Using configuration file from environment", "path", path, "variable", config.EnvConfigPath)
		return path
	}

	slog.Info("No configuration file given, reading configuration from environment")

	return ""
}

// LoadConfig loads the configuration selected by ResolveConfigPath
func (o *Options) LoadConfig() (*config.Config, error) {
	if path := o.ResolveConfigPath(); path != "" {
		return config.Load(path)
	}

	return config.LoadFromEnv()
}
