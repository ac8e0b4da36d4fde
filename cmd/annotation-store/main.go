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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/backend"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/flags"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/logger"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/server"
)

var (
	// These variables will be populated during the build process
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const closeTimeout = 10 * time.Second

func main() {
	logger.SetDefaultStructuredLogger("annotation-store", version)

	opts, err := flags.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}

		slog.Error("Invalid command line", "error", err)
		os.Exit(2)
	}

	if opts.ShowVersion {
		fmt.Printf("annotation-store %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	slog.Info("Starting annotation-store", "version", version, "commit", commit, "date", date)

	if err := run(opts); err != nil {
		slog.Error("Application encountered a fatal error", "error", err)
		os.Exit(1)
	}
}

func run(opts *flags.Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.LogSummary()

	b, err := backend.New(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		if err := b.Close(closeCtx); err != nil {
			slog.Error("Failed to close backend", "error", err)
		}
	}()

	if err := b.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to datastore: %w", err)
	}

	if opts.ProvisionOnly {
		if !b.Manager().IndexesProvisioned() {
			return errors.New("index provisioning did not complete")
		}

		slog.Info("Indexes provisioned, exiting")

		return nil
	}

	srv := server.NewServer(
		server.WithPort(opts.MetricsPort),
		server.WithPrometheusMetrics(),
		server.WithHealthCheck(b.Manager()),
		server.WithReadinessCheck(b.Manager()),
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting metrics server", "port", opts.MetricsPort)
		return srv.Serve(gCtx)
	})

	return g.Wait()
}
