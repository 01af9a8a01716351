// Copyright (c) 2025, Logilab.  All rights reserved.
// Portions Copyright (c) 2025, NVIDIA CORPORATION.
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

package api

import (
	"context"
	"log/slog"

	"github.com/logilab/onyxia-composer/pkg/config"
	"github.com/logilab/onyxia-composer/pkg/logging"
	"github.com/logilab/onyxia-composer/pkg/server"
	"github.com/logilab/onyxia-composer/pkg/service"
)

const (
	name           = "composerd"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/logilab/onyxia-composer/pkg/api.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Serve loads the configuration at configPath (defaults only when empty),
// starts the API server and blocks until shutdown. opts are applied after
// the composer routes are registered.
func Serve(ctx context.Context, configPath string, opts ...server.Option) error {
	logging.SetDefaultStructuredLogger(name, version)
	slog.Info("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("invalid configuration", "path", configPath, "error", err)
		return err
	}
	slog.Info("chart repository",
		"repoDir", cfg.RepoDir,
		"mainBranch", cfg.MainBranch,
		"publishBranch", cfg.PublishBranch,
		"contextRegistry", cfg.ContextRegistry,
	)

	h := NewHandler(service.NewManager(cfg))

	s := server.New(append([]server.Option{
		server.WithName(name),
		server.WithVersion(version),
		server.WithHandler(h.Routes()),
		server.WithBodyLimits(h.BodyLimits()),
	}, opts...)...)

	if err := s.Run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		return err
	}

	return nil
}
