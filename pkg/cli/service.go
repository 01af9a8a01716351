// Copyright (c) 2025, Logilab.  All rights reserved.
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

package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/logilab/onyxia-composer/pkg/serializer"
	"github.com/logilab/onyxia-composer/pkg/service"
)

func createCmd() *cli.Command {
	return &cli.Command{
		Name:                  "create",
		EnableShellCompletion: true,
		Usage:                 "Create or update a service from a request file",
		Description: `Render charts/<name> from the chart template, build the app image
definition when needed, then commit and push to the main branch. An
existing service of the same name is replaced.

Example request file:

  name: Sales Dashboard
  version: 1.0.0
  desc: Quarterly sales
  appBuildType: fromRepo
  appType: streamlit
  appRepoURL: https://github.com/acme/sales.git
  notebookName: app.py
  cpu: 2000m
  memory: 4Gi`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Request file (YAML or JSON)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Override the service name of the request file",
			},
			&cli.StringFlag{
				Name:  "release",
				Usage: "Override the version of the request file",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("file")
			req, err := serializer.FromFile[service.Request](path)
			if err != nil {
				return fmt.Errorf("failed to load request from %q: %w", path, err)
			}
			if v := cmd.String("name"); v != "" {
				req.Name = v
			}
			if v := cmd.String("release"); v != "" {
				req.Version = v
			}

			m, err := newManager(cmd)
			if err != nil {
				return err
			}

			msg, err := m.Create(ctx, *req)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, msg)
			return err
		},
	}
}

func deleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a service and its package index entry",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := requireArgs(cmd, 1, "<name>")
			if err != nil {
				return err
			}

			m, err := newManager(cmd)
			if err != nil {
				return err
			}

			msg, err := m.Delete(ctx, args[0], false)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, msg)
			return err
		},
	}
}
