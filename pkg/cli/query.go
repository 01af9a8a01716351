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
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List services with their description and latest tag",
		Flags: []cli.Flag{
			outputFlag,
			formatFlag,
			&cli.BoolFlag{
				Name:  "names",
				Usage: "Print only the sorted service names",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}

			m, err := newManager(cmd)
			if err != nil {
				return err
			}

			if cmd.Bool("names") {
				names, err := m.Names(ctx)
				if err != nil {
					return err
				}
				return writeOutput(cmd, names)
			}

			services, err := m.List(ctx)
			if err != nil {
				return err
			}
			return writeOutput(cmd, services)
		},
	}
}

func checkNameCmd() *cli.Command {
	return &cli.Command{
		Name:      "check-name",
		Usage:     "Show whether a service exists and its next default version",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			outputFlag,
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := requireArgs(cmd, 1, "<name>")
			if err != nil {
				return err
			}
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}

			m, err := newManager(cmd)
			if err != nil {
				return err
			}

			info, err := m.CheckName(ctx, args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, info)
		},
	}
}

func checkVersionCmd() *cli.Command {
	return &cli.Command{
		Name:      "check-version",
		Usage:     "Check that a version can be used for a service",
		ArgsUsage: "<name> <version>",
		Description: `Fails with the reason when the version is malformed or
cannot follow the latest release.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := requireArgs(cmd, 2, "<name> <version>")
			if err != nil {
				return err
			}

			m, err := newManager(cmd)
			if err != nil {
				return err
			}

			msg, err := m.CheckVersion(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if msg != "" {
				return errors.New(msg)
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "Version %s is available\n", args[1])
			return err
		},
	}
}
