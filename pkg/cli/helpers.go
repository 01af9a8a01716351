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
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/logilab/onyxia-composer/pkg/config"
	"github.com/logilab/onyxia-composer/pkg/serializer"
	"github.com/logilab/onyxia-composer/pkg/service"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Configuration file (YAML or JSON); defaults and COMPOSER_* variables apply without it",
		Sources: cli.EnvVars("COMPOSER_CONFIG"),
	}

	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output file path (default: stdout)",
	}

	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatYAML),
		Usage:   fmt.Sprintf("Output format (%s)", strings.Join(serializer.SupportedFormats(), ", ")),
	}
)

func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(cmd.String("format"))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q", f)
	}
	return f, nil
}

// writeOutput serializes v to --output, or to the command writer.
func writeOutput(cmd *cli.Command, v any) error {
	f, err := parseOutputFormat(cmd)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.Root().Writer
	if path := cmd.String("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file %q: %w", path, err)
		}
		defer func() {
			if err := file.Close(); err != nil {
				slog.Warn("failed to close output file", "path", path, "error", err)
			}
		}()
		out = file
	}

	return serializer.NewWriter(f, out).Serialize(v)
}

func newManager(cmd *cli.Command) (*service.Manager, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	return service.NewManager(cfg), nil
}

// requireArgs returns the first n positional arguments.
func requireArgs(cmd *cli.Command, n int, usage string) ([]string, error) {
	if cmd.Args().Len() != n {
		return nil, fmt.Errorf("expected %d argument(s): %s %s", n, cmd.Name, usage)
	}
	return cmd.Args().Slice(), nil
}
