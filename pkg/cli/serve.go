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

	"github.com/urfave/cli/v3"

	"github.com/logilab/onyxia-composer/pkg/api"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the composer HTTP API",
		Description: `Serve the /jupyterlab-onyxia-composer/ routes used by the notebook widget,
plus /health, /ready and /metrics. The listen port comes from PORT
(default 8080).`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return api.Serve(ctx, cmd.String("config"))
		},
	}
}
