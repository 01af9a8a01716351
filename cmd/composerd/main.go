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

package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/logilab/onyxia-composer/pkg/api"
	"github.com/logilab/onyxia-composer/pkg/server"
)

func main() {
	err := api.Serve(context.Background(), os.Getenv("COMPOSER_CONFIG"),
		server.WithOnReady(notifyReady))
	if err != nil {
		log.Fatal(err)
	}
}

// notifyReady tells systemd the listener is bound. It is a no-op outside
// a Type=notify unit.
func notifyReady() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		slog.Warn("failed to notify systemd", "error", err)
		return
	}
	if sent {
		slog.Debug("notified systemd of readiness")
	}
}
