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

// Package gitsync wraps the git CLI for the charts working tree.
//
// All commands target one directory via "git -C <dir>". Local commands run
// under defaults.GitCommandTimeout and network commands (pull, push) under
// defaults.GitNetworkTimeout, whichever is shorter than the caller's own
// deadline.
//
// Publish stages, commits and pushes in one step. If the push fails the
// local commit is reset away so the branch never stays ahead of its remote:
//
//	repo := gitsync.NewRepository(dir, gitsync.WithRemote("origin"))
//	committed, err := repo.Publish(ctx, "[auto] add foo service", "charts/foo")
//
// Errors from network commands carry the SERVICE_UNAVAILABLE code, expired
// deadlines carry TIMEOUT, everything else INTERNAL.
package gitsync
