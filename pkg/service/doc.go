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

// Package service implements the composer's service lifecycle.
//
// A service is one deployable app, stored as a chart directory
// (charts/<name>/) and optionally an image directory (images/<name>/) in a
// git working tree. Versions are recorded as <name>-<version> git tags.
//
// The Manager serializes every operation on the working tree:
//
//	mgr := service.NewManager(cfg)
//	msg, err := mgr.Create(ctx, service.Request{Name: "Sales Dashboard", AppImage: "jupyter/base-notebook"})
//
// Create supersedes an existing service by deleting it first (without the
// final main branch commit) and recreating it. Delete walks the publish
// branch to drop the Helm index entry, then removes the service from the
// main branch.
package service
