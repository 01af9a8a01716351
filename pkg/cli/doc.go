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

// Package cli implements the composer command line, which runs the
// service lifecycle against a local chart repository.
//
// # Commands
//
// serve - Run the HTTP API:
//
//	composer serve --config /etc/composer/config.yaml
//
// create - Create or update a service from a request file:
//
//	composer create --file sales.yaml
//
// The request file holds the same fields the notebook widget posts
// (name, version, desc, appBuildType, appType, appImage, appRepoURL, ...)
// as YAML or JSON.
//
// delete - Remove a service and its package index entry:
//
//	composer delete sales_dashboard
//
// list - Show every service with its description and latest tag:
//
//	composer list --format table
//
// check-name / check-version - Query a name or validate a version:
//
//	composer check-name "Sales Dashboard"
//	composer check-version sales_dashboard 1.2.0
//
// # Global Flags
//
//	--config, -c   Configuration file (env COMPOSER_CONFIG)
//	--log-level    Log level: debug, info, warn, error (env LOG_LEVEL)
//
// Query commands also accept --output/-o and --format/-t (yaml, json,
// table).
package cli
