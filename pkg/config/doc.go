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

// Package config holds the composer's runtime configuration.
//
// Values are resolved in three layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file (Load)
//  3. Environment variables
//
// Environment variables:
//
//	COMPOSER_REPO_DIR            charts working tree (default ~/work/helm-charts-logilab-services)
//	COMPOSER_MAIN_BRANCH         branch holding chart sources (default main)
//	COMPOSER_PUBLISH_BRANCH      branch holding the Helm index (default gh-pages)
//	COMPOSER_REMOTE              git remote (default origin)
//	COMPOSER_CHART_TEMPLATE      chart template directory, relative to the repo
//	COMPOSER_IMAGE_REGISTRY      registry prefix of built images
//	COMPOSER_CONTEXT_REGISTRY    registry build contexts are pushed to (empty disables)
//	COMPOSER_CONTEXT_PLAIN_HTTP  use HTTP for the context registry
//	COMPOSER_STRICT_TEMPLATES    fail on unresolved placeholders
//	COMPOSER_GIT_AUTHOR_NAME     commit author name
//	COMPOSER_GIT_AUTHOR_EMAIL    commit author email
//	COMPOSER_DEFAULT_CPU         cpu limit when a request sets none
//	COMPOSER_DEFAULT_MEMORY      memory limit when a request sets none
package config
