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

// Package defaults provides centralized configuration constants for the composer.
//
// Timeouts are organized by component:
//
//   - Git timeouts: local commands and remote round trips on the charts repository
//   - Handler timeouts: HTTP request processing
//   - OCI timeouts: image context publication
//   - Server timeouts: HTTP server configuration
//
// Import and use constants directly:
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.GitNetworkTimeout)
//	defer cancel()
package defaults
