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

package defaults

import "time"

// Git timeouts for the charts working tree.
const (
	// GitCommandTimeout bounds local git commands (checkout, add, commit, tag).
	GitCommandTimeout = 15 * time.Second

	// GitNetworkTimeout bounds git commands that talk to the remote (pull, push).
	GitNetworkTimeout = 60 * time.Second
)

// Handler timeouts for HTTP request processing.
const (
	// ServiceHandlerTimeout is the timeout for lifecycle requests (create, delete).
	// A create that supersedes an existing service runs up to four network
	// git commands plus an optional OCI push.
	ServiceHandlerTimeout = 4 * time.Minute

	// QueryHandlerTimeout is the timeout for read-only requests
	// (checkSrvName, checkSrvVersion, services).
	QueryHandlerTimeout = 30 * time.Second
)

// OCI timeouts for image context publication.
const (
	// OCIPushTimeout bounds a single image context push.
	OCIPushTimeout = 2 * time.Minute
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading the request.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	// Must exceed ServiceHandlerTimeout.
	ServerWriteTimeout = 5 * time.Minute

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// Request limits.
const (
	// MaxRequestBodyBytes caps JSON request bodies accepted by the API.
	MaxRequestBodyBytes = 1 << 20

	// MaxQueryBodyBytes caps the bodies of the query routes, which carry
	// only a service name and version.
	MaxQueryBodyBytes = 4 << 10
)
