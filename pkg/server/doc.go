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

// Package server is the composer's HTTP server.
//
// It wraps caller-supplied handlers in a middleware chain and adds the
// system endpoints:
//
//	GET /         server name, version, readiness and routes
//	GET /health   liveness probe
//	GET /ready    readiness probe
//	GET /metrics  Prometheus metrics
//
// Middleware, outermost first: metrics, API version negotiation, request
// ID, panic recovery, rate limiting (golang.org/x/time/rate), logging and
// the request body limit. Bodies are capped at Config.MaxBodyBytes unless
// WithBodyLimits sets a limit for the route pattern.
//
// Errors are written as ErrorResponse bodies. WriteErrorFromErr maps a
// pkg/errors.StructuredError code to its HTTP status.
//
// Usage:
//
//	s := server.New(
//	    server.WithName("composerd"),
//	    server.WithVersion(version),
//	    server.WithHandler(map[string]http.HandlerFunc{"/api/": h}),
//	)
//	err := s.Run(ctx)
//
// Environment variables:
//
//	PORT                      listen port (default 8080)
//	SHUTDOWN_TIMEOUT_SECONDS  graceful shutdown budget (default 30)
package server
