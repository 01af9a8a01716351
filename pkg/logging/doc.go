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

// Package logging configures log/slog for the composer binaries.
//
// Records are JSON on stderr and carry the module and version of the
// binary that produced them. Debug level also records the source
// location.
//
//	logging.SetDefaultStructuredLogger("composerd", version)
//	slog.Info("service created", "service", name, "version", v)
//
// The level comes from LOG_LEVEL (debug, info, warn or warning, error;
// case-insensitive, info when unset or unknown):
//
//	LOG_LEVEL=debug composerd
//
// The composer CLI passes its --log-level flag instead:
//
//	logging.SetDefaultStructuredLoggerWithLevel("composer", version, "warn")
//
// NewLogLogger adapts slog for APIs that only take a *log.Logger, such as
// http.Server.ErrorLog.
package logging
