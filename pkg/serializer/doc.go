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

// Package serializer reads and writes structured data for the composer.
//
// Three formats are supported:
//   - JSON: machine-readable output and request bodies
//   - YAML: configuration files
//   - Table: flattened FIELD/VALUE output for the CLI (write-only)
//
// Reading a file:
//
//	cfg, err := serializer.FromFile[config.Config]("composer.yaml")
//
// Writing CLI output:
//
//	w := serializer.NewStdoutWriter(serializer.FormatTable)
//	err := w.Serialize(services)
//
// HTTP helpers:
//
//	serializer.RespondJSON(w, http.StatusOK, body)
//	err := serializer.DecodeJSON(r, &req, maxBytes)
package serializer
