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

// Package errors provides structured error types for better observability
// and programmatic error handling across the composer.
//
// Lifecycle operations return *StructuredError values so the HTTP layer can
// pick a status code and the CLI can print a stable classification:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeAlreadyExists,
//	    "image directory already exists",
//	    cause,
//	    map[string]any{
//	        "service": name,
//	        "path":    dir,
//	    },
//	)
package errors
