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

// Package api exposes the service lifecycle over HTTP for the notebook
// server extension.
//
// All application routes live under the /jupyterlab-onyxia-composer/
// prefix and exchange JSON:
//
//   - GET  create          - banner
//   - POST create          - create or update a service, returns {"message"}
//   - POST checkSrvName    - body is a JSON string, returns {exists, version, description, icon}
//   - POST checkSrvVersion - body {name, version}, returns {"message"}
//   - POST services        - returns {"services": {name: {description, tag}}}
//   - POST delete          - body {"service": name}, returns {"message"}
//
// The create and delete routes answer 200 with a human readable message
// even when the operation fails, which is what the widget displays. The
// failing error code is set in the X-Composer-Error-Code header. Malformed
// bodies and wrong methods get a regular error response with a 4xx status.
//
// System endpoints (/health, /ready, /metrics) are provided by pkg/server.
//
// Usage:
//
//	if err := api.Serve(ctx, "/etc/composer/config.yaml"); err != nil {
//	    log.Fatalf("server error: %v", err)
//	}
package api
