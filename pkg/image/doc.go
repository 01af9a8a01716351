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

// Package image derives the container image a service runs.
//
// Three build types are supported:
//
//   - fromDockerImage: the submitted reference is validated and used as is.
//     Nothing is written.
//   - fromRepo: the Dockerfile clones the repository into /app and
//     optionally checks out a revision.
//   - fromLocalDirectory: the directory is copied next to the Dockerfile
//     and added with COPY.
//
// For the last two a directory images/<name>/ is created holding a
// Dockerfile rendered from the images template, and the image is tagged
// <registry>/<name>:<version>. An existing images/<name>/ is never
// overwritten.
//
// The app type selects the runtime toolchain installed before the sources
// and the command the chart starts:
//
//	voila      voila <notebook>            (base image ships voila)
//	streamlit  streamlit run <entrypoint>
//	dash       python <entrypoint>
//	shiny      R -e shiny::runApp(...)
package image
