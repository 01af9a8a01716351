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

// Package oci publishes service image build contexts to OCI registries.
//
// When an image registry for build contexts is configured, the directory
// produced by the image builder (Dockerfile plus sources) is pushed as an
// OCI artifact so a remote builder can fetch it:
//
//	<registry>/<service>-context:<version>
//
// Artifacts are packed with ORAS as a single gzipped tar layer under an
// OCI 1.1 manifest of type ArtifactType. Tars are reproducible, so pushing
// the same directory twice yields the same digest.
//
// Registry credentials come from the Docker credential store
// (~/.docker/config.json and credential helpers).
//
// # Usage
//
//	pub := oci.NewPublisher("registry.example.org/composer")
//	res, err := pub.Publish(ctx, "/repo/images/foo", "foo", "0.0.2")
//	// res.Reference == "registry.example.org/composer/foo-context:0.0.2"
package oci
