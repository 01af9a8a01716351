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

package oci

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"

	apperrors "github.com/logilab/onyxia-composer/pkg/errors"
)

// URIScheme is the optional scheme prefix accepted on references.
const URIScheme = "oci://"

// ContextSuffix is appended to service names to form context repositories.
const ContextSuffix = "-context"

// Reference is a parsed registry/repository:tag triple.
type Reference struct {
	// Registry is the registry host (e.g., "ghcr.io", "localhost:5000").
	Registry string
	// Repository is the repository path (e.g., "logilab/foo-context").
	Repository string
	// Tag is the artifact tag. Empty when the reference carries none.
	Tag string
}

// ParseReference parses "[oci://]registry/repository[:tag]".
func ParseReference(s string) (*Reference, error) {
	ref, err := reference.ParseNormalizedNamed(strings.TrimPrefix(s, URIScheme))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid OCI reference", err)
	}

	r := &Reference{
		Registry:   reference.Domain(ref),
		Repository: reference.Path(ref),
	}
	if tagged, ok := ref.(reference.Tagged); ok {
		r.Tag = tagged.Tag()
	}
	return r, nil
}

// ContextReference returns the reference a service's build context is
// pushed to. registry may include a path prefix ("ghcr.io/org").
func ContextReference(registry, name, version string) (*Reference, error) {
	registry = strings.TrimSuffix(stripProtocol(registry), "/")
	if registry == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "registry is required")
	}
	if version == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "version is required")
	}
	return ParseReference(fmt.Sprintf("%s/%s%s:%s", registry, name, ContextSuffix, version))
}

// String returns "registry/repository[:tag]".
func (r *Reference) String() string {
	if r.Tag == "" {
		return fmt.Sprintf("%s/%s", r.Registry, r.Repository)
	}
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, r.Tag)
}

// WithTag returns a copy of the reference with the specified tag.
func (r *Reference) WithTag(tag string) *Reference {
	return &Reference{
		Registry:   r.Registry,
		Repository: r.Repository,
		Tag:        tag,
	}
}

// ValidateRegistryReference checks that registry and repository form a
// valid image name.
func ValidateRegistryReference(registry, repository string) error {
	name := fmt.Sprintf("%s/%s", stripProtocol(registry), repository)
	if _, err := reference.ParseNormalizedNamed(name); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid registry reference %q", name), err)
	}
	return nil
}

// stripProtocol removes http:// or https:// prefix from a registry URL.
func stripProtocol(registry string) string {
	registry = strings.TrimPrefix(registry, "https://")
	registry = strings.TrimPrefix(registry, "http://")
	return registry
}
