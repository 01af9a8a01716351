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
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	apperrors "github.com/logilab/onyxia-composer/pkg/errors"
)

// ArtifactType is the media type of pushed build contexts.
const ArtifactType = "application/vnd.logilab.composer.image-context"

// ReproducibleTimestamp is recorded as the manifest creation time so equal
// contexts produce equal digests.
const ReproducibleTimestamp = "1970-01-01T00:00:00Z"

// TargetFunc opens the destination for a reference.
type TargetFunc func(ref *Reference) (oras.Target, error)

// PushOptions configures a push.
type PushOptions struct {
	// SourceDir is the directory to push.
	SourceDir string
	// Reference is the destination; its Tag is required.
	Reference *Reference
	// Annotations are added to the manifest.
	Annotations map[string]string
}

// PushResult contains the result of a successful push.
type PushResult struct {
	// Digest is the SHA256 digest of the pushed manifest.
	Digest string
	// Reference is the full reference (registry/repository:tag).
	Reference string
}

// Push packs opts.SourceDir and copies it to dst.
func Push(ctx context.Context, dst oras.Target, opts PushOptions) (*PushResult, error) {
	if opts.Reference == nil || opts.Reference.Tag == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "tag is required to push OCI artifact")
	}
	tag := opts.Reference.Tag

	absDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for push dir: %w", err)
	}

	fs, err := file.New(absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create file store: %w", err)
	}
	defer func() { _ = fs.Close() }()

	// deterministic tars
	fs.TarReproducible = true

	layerDesc, err := fs.Add(ctx, ".", ociv1.MediaTypeImageLayerGzip, absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to add source directory to store: %w", err)
	}

	manifestDesc, err := oras.PackManifest(ctx, fs, oras.PackManifestVersion1_1, ArtifactType,
		oras.PackManifestOptions{
			Layers:              []ociv1.Descriptor{layerDesc},
			ManifestAnnotations: opts.Annotations,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to pack manifest: %w", err)
	}

	if tagErr := fs.Tag(ctx, manifestDesc, tag); tagErr != nil {
		return nil, fmt.Errorf("failed to tag manifest in local store: %w", tagErr)
	}

	desc, err := oras.Copy(ctx, fs, tag, dst, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to push artifact: %w", err)
	}

	return &PushResult{
		Digest:    desc.Digest.String(),
		Reference: opts.Reference.String(),
	}, nil
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPlainHTTP talks to the registry over HTTP.
func WithPlainHTTP(plain bool) PublisherOption {
	return func(p *Publisher) {
		p.plainHTTP = plain
	}
}

// WithInsecureTLS skips TLS certificate verification.
func WithInsecureTLS(insecure bool) PublisherOption {
	return func(p *Publisher) {
		p.insecureTLS = insecure
	}
}

// WithTarget replaces the remote registry with another destination.
func WithTarget(fn TargetFunc) PublisherOption {
	return func(p *Publisher) {
		p.target = fn
	}
}

// Publisher pushes build contexts under one registry prefix.
type Publisher struct {
	registry    string
	plainHTTP   bool
	insecureTLS bool
	target      TargetFunc
}

// NewPublisher returns a publisher pushing under registry.
func NewPublisher(registry string, opts ...PublisherOption) *Publisher {
	p := &Publisher{registry: registry}
	p.target = p.remoteTarget
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish pushes dir as the build context of name at version.
func (p *Publisher) Publish(ctx context.Context, dir, name, version string) (*PushResult, error) {
	ref, err := ContextReference(p.registry, name, version)
	if err != nil {
		return nil, err
	}

	dst, err := p.target(ref)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to open OCI target", err)
	}

	slog.Info("pushing image context",
		"reference", ref.String(),
		"dir", dir,
	)

	res, err := Push(ctx, dst, PushOptions{
		SourceDir:   dir,
		Reference:   ref,
		Annotations: map[string]string{
			ociv1.AnnotationTitle:   name,
			ociv1.AnnotationVersion: version,
			ociv1.AnnotationCreated: ReproducibleTimestamp,
		},
	})
	if err != nil {
		return nil, apperrors.WrapWithContext(apperrors.ErrCodeUnavailable,
			"failed to push image context", err,
			map[string]any{"reference": ref.String()})
	}

	slog.Info("image context pushed",
		"reference", res.Reference,
		"digest", res.Digest,
	)
	return res, nil
}

func (p *Publisher) remoteTarget(ref *Reference) (oras.Target, error) {
	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", ref.Registry, ref.Repository))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote repository: %w", err)
	}
	repo.PlainHTTP = p.plainHTTP
	repo.Client = createAuthClient(p.plainHTTP, p.insecureTLS)
	return repo, nil
}

// createAuthClient creates an HTTP client with optional TLS configuration
// and Docker credential support.
func createAuthClient(plainHTTP, insecureTLS bool) *auth.Client {
	credStore, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		slog.Debug("docker credential store unavailable", "error", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !plainHTTP && insecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
		}
	}

	client := &auth.Client{
		Client: &http.Client{Transport: transport},
		Cache:  auth.NewCache(),
	}
	if credStore != nil {
		client.Credential = credentials.Credential(credStore)
	}
	return client
}
