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
	"testing"

	apperrors "github.com/logilab/onyxia-composer/pkg/errors"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantReg  string
		wantRepo string
		wantTag  string
		wantErr  bool
	}{
		{
			name:     "with tag",
			input:    "ghcr.io/logilab/foo-context:0.0.1",
			wantReg:  "ghcr.io",
			wantRepo: "logilab/foo-context",
			wantTag:  "0.0.1",
		},
		{
			name:     "scheme prefix",
			input:    "oci://localhost:5000/foo:1.0",
			wantReg:  "localhost:5000",
			wantRepo: "foo",
			wantTag:  "1.0",
		},
		{
			name:     "no tag",
			input:    "ghcr.io/logilab/foo",
			wantReg:  "ghcr.io",
			wantRepo: "logilab/foo",
		},
		{
			name:    "uppercase",
			input:   "ghcr.io/Logilab/Foo:1",
			wantErr: true,
		},
		{
			name:    "spaces",
			input:   "ghcr.io/foo bar:1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseReference(%q) expected error", tt.input)
				}
				if code := apperrors.CodeOf(err); code != apperrors.ErrCodeInvalidRequest {
					t.Errorf("error code = %s, want %s", code, apperrors.ErrCodeInvalidRequest)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReference(%q) unexpected error: %v", tt.input, err)
			}
			if got.Registry != tt.wantReg || got.Repository != tt.wantRepo || got.Tag != tt.wantTag {
				t.Errorf("ParseReference(%q) = %+v", tt.input, got)
			}
		})
	}
}

func TestContextReference(t *testing.T) {
	ref, err := ContextReference("https://ghcr.io/logilab/", "my_app", "0.0.3")
	if err != nil {
		t.Fatalf("ContextReference() error = %v", err)
	}
	if got := ref.String(); got != "ghcr.io/logilab/my_app-context:0.0.3" {
		t.Errorf("ContextReference() = %q", got)
	}

	if _, err := ContextReference("", "foo", "1"); err == nil {
		t.Error("expected error for empty registry")
	}
	if _, err := ContextReference("ghcr.io", "foo", ""); err == nil {
		t.Error("expected error for empty version")
	}
}

func TestReference_WithTag(t *testing.T) {
	ref := &Reference{Registry: "ghcr.io", Repository: "logilab/foo"}
	if got := ref.String(); got != "ghcr.io/logilab/foo" {
		t.Errorf("String() = %q", got)
	}

	tagged := ref.WithTag("1.0.0")
	if got := tagged.String(); got != "ghcr.io/logilab/foo:1.0.0" {
		t.Errorf("WithTag().String() = %q", got)
	}
	if ref.Tag != "" {
		t.Error("WithTag must not modify the receiver")
	}
}

func TestValidateRegistryReference(t *testing.T) {
	tests := []struct {
		name       string
		registry   string
		repository string
		wantErr    bool
	}{
		{"valid ghcr.io", "ghcr.io", "logilab/composer", false},
		{"localhost with port", "localhost:5000", "test/repo", false},
		{"https prefix", "https://ghcr.io", "logilab/composer", false},
		{"registry with spaces", "invalid registry", "test/repo", true},
		{"uppercase repository", "ghcr.io", "Logilab/Composer", true},
		{"digest marker", "ghcr.io", "test/repo@latest", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegistryReference(tt.registry, tt.repository)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRegistryReference() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStripProtocol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://ghcr.io", "ghcr.io"},
		{"http://localhost:5000", "localhost:5000"},
		{"registry.example.com", "registry.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := stripProtocol(tt.input); got != tt.expected {
				t.Errorf("stripProtocol(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
