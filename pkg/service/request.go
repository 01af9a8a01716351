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

package service

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/logilab/onyxia-composer/pkg/errors"
	"github.com/logilab/onyxia-composer/pkg/image"
)

var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_.-]*[a-z0-9])?$`)

var lower = cases.Lower(language.Und)

// Request is a service definition as submitted by the composer form.
type Request struct {
	Name         string `json:"name" yaml:"name"`
	Version      string `json:"version,omitempty" yaml:"version,omitempty"`
	Description  string `json:"desc,omitempty" yaml:"desc,omitempty"`
	IconURL      string `json:"iconURL,omitempty" yaml:"iconURL,omitempty"`
	NotebookName string `json:"notebookName,omitempty" yaml:"notebookName,omitempty"`

	// AppBuildType selects how the image is obtained. Older clients send
	// the build type in AppType and leave this empty.
	AppBuildType string `json:"appBuildType,omitempty" yaml:"appBuildType,omitempty"`
	AppType      string `json:"appType,omitempty" yaml:"appType,omitempty"`

	AppRepoURL string `json:"appRepoURL,omitempty" yaml:"appRepoURL,omitempty"`
	Revision   string `json:"revision,omitempty" yaml:"revision,omitempty"`
	AppImage   string `json:"appImage,omitempty" yaml:"appImage,omitempty"`
	AppDir     string `json:"appDir,omitempty" yaml:"appDir,omitempty"`

	// DockerImage is the legacy name of AppImage.
	DockerImage string `json:"dockerImg,omitempty" yaml:"dockerImg,omitempty"`

	CPU    string `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Memory string `json:"memory,omitempty" yaml:"memory,omitempty"`
}

// NormalizeName trims, lower-cases and replaces spaces with underscores.
func NormalizeName(raw string) string {
	return strings.ReplaceAll(lower.String(strings.TrimSpace(raw)), " ", "_")
}

// ValidateName checks a normalized name can be used as a directory,
// chart and tag name.
func ValidateName(name string) error {
	if name == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "service name is required")
	}
	if !namePattern.MatchString(name) {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"service name may only contain lower-case letters, digits, '_', '-' and '.'",
			map[string]any{"name": name})
	}
	return nil
}

// Types resolves the build and app types of the request.
func (r Request) Types() (image.BuildType, image.AppType, error) {
	if r.AppBuildType != "" {
		bt, err := image.ParseBuildType(r.AppBuildType)
		if err != nil {
			return "", "", err
		}
		at, err := image.ParseAppType(r.AppType)
		if err != nil {
			return "", "", err
		}
		return bt, at, nil
	}

	if r.AppType == "" {
		if r.image() != "" {
			return image.FromDockerImage, image.DefaultAppType, nil
		}
		return "", "", errors.New(errors.ErrCodeInvalidRequest, "appBuildType is required")
	}

	bt, err := image.ParseBuildType(r.AppType)
	if err != nil {
		return "", "", err
	}
	return bt, image.DefaultAppType, nil
}

func (r Request) image() string {
	if r.AppImage != "" {
		return r.AppImage
	}
	return r.DockerImage
}

// Resources parses the cpu and memory limits, falling back to the defaults.
func (r Request) Resources(defaultCPU, defaultMemory string) (corev1.ResourceList, error) {
	cpu, err := parseQuantity("cpu", r.CPU, defaultCPU)
	if err != nil {
		return nil, err
	}
	mem, err := parseQuantity("memory", r.Memory, defaultMemory)
	if err != nil {
		return nil, err
	}
	return corev1.ResourceList{
		corev1.ResourceCPU:    cpu,
		corev1.ResourceMemory: mem,
	}, nil
}

func parseQuantity(field, value, fallback string) (resource.Quantity, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	q, err := resource.ParseQuantity(value)
	if err != nil {
		return resource.Quantity{}, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid %s limit", field), err, map[string]any{field: value})
	}
	if q.Sign() <= 0 {
		return resource.Quantity{}, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s limit must be positive", field), map[string]any{field: value})
	}
	return q, nil
}
