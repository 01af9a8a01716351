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

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/logilab/onyxia-composer/pkg/errors"
	"github.com/logilab/onyxia-composer/pkg/index"
	"github.com/logilab/onyxia-composer/pkg/render"
	"github.com/logilab/onyxia-composer/pkg/serializer"
)

const (
	// DefaultIconURL is shown for services submitted without an icon.
	DefaultIconURL = "https://raw.githubusercontent.com/voila-dashboards/voila/main/docs/voila-logo.svg"

	// MetadataFile stores the original request inside each chart directory.
	MetadataFile = "jcomposer.json"

	envPrefix = "COMPOSER_"
)

// Config is the composer configuration.
type Config struct {
	// RepoDir is the charts git working tree.
	RepoDir string `json:"repoDir" yaml:"repoDir"`

	// Layout inside RepoDir.
	ChartsDir     string `json:"chartsDir" yaml:"chartsDir"`
	ImagesDir     string `json:"imagesDir" yaml:"imagesDir"`
	ChartTemplate string `json:"chartTemplate" yaml:"chartTemplate"`
	ImageTemplate string `json:"imageTemplate" yaml:"imageTemplate"`
	IndexFile     string `json:"indexFile" yaml:"indexFile"`

	// RenderedPaths are nested chart template files that get placeholder substitution.
	RenderedPaths []string `json:"renderedPaths" yaml:"renderedPaths"`

	// Git settings.
	MainBranch     string `json:"mainBranch" yaml:"mainBranch"`
	PublishBranch  string `json:"publishBranch" yaml:"publishBranch"`
	Remote         string `json:"remote" yaml:"remote"`
	GitAuthorName  string `json:"gitAuthorName,omitempty" yaml:"gitAuthorName,omitempty"`
	GitAuthorEmail string `json:"gitAuthorEmail,omitempty" yaml:"gitAuthorEmail,omitempty"`

	// Image settings.
	ImageRegistry    string `json:"imageRegistry" yaml:"imageRegistry"`
	ContextRegistry  string `json:"contextRegistry,omitempty" yaml:"contextRegistry,omitempty"`
	ContextPlainHTTP bool   `json:"contextPlainHTTP,omitempty" yaml:"contextPlainHTTP,omitempty"`

	// Rendering and request defaults.
	StrictTemplates bool   `json:"strictTemplates" yaml:"strictTemplates"`
	DefaultIconURL  string `json:"defaultIconURL" yaml:"defaultIconURL"`
	DefaultCPU      string `json:"defaultCPU" yaml:"defaultCPU"`
	DefaultMemory   string `json:"defaultMemory" yaml:"defaultMemory"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		RepoDir:         filepath.Join(home, "work", "helm-charts-logilab-services"),
		ChartsDir:       "charts",
		ImagesDir:       "images",
		ChartTemplate:   filepath.Join("charts-template", "voila"),
		ImageTemplate:   filepath.Join("images-template", "Dockerfile"),
		IndexFile:       index.FileName,
		RenderedPaths:   append([]string(nil), render.DefaultRenderedPaths...),
		MainBranch:      "main",
		PublishBranch:   "gh-pages",
		Remote:          "origin",
		ImageRegistry:   "ghcr.io/logilab",
		DefaultIconURL:  DefaultIconURL,
		DefaultCPU:      "1000m",
		DefaultMemory:   "2Gi",
		StrictTemplates: false,
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		fromFile, err := serializer.FromFile[Config](path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("failed to load config file %s", path), err)
		}
		cfg.merge(fromFile)
		slog.Debug("config file loaded", "path", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge copies the non-zero fields of o into c.
func (c *Config) merge(o *Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&c.RepoDir, o.RepoDir)
	setString(&c.ChartsDir, o.ChartsDir)
	setString(&c.ImagesDir, o.ImagesDir)
	setString(&c.ChartTemplate, o.ChartTemplate)
	setString(&c.ImageTemplate, o.ImageTemplate)
	setString(&c.IndexFile, o.IndexFile)
	setString(&c.MainBranch, o.MainBranch)
	setString(&c.PublishBranch, o.PublishBranch)
	setString(&c.Remote, o.Remote)
	setString(&c.GitAuthorName, o.GitAuthorName)
	setString(&c.GitAuthorEmail, o.GitAuthorEmail)
	setString(&c.ImageRegistry, o.ImageRegistry)
	setString(&c.ContextRegistry, o.ContextRegistry)
	setString(&c.DefaultIconURL, o.DefaultIconURL)
	setString(&c.DefaultCPU, o.DefaultCPU)
	setString(&c.DefaultMemory, o.DefaultMemory)
	if len(o.RenderedPaths) > 0 {
		c.RenderedPaths = o.RenderedPaths
	}
	if o.ContextPlainHTTP {
		c.ContextPlainHTTP = true
	}
	if o.StrictTemplates {
		c.StrictTemplates = true
	}
}

func (c *Config) applyEnv() {
	strVars := map[string]*string{
		"REPO_DIR":         &c.RepoDir,
		"MAIN_BRANCH":      &c.MainBranch,
		"PUBLISH_BRANCH":   &c.PublishBranch,
		"REMOTE":           &c.Remote,
		"CHART_TEMPLATE":   &c.ChartTemplate,
		"IMAGE_REGISTRY":   &c.ImageRegistry,
		"CONTEXT_REGISTRY": &c.ContextRegistry,
		"GIT_AUTHOR_NAME":  &c.GitAuthorName,
		"GIT_AUTHOR_EMAIL": &c.GitAuthorEmail,
		"DEFAULT_CPU":      &c.DefaultCPU,
		"DEFAULT_MEMORY":   &c.DefaultMemory,
	}
	for key, dst := range strVars {
		if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
			*dst = v
		}
	}

	boolVars := map[string]*bool{
		"STRICT_TEMPLATES":   &c.StrictTemplates,
		"CONTEXT_PLAIN_HTTP": &c.ContextPlainHTTP,
	}
	for key, dst := range boolVars {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("ignoring invalid boolean environment variable", "name", envPrefix+key, "value", v)
			continue
		}
		*dst = b
	}
}

// Validate checks required fields and default resource quantities.
func (c *Config) Validate() error {
	if c.RepoDir == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "repoDir is required")
	}
	if c.MainBranch == "" || c.PublishBranch == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "mainBranch and publishBranch are required")
	}
	for name, q := range map[string]string{"defaultCPU": c.DefaultCPU, "defaultMemory": c.DefaultMemory} {
		if _, err := resource.ParseQuantity(q); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("invalid %s %q", name, q), err)
		}
	}
	return nil
}

// ChartsPath returns the absolute charts directory.
func (c *Config) ChartsPath() string {
	return c.resolve(c.ChartsDir)
}

// ImagesPath returns the absolute images directory.
func (c *Config) ImagesPath() string {
	return c.resolve(c.ImagesDir)
}

// ChartTemplatePath returns the absolute chart template directory.
func (c *Config) ChartTemplatePath() string {
	return c.resolve(c.ChartTemplate)
}

// ImageTemplatePath returns the absolute Dockerfile template path.
func (c *Config) ImageTemplatePath() string {
	return c.resolve(c.ImageTemplate)
}

// IndexPath returns the absolute Helm index path.
func (c *Config) IndexPath() string {
	return c.resolve(c.IndexFile)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RepoDir, p)
}
