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

package image

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/distribution/reference"

	"github.com/logilab/onyxia-composer/pkg/errors"
	"github.com/logilab/onyxia-composer/pkg/render"
)

const (
	// DockerfileName is the file written into each image directory.
	DockerfileName = "Dockerfile"

	// AppDir is the directory local sources are copied to, relative to the
	// image directory.
	AppDir = "app"

	// DefaultRegistry prefixes built image tags when none is configured.
	DefaultRegistry = "ghcr.io/logilab"
)

// DefaultDockerfileTemplate is used when no images template is present.
const DefaultDockerfileTemplate = `FROM inseefrlab/onyxia-jupyter-python:py3.11.6
LABEL org.opencontainers.image.title="${NAME}" \
      org.opencontainers.image.version="${VERSION}"
USER root
${BUILD_COMMANDS}
EXPOSE 8888
USER ${USERNAME}
`

// requirementsStep installs Python dependencies shipped with the app.
const requirementsStep = "RUN if [ -f requirements.txt ]; then pip install --no-cache-dir -r requirements.txt; fi"

// skipDirs are never copied from a local app directory.
var skipDirs = map[string]bool{
	".git":               true,
	".ipynb_checkpoints": true,
	"__pycache__":        true,
}

// Spec describes the image wanted for one service.
type Spec struct {
	Name      string
	Version   string
	BuildType BuildType
	AppType   AppType

	// Image is the reference used by FromDockerImage.
	Image string
	// RepoURL and Revision are used by FromRepo.
	RepoURL  string
	Revision string
	// LocalDir is the source directory used by FromLocalDirectory.
	LocalDir string
}

// Result describes the image derived for a service.
type Result struct {
	// Image is the reference the chart should run.
	Image string
	// Built is false for passthrough images.
	Built bool
	// Dir is the image directory, empty for passthrough images.
	Dir string
	// Commands are the Dockerfile build instructions.
	Commands []string
}

// Option configures a Builder.
type Option func(*Builder)

// WithTemplate sets the Dockerfile template path.
func WithTemplate(path string) Option {
	return func(b *Builder) {
		b.templatePath = path
	}
}

// WithRegistry sets the registry prefix of built image tags.
func WithRegistry(registry string) Option {
	return func(b *Builder) {
		if registry != "" {
			b.registry = strings.TrimSuffix(registry, "/")
		}
	}
}

// Builder materialises image directories under an images root.
type Builder struct {
	imagesDir    string
	templatePath string
	registry     string
}

// NewBuilder returns a builder writing under imagesDir.
func NewBuilder(imagesDir string, opts ...Option) *Builder {
	b := &Builder{
		imagesDir: imagesDir,
		registry:  DefaultRegistry,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dir returns the image directory for a service name.
func (b *Builder) Dir(name string) string {
	return filepath.Join(b.imagesDir, name)
}

// Plan validates spec and computes the image reference and build commands
// without touching the filesystem.
func (b *Builder) Plan(spec Spec) (*Result, error) {
	if spec.Name == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "service name is required")
	}
	if _, err := ParseBuildType(string(spec.BuildType)); err != nil {
		return nil, err
	}
	appType, err := ParseAppType(string(spec.AppType))
	if err != nil {
		return nil, err
	}

	if spec.BuildType == FromDockerImage {
		img, refErr := ValidateReference(spec.Image)
		if refErr != nil {
			return nil, refErr
		}
		return &Result{Image: img}, nil
	}

	tag, err := b.Tag(spec.Name, spec.Version)
	if err != nil {
		return nil, err
	}

	commands := appType.Toolchain()
	switch spec.BuildType {
	case FromRepo:
		if err := checkShellSafe("repository URL", spec.RepoURL, true); err != nil {
			return nil, err
		}
		if err := checkShellSafe("revision", spec.Revision, false); err != nil {
			return nil, err
		}
		commands = append(commands, fmt.Sprintf("RUN git clone %s /app", spec.RepoURL))
		if spec.Revision != "" {
			commands = append(commands, fmt.Sprintf("RUN git -C /app checkout %s", spec.Revision))
		}
	case FromLocalDirectory:
		info, statErr := os.Stat(spec.LocalDir)
		if spec.LocalDir == "" || statErr != nil || !info.IsDir() {
			return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest,
				"app directory does not exist or is not a directory",
				map[string]any{"appDir": spec.LocalDir})
		}
		commands = append(commands, fmt.Sprintf("COPY %s/ /app/", AppDir))
	}
	commands = append(commands, "WORKDIR /app", requirementsStep)

	return &Result{
		Image:    tag,
		Built:    true,
		Dir:      b.Dir(spec.Name),
		Commands: commands,
	}, nil
}

// Build plans spec and, for built images, creates the image directory with
// its Dockerfile and sources. The directory is removed again on failure.
func (b *Builder) Build(ctx context.Context, spec Spec) (*Result, error) {
	res, err := b.Plan(spec)
	if err != nil {
		return nil, err
	}
	if !res.Built {
		slog.Debug("using existing image", "service", spec.Name, "image", res.Image)
		return res, nil
	}

	if err := os.MkdirAll(b.imagesDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to create images directory", err)
	}
	if err := os.Mkdir(res.Dir, 0755); err != nil {
		if stderrors.Is(err, fs.ErrExist) {
			return nil, errors.NewWithContext(errors.ErrCodeAlreadyExists,
				fmt.Sprintf("image directory for %s already exists", spec.Name),
				map[string]any{"path": res.Dir})
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to create image directory", err)
	}

	if err := b.materialize(ctx, spec, res); err != nil {
		if rmErr := os.RemoveAll(res.Dir); rmErr != nil {
			slog.Warn("failed to clean up image directory", "path", res.Dir, "error", rmErr)
		}
		return nil, err
	}

	slog.Info("image definition created",
		"service", spec.Name,
		"image", res.Image,
		"build_type", spec.BuildType,
		"dir", res.Dir,
	)
	return res, nil
}

func (b *Builder) materialize(ctx context.Context, spec Spec, res *Result) error {
	if spec.BuildType == FromLocalDirectory {
		if err := copyTree(ctx, spec.LocalDir, filepath.Join(res.Dir, AppDir)); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to copy app directory", err)
		}
	}

	tmpl, err := b.template()
	if err != nil {
		return err
	}

	values := render.NewValues().
		Set(render.Name, spec.Name).
		Set(render.Version, spec.Version).
		Set(render.Image, res.Image).
		Set(render.DockerImageTag, TagOf(res.Image)).
		SetBlock(render.BuildCommands, res.Commands...)

	content, err := render.New(values).RenderString(DockerfileName, tmpl)
	if err != nil {
		return err
	}

	path := filepath.Join(res.Dir, DockerfileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to write Dockerfile", err)
	}
	return nil
}

func (b *Builder) template() (string, error) {
	if b.templatePath == "" {
		return DefaultDockerfileTemplate, nil
	}
	data, err := os.ReadFile(b.templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("images template not found, using default", "path", b.templatePath)
			return DefaultDockerfileTemplate, nil
		}
		return "", errors.Wrap(errors.ErrCodeInternal, "failed to read Dockerfile template", err)
	}
	return string(data), nil
}

// Tag returns the validated <registry>/<name>:<version> reference.
func (b *Builder) Tag(name, version string) (string, error) {
	if version == "" {
		return "", errors.New(errors.ErrCodeInvalidRequest, "version is required to tag an image")
	}
	ref := fmt.Sprintf("%s/%s:%s", b.registry, name, version)
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid image tag %q", ref), err)
	}
	if _, ok := named.(reference.Tagged); !ok {
		return "", errors.New(errors.ErrCodeInvalidRequest, fmt.Sprintf("image tag %q has no tag", ref))
	}
	return ref, nil
}

// TagOf returns the tag of an image reference, or "latest" when it has
// none or does not parse.
func TagOf(ref string) string {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "latest"
	}
	if tagged, ok := named.(reference.Tagged); ok {
		return tagged.Tag()
	}
	return "latest"
}

// ValidateReference checks an existing image reference and returns it
// trimmed. Short names such as "jupyter/base-notebook" are accepted.
func ValidateReference(img string) (string, error) {
	img = strings.TrimSpace(img)
	if img == "" {
		return "", errors.New(errors.ErrCodeInvalidRequest, "docker image is required")
	}
	if _, err := reference.ParseNormalizedNamed(img); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid docker image %q", img), err)
	}
	return img, nil
}

func checkShellSafe(field, value string, required bool) error {
	if value == "" {
		if required {
			return errors.New(errors.ErrCodeInvalidRequest, field+" is required")
		}
		return nil
	}
	if strings.ContainsAny(value, " \t\r\n;&|$`'\"<>\\") {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s contains unsupported characters", field),
			map[string]any{"value": value})
	}
	return nil
}

func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if rel != "." && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}
