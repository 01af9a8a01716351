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

package render

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/logilab/onyxia-composer/pkg/errors"
)

// Placeholder is a template key, written as ${KEY} in template files.
type Placeholder string

// Scalar placeholders.
const (
	Name           Placeholder = "NAME"
	Description    Placeholder = "DESCRIPTION"
	Image          Placeholder = "IMAGE"
	IconURL        Placeholder = "ICONURL"
	RepoURL        Placeholder = "REPOURL"
	Version        Placeholder = "VERSION"
	DockerImageTag Placeholder = "DOCKER_IMAGE_TAG"
	DefaultCPU     Placeholder = "DEFAULT_CPU"
	DefaultMemory  Placeholder = "DEFAULT_MEMORY"
	AppCommand     Placeholder = "APP_COMMAND"
)

// Block placeholders.
const (
	BuildCommands Placeholder = "BUILD_COMMANDS"
	Commands      Placeholder = "COMMANDS"
)

// Placeholders lists every scalar placeholder in table order.
var Placeholders = []Placeholder{
	Name, Description, Image, IconURL, RepoURL, Version,
	DockerImageTag, DefaultCPU, DefaultMemory, AppCommand,
}

// BlockPlaceholders lists the multi-line placeholders.
var BlockPlaceholders = []Placeholder{BuildCommands, Commands}

// DefaultRenderedPaths are nested files rendered rather than copied.
var DefaultRenderedPaths = []string{"templates/statefulset.yaml"}

// ErrUnresolved is returned in strict mode when a known placeholder has no value.
var ErrUnresolved = stderrors.New("unresolved placeholder")

// Token returns the template form of p, e.g. "${NAME}".
func (p Placeholder) Token() string {
	return "${" + string(p) + "}"
}

// IsBlock reports whether p expands to multiple lines.
func (p Placeholder) IsBlock() bool {
	for _, b := range BlockPlaceholders {
		if b == p {
			return true
		}
	}
	return false
}

// Known reports whether p is part of the placeholder table.
func (p Placeholder) Known() bool {
	if p.IsBlock() {
		return true
	}
	for _, k := range Placeholders {
		if k == p {
			return true
		}
	}
	return false
}

// Values holds the substitutions for one rendering.
type Values struct {
	Scalars map[Placeholder]string
	Blocks  map[Placeholder][]string
}

// NewValues returns an empty value set.
func NewValues() Values {
	return Values{
		Scalars: make(map[Placeholder]string),
		Blocks:  make(map[Placeholder][]string),
	}
}

// Set assigns a scalar value and returns v for chaining.
func (v Values) Set(p Placeholder, value string) Values {
	v.Scalars[p] = value
	return v
}

// SetBlock assigns block lines and returns v for chaining.
func (v Values) SetBlock(p Placeholder, lines ...string) Values {
	v.Blocks[p] = lines
	return v
}

// Result describes the files produced by a rendering.
type Result struct {
	Files      []string
	Size       int64
	Unresolved []string
}

func (r *Result) addFile(path string, size int) {
	r.Files = append(r.Files, path)
	r.Size += int64(size)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithStrict makes unresolved placeholders an error.
func WithStrict(strict bool) Option {
	return func(r *Renderer) {
		r.strict = strict
	}
}

// WithRenderedPaths sets the nested files (slash separated, relative to the
// template root) that are rendered instead of copied.
func WithRenderedPaths(paths ...string) Option {
	return func(r *Renderer) {
		r.rendered = make(map[string]bool, len(paths))
		for _, p := range paths {
			r.rendered[filepath.ToSlash(p)] = true
		}
	}
}

// Renderer substitutes placeholders in strings, files and trees.
type Renderer struct {
	values   Values
	strict   bool
	rendered map[string]bool
}

// New creates a renderer for the given values.
func New(values Values, opts ...Option) *Renderer {
	if values.Scalars == nil {
		values.Scalars = map[Placeholder]string{}
	}
	if values.Blocks == nil {
		values.Blocks = map[Placeholder][]string{}
	}
	r := &Renderer{values: values}
	WithRenderedPaths(DefaultRenderedPaths...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderString renders content. name is used in errors and logs.
func (r *Renderer) RenderString(name, content string) (string, error) {
	out, _, err := r.renderNamed(name, content)
	return out, err
}

func (r *Renderer) renderNamed(name, content string) (string, []string, error) {
	out, unresolved := r.render(content)
	if len(unresolved) == 0 {
		return out, nil, nil
	}
	if r.strict {
		return "", unresolved, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("template %s has unresolved placeholders", name),
			ErrUnresolved,
			map[string]any{"template": name, "placeholders": unresolved})
	}
	slog.Debug("unresolved placeholders left in template",
		"template", name,
		"placeholders", unresolved,
	)
	return out, unresolved, nil
}

// RenderFile renders src into dst, keeping the source file mode.
func (r *Renderer) RenderFile(src, dst string) error {
	_, err := r.renderFile(src, dst, &Result{})
	return err
}

// RenderTree mirrors src into dst. dst must not exist. On failure the
// partially written dst is removed.
func (r *Renderer) RenderTree(ctx context.Context, src, dst string) (*Result, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound,
			fmt.Sprintf("template directory %s not found", src), err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("template %s is not a directory", src))
	}
	if _, statErr := os.Stat(dst); statErr == nil {
		return nil, errors.NewWithContext(errors.ErrCodeAlreadyExists,
			fmt.Sprintf("%s already exists", dst),
			map[string]any{"path": dst})
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("failed to create %s", dst), err)
	}

	result := &Result{}
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(errors.ErrCodeTimeout, "rendering cancelled", ctxErr)
		}

		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		slashRel := filepath.ToSlash(rel)
		if !strings.Contains(slashRel, "/") || r.rendered[slashRel] {
			unresolved, fileErr := r.renderFile(path, target, result)
			result.Unresolved = append(result.Unresolved, unresolved...)
			return fileErr
		}
		return copyFile(path, target, result)
	})
	if err != nil {
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			slog.Warn("failed to clean up partial render", "path", dst, "error", rmErr)
		}
		var se *errors.StructuredError
		if stderrors.As(err, &se) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("failed to render %s", src), err)
	}

	slog.Debug("template tree rendered",
		"src", src,
		"dst", dst,
		"files", len(result.Files),
		"size_bytes", result.Size,
	)

	return result, nil
}

func (r *Renderer) renderFile(src, dst string, result *Result) ([]string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", src, err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src, err)
	}

	out, unresolved, err := r.renderNamed(src, string(data))
	if err != nil {
		return unresolved, err
	}

	if err := os.WriteFile(dst, []byte(out), info.Mode().Perm()); err != nil {
		return unresolved, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	result.addFile(dst, len(out))
	return unresolved, nil
}

func copyFile(src, dst string, result *Result) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	result.addFile(dst, len(data))
	return nil
}

// render performs substitution and returns the known placeholders that had
// no value, in first-seen order.
func (r *Renderer) render(content string) (string, []string) {
	var (
		seen       = map[string]bool{}
		unresolved []string
	)

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		rendered, drop, missing := r.renderLine(line)
		for _, m := range missing {
			if !seen[m] {
				seen[m] = true
				unresolved = append(unresolved, m)
			}
		}
		if drop {
			continue
		}
		out = append(out, rendered)
	}
	return strings.Join(out, "\n"), unresolved
}

// renderLine substitutes every token on line. drop is true when the line
// held only an empty block placeholder.
func (r *Renderer) renderLine(line string) (string, bool, []string) {
	if !strings.Contains(line, "${") {
		return line, false, nil
	}

	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	var (
		b       strings.Builder
		missing []string
		rest    = line
	)
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start

		b.WriteString(rest[:start])
		key := Placeholder(rest[start+2 : end])
		token := rest[start : end+1]
		rest = rest[end+1:]

		if !key.Known() {
			b.WriteString(token)
			continue
		}

		if key.IsBlock() {
			block, ok := r.values.Blocks[key]
			if !ok {
				missing = append(missing, string(key))
				b.WriteString(token)
				continue
			}
			if len(block) == 0 && strings.TrimSpace(line) == token {
				return "", true, missing
			}
			b.WriteString(strings.Join(block, "\n"+indent))
			continue
		}

		value, ok := r.values.Scalars[key]
		if !ok {
			missing = append(missing, string(key))
			b.WriteString(token)
			continue
		}
		b.WriteString(value)
	}
	return b.String(), false, missing
}
