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
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/logilab/onyxia-composer/pkg/config"
	"github.com/logilab/onyxia-composer/pkg/defaults"
	"github.com/logilab/onyxia-composer/pkg/errors"
	"github.com/logilab/onyxia-composer/pkg/gitsync"
	"github.com/logilab/onyxia-composer/pkg/image"
	"github.com/logilab/onyxia-composer/pkg/index"
	"github.com/logilab/onyxia-composer/pkg/oci"
	"github.com/logilab/onyxia-composer/pkg/registry"
	"github.com/logilab/onyxia-composer/pkg/render"
	"github.com/logilab/onyxia-composer/pkg/serializer"
	"github.com/logilab/onyxia-composer/pkg/version"
)

// NameInfo answers checkSrvName.
type NameInfo struct {
	Exists      bool   `json:"exists"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Summary is one entry of the service list.
type Summary struct {
	Description string `json:"description"`
	Tag         string `json:"tag"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithRepository overrides the git repository handle.
func WithRepository(repo *gitsync.Repository) Option {
	return func(m *Manager) {
		m.repo = repo
	}
}

// WithBuilder overrides the image builder.
func WithBuilder(b *image.Builder) Option {
	return func(m *Manager) {
		m.builder = b
	}
}

// WithPublisher enables pushing image build contexts. A nil publisher
// disables it.
func WithPublisher(p *oci.Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// Manager runs service lifecycle operations against one working tree.
// Operations are serialized.
type Manager struct {
	sem       chan struct{}
	cfg       *config.Config
	repo      *gitsync.Repository
	builder   *image.Builder
	publisher *oci.Publisher
}

// NewManager returns a Manager for cfg.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		sem: make(chan struct{}, 1),
		cfg: cfg,
		repo: gitsync.NewRepository(cfg.RepoDir,
			gitsync.WithRemote(cfg.Remote),
			gitsync.WithAuthor(cfg.GitAuthorName, cfg.GitAuthorEmail),
		),
		builder: image.NewBuilder(cfg.ImagesPath(),
			image.WithTemplate(cfg.ImageTemplatePath()),
			image.WithRegistry(cfg.ImageRegistry),
		),
	}
	if cfg.ContextRegistry != "" {
		m.publisher = oci.NewPublisher(cfg.ContextRegistry, oci.WithPlainHTTP(cfg.ContextPlainHTTP))
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create adds the service described by req, replacing it when it exists.
func (m *Manager) Create(ctx context.Context, req Request) (msg string, err error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	start := time.Now()
	defer func() { observe("create", start, err) }()

	name := NormalizeName(req.Name)
	if err := ValidateName(name); err != nil {
		return "", err
	}
	buildType, appType, err := req.Types()
	if err != nil {
		return "", err
	}
	limits, err := req.Resources(m.cfg.DefaultCPU, m.cfg.DefaultMemory)
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(m.cfg.ChartTemplatePath()); statErr != nil {
		return "", errors.WrapWithContext(errors.ErrCodeNotFound, "chart template not found", statErr,
			map[string]any{"path": m.cfg.ChartTemplatePath()})
	}

	if err := m.syncMain(ctx); err != nil {
		return "", err
	}

	ver, err := m.resolveVersion(ctx, name, req.Version)
	if err != nil {
		return "", err
	}

	spec := image.Spec{
		Name:      name,
		Version:   ver,
		BuildType: buildType,
		AppType:   appType,
		Image:     req.image(),
		RepoURL:   strings.TrimSpace(req.AppRepoURL),
		Revision:  strings.TrimSpace(req.Revision),
		LocalDir:  strings.TrimSpace(req.AppDir),
	}
	planned, err := m.builder.Plan(spec)
	if err != nil {
		return "", err
	}

	chartDir := m.chartDir(name)
	imageDir := m.builder.Dir(name)
	updated := exists(chartDir)
	if !updated && planned.Built && exists(imageDir) {
		return "", errors.NewWithContext(errors.ErrCodeAlreadyExists,
			fmt.Sprintf("image directory for %s already exists", name),
			map[string]any{"path": imageDir})
	}

	// only directories this call creates or replaces are cleaned on failure
	created := []string{chartDir}
	if updated || !exists(imageDir) {
		created = append(created, imageDir)
	}
	published := false
	defer func() {
		if err != nil && !published {
			m.rollback(ctx, created...)
		}
	}()

	if updated {
		slog.Info("service exists, replacing it", "service", name)
		if _, err = m.removeTree(ctx, name, false); err != nil {
			return "", err
		}
	}

	img, err := m.builder.Build(ctx, spec)
	if err != nil {
		return "", err
	}

	if img.Built && m.publisher != nil {
		pushCtx, cancel := context.WithTimeout(ctx, defaults.OCIPushTimeout)
		_, err = m.publisher.Publish(pushCtx, img.Dir, name, ver)
		cancel()
		if err != nil {
			return "", err
		}
	}

	values := m.chartValues(name, ver, req, appType, img, limits)
	renderer := render.New(values,
		render.WithStrict(m.cfg.StrictTemplates),
		render.WithRenderedPaths(m.cfg.RenderedPaths...),
	)
	if _, err = renderer.RenderTree(ctx, m.cfg.ChartTemplatePath(), chartDir); err != nil {
		return "", err
	}

	meta := req
	meta.Version = ver
	meta.AppBuildType = string(buildType)
	meta.AppType = string(appType)
	if err = serializer.WriteJSONFile(filepath.Join(chartDir, config.MetadataFile), meta); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, "failed to write service metadata", err)
	}

	paths := []string{chartDir}
	if img.Built {
		paths = append(paths, imageDir)
	} else {
		// an image directory left by a previous build type
		tracked, trackErr := m.repo.Tracked(ctx, imageDir)
		if trackErr != nil {
			err = trackErr
			return "", err
		}
		paths = append(paths, tracked...)
	}
	if _, err = m.repo.Publish(ctx, fmt.Sprintf("[auto] add %s service", name), paths...); err != nil {
		return "", err
	}
	published = true

	verb := "created"
	if updated {
		verb = "updated"
		// the stale index entry goes only once the replacement is pushed
		if _, err = m.removeIndexEntry(ctx, name); err != nil {
			slog.Error("service updated but its index entry was kept", "service", name, "error", err)
			return "", err
		}
	}
	slog.Info("service "+verb,
		"service", name,
		"version", ver,
		"image", img.Image,
		"build_type", buildType,
		"app_type", appType,
	)
	return fmt.Sprintf("Service %s is %s", name, verb), nil
}

// CheckName reports whether a service exists and the version a new
// release should default to.
func (m *Manager) CheckName(ctx context.Context, raw string) (info NameInfo, err error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return NameInfo{}, err
	}
	defer unlock()

	start := time.Now()
	defer func() { observe("check_name", start, err) }()

	name := NormalizeName(raw)
	if err := ValidateName(name); err != nil {
		return NameInfo{}, err
	}

	meta, found, err := m.readMetadata(name)
	if err != nil {
		return NameInfo{}, err
	}
	releases, err := m.ledger(ctx)
	if err != nil {
		return NameInfo{}, err
	}
	next, err := nextVersion(withMetadata(releases, name, meta), name)
	if err != nil {
		return NameInfo{}, err
	}

	info = NameInfo{
		Exists:  exists(m.chartDir(name)),
		Version: next,
	}
	if found {
		info.Description = meta.Description
		info.Icon = meta.IconURL
	}
	return info, nil
}

// CheckVersion returns a non-empty message when ver cannot be used for
// the service.
func (m *Manager) CheckVersion(ctx context.Context, raw, ver string) (msg string, err error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	start := time.Now()
	defer func() { observe("check_version", start, err) }()

	name := NormalizeName(raw)
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if _, err := m.validateVersion(ctx, name, ver); err != nil {
		if errors.IsCode(err, errors.ErrCodeInvalidRequest) || errors.IsCode(err, errors.ErrCodeAlreadyExists) {
			return ErrorMessage(err), nil
		}
		return "", err
	}
	return "", nil
}

// List returns every service under the charts directory.
func (m *Manager) List(ctx context.Context) (services map[string]Summary, err error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	defer func() { observe("list", start, err) }()

	entries, err := os.ReadDir(m.cfg.ChartsPath())
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return map[string]Summary{}, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to read charts directory", err)
	}

	ledger, err := m.ledger(ctx)
	if err != nil {
		return nil, err
	}

	services = make(map[string]Summary, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		meta, _, metaErr := m.readMetadata(e.Name())
		if metaErr != nil {
			slog.Warn("ignoring unreadable service metadata", "service", e.Name(), "error", metaErr)
		}
		services[e.Name()] = Summary{
			Description: meta.Description,
			Tag:         ledger.Tag(e.Name()),
		}
	}
	return services, nil
}

// Names returns the sorted service names, as listed by List.
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	services, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a service. With update set the removal from the main
// branch is left uncommitted for a following Create.
func (m *Manager) Delete(ctx context.Context, raw string, update bool) (msg string, err error) {
	unlock, err := m.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	start := time.Now()
	defer func() { observe("delete", start, err) }()

	name := NormalizeName(raw)
	if err := ValidateName(name); err != nil {
		return "", err
	}

	found, err := m.remove(ctx, name, update)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errors.NewWithContext(errors.ErrCodeNotFound,
			fmt.Sprintf("Service %s does not exist", name),
			map[string]any{"service": name})
	}

	slog.Info("service deleted", "service", name, "update", update)
	return fmt.Sprintf("Service %s is deleted", name), nil
}

// remove drops the index entry on the publish branch, then the chart and
// image directories on the main branch. It reports whether anything
// belonging to the service was found. The working tree is left on the
// main branch.
func (m *Manager) remove(ctx context.Context, name string, update bool) (bool, error) {
	indexed, err := m.removeIndexEntry(ctx, name)
	if err != nil {
		return false, err
	}

	if err := m.syncMain(ctx); err != nil {
		return false, err
	}

	found, err := m.removeTree(ctx, name, !update)
	if err != nil {
		return false, err
	}
	return indexed || found, nil
}

// removeTree deletes the chart and image directories of name from the
// current branch and, when commit is set, publishes the removal.
func (m *Manager) removeTree(ctx context.Context, name string, commit bool) (bool, error) {
	paths := []string{m.chartDir(name), m.builder.Dir(name)}
	tracked, err := m.repo.Tracked(ctx, paths...)
	if err != nil {
		return false, err
	}
	found := len(tracked) > 0 || exists(paths[0]) || exists(paths[1])

	if err := m.repo.Remove(paths...); err != nil {
		return false, err
	}
	if !commit || len(tracked) == 0 {
		return found, nil
	}
	if _, err := m.repo.Publish(ctx, fmt.Sprintf("[auto] delete %s service", name), tracked...); err != nil {
		return false, err
	}
	return found, nil
}

// removeIndexEntry runs the publish branch part of a delete and always
// tries to return to the main branch.
func (m *Manager) removeIndexEntry(ctx context.Context, name string) (removed bool, err error) {
	if err := m.repo.Checkout(ctx, m.cfg.PublishBranch); err != nil {
		return false, err
	}
	defer func() {
		if coErr := m.repo.Checkout(context.WithoutCancel(ctx), m.cfg.MainBranch); coErr != nil && err == nil {
			err = coErr
		}
	}()

	if err := m.repo.Pull(ctx); err != nil {
		return false, err
	}
	removed, err = index.RemoveEntry(m.cfg.IndexPath(), name)
	if err != nil {
		return false, err
	}
	if !removed {
		slog.Debug("service not in package index", "service", name)
		return false, nil
	}
	if _, err := m.repo.Publish(ctx, fmt.Sprintf("[auto] delete %s service", name), m.cfg.IndexPath()); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) syncMain(ctx context.Context) error {
	if err := m.repo.Checkout(ctx, m.cfg.MainBranch); err != nil {
		return err
	}
	return m.repo.Pull(ctx)
}

// rollback restores the working tree to HEAD and removes the untracked
// files left under paths.
func (m *Manager) rollback(ctx context.Context, paths ...string) {
	ctx = context.WithoutCancel(ctx)
	dirty, err := m.repo.HasChanges(ctx)
	if err != nil {
		slog.Error("failed to inspect working tree", "error", err)
	} else if !dirty {
		return
	}

	slog.Warn("rolling back working tree", "paths", paths)
	if err := m.repo.ResetHard(ctx, "HEAD"); err != nil {
		slog.Error("failed to reset working tree", "error", err)
	}
	if err := m.repo.Clean(ctx, paths...); err != nil {
		slog.Error("failed to clean working tree", "error", err)
	}
}

// lock waits for exclusive use of the working tree. It gives up with a
// TIMEOUT error when ctx ends first.
func (m *Manager) lock(ctx context.Context) (func(), error) {
	select {
	case m.sem <- struct{}{}:
		return func() { <-m.sem }, nil
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeTimeout, "service repository is busy", ctx.Err())
	}
}

func (m *Manager) ledger(ctx context.Context) (*registry.Ledger, error) {
	tags, err := m.repo.Tags(ctx)
	if err != nil {
		return nil, err
	}
	return registry.NewLedger(tags), nil
}

// withMetadata records the version stored in the metadata of name as a
// release, so an untagged release still counts as the latest one.
func withMetadata(l *registry.Ledger, name string, meta Request) *registry.Ledger {
	if meta.Version == "" {
		return l
	}
	if _, err := version.ParseVersion(meta.Version); err != nil {
		slog.Warn("ignoring invalid metadata version", "service", name, "version", meta.Version)
		return l
	}
	l.Append(name + "-" + meta.Version)
	return l
}

func nextVersion(l *registry.Ledger, name string) (string, error) {
	next, err := l.NextVersion(name)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("failed to read released versions of %s", name), err)
	}
	return next, nil
}

// resolveVersion returns the requested version when it is usable, or the
// next default version when none was requested.
func (m *Manager) resolveVersion(ctx context.Context, name, requested string) (string, error) {
	if strings.TrimSpace(requested) != "" {
		return m.validateVersion(ctx, name, requested)
	}
	meta, _, err := m.readMetadata(name)
	if err != nil {
		return "", err
	}
	releases, err := m.ledger(ctx)
	if err != nil {
		return "", err
	}
	return nextVersion(withMetadata(releases, name, meta), name)
}

// validateVersion rejects unparseable versions, versions already tagged for
// name, and versions older than the latest known one. The version stored in
// the metadata may be reused.
func (m *Manager) validateVersion(ctx context.Context, name, raw string) (string, error) {
	ver := strings.TrimSpace(raw)
	v, err := version.ParseVersion(ver)
	if err != nil {
		return "", errors.WrapWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Version %s is not valid", raw), err, map[string]any{"version": raw})
	}

	releases, err := m.ledger(ctx)
	if err != nil {
		return "", err
	}
	if releases.Exists(name, ver) {
		return "", errors.NewWithContext(errors.ErrCodeAlreadyExists,
			fmt.Sprintf("Version %s of %s already exists", ver, name),
			map[string]any{"service": name, "version": ver})
	}

	meta, _, err := m.readMetadata(name)
	if err != nil {
		return "", err
	}
	latest, ok, err := withMetadata(releases, name, meta).Latest(name)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("failed to read released versions of %s", name), err)
	}
	if !ok {
		return ver, nil
	}
	if lv, _ := version.ParseVersion(latest.Version); lv.IsNewer(v) {
		return "", errors.NewWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Version %s of %s is older than the latest version %s", ver, name, lv),
			map[string]any{"latest": lv.String()})
	}
	return ver, nil
}

func (m *Manager) chartDir(name string) string {
	return filepath.Join(m.cfg.ChartsPath(), name)
}

// readMetadata loads the stored request of a service. found is false when
// the service has no metadata file.
func (m *Manager) readMetadata(name string) (meta Request, found bool, err error) {
	path := filepath.Join(m.chartDir(name), config.MetadataFile)
	if !exists(path) {
		return Request{}, false, nil
	}
	r, err := serializer.FromFile[Request](path)
	if err != nil {
		return Request{}, false, errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("failed to read metadata of %s", name), err)
	}
	return *r, true, nil
}

func (m *Manager) chartValues(name, ver string, req Request, appType image.AppType,
	img *image.Result, limits corev1.ResourceList) render.Values {
	icon := strings.TrimSpace(req.IconURL)
	if icon == "" {
		icon = m.cfg.DefaultIconURL
	}
	entry := strings.TrimSpace(req.NotebookName)
	if entry == "" {
		entry = appType.DefaultEntrypoint()
	}
	command := appType.Command(entry)

	quoted := make([]string, len(command))
	for i, arg := range command {
		quoted[i] = "- " + strconv.Quote(arg)
	}

	return render.NewValues().
		Set(render.Name, name).
		Set(render.Description, req.Description).
		Set(render.Image, img.Image).
		Set(render.IconURL, icon).
		Set(render.RepoURL, req.AppRepoURL).
		Set(render.Version, ver).
		Set(render.DockerImageTag, image.TagOf(img.Image)).
		Set(render.DefaultCPU, limits.Cpu().String()).
		Set(render.DefaultMemory, limits.Memory().String()).
		Set(render.AppCommand, strings.Join(command, " ")).
		SetBlock(render.BuildCommands, img.Commands...).
		SetBlock(render.Commands, quoted...)
}

// ErrorMessage returns the message of the outermost structured error, or
// err.Error() for any other error.
func ErrorMessage(err error) string {
	var se *errors.StructuredError
	if stderrors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
