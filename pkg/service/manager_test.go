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
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logilab/onyxia-composer/pkg/config"
	"github.com/logilab/onyxia-composer/pkg/errors"
)

var gitEnv = []string{
	"GIT_AUTHOR_NAME=Test",
	"GIT_AUTHOR_EMAIL=test@test.local",
	"GIT_COMMITTER_NAME=Test",
	"GIT_COMMITTER_EMAIL=test@test.local",
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", dir}, args...)...)
	command.Env = append(os.Environ(), gitEnv...)
	output, err := command.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
	}
	return string(output)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const (
	chartYAML = `apiVersion: v2
name: ${NAME}
description: ${DESCRIPTION}
version: ${VERSION}
icon: ${ICONURL}
`
	valuesYAML = `image:
  repository: ${IMAGE}
  tag: ${DOCKER_IMAGE_TAG}
resources:
  limits:
    cpu: ${DEFAULT_CPU}
    memory: ${DEFAULT_MEMORY}
`
	statefulsetYAML = `spec:
  containers:
    - name: app
      command:
        ${COMMANDS}
`
	serviceYAML = "name: ${NAME}\n"

	indexYAML = `apiVersion: v1
entries:
  sales_dashboard:
    - name: sales_dashboard
      version: 0.0.1
  other:
    - name: other
      version: 1.0.0
generated: "2024-01-01T00:00:00Z"
`
)

type fixture struct {
	remote string
	work   string
	cfg    *config.Config
	mgr    *Manager
}

// newFixture creates a bare remote with a main branch holding the chart
// template and a gh-pages branch holding the Helm index, and a working
// tree cloned from it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	root := t.TempDir()
	remote := filepath.Join(root, "remote.git")
	work := filepath.Join(root, "work")

	gitCmd(t, root, "init", "--quiet", "--bare", remote)
	gitCmd(t, root, "init", "--quiet", work)
	gitCmd(t, work, "checkout", "--quiet", "-b", "main")

	tmpl := filepath.Join(work, "charts-template", "voila")
	writeFile(t, filepath.Join(tmpl, "Chart.yaml"), chartYAML)
	writeFile(t, filepath.Join(tmpl, "values.yaml"), valuesYAML)
	writeFile(t, filepath.Join(tmpl, "templates", "statefulset.yaml"), statefulsetYAML)
	writeFile(t, filepath.Join(tmpl, "templates", "service.yaml"), serviceYAML)
	writeFile(t, filepath.Join(work, "charts", "other", "Chart.yaml"), "name: other\n")
	writeFile(t, filepath.Join(work, "charts", "other", config.MetadataFile),
		`{"name":"other","version":"1.0.0","desc":"Other app"}`)

	gitCmd(t, work, "add", "--all")
	gitCmd(t, work, "commit", "--quiet", "-m", "initial")
	gitCmd(t, work, "remote", "add", "origin", remote)
	gitCmd(t, work, "push", "--quiet", "-u", "origin", "main")

	gitCmd(t, work, "checkout", "--quiet", "--orphan", "gh-pages")
	gitCmd(t, work, "rm", "-r", "-f", "--quiet", ".")
	writeFile(t, filepath.Join(work, "index.yaml"), indexYAML)
	gitCmd(t, work, "add", "index.yaml")
	gitCmd(t, work, "commit", "--quiet", "-m", "index")
	gitCmd(t, work, "push", "--quiet", "-u", "origin", "gh-pages")
	gitCmd(t, work, "checkout", "--quiet", "main")
	gitCmd(t, work, "tag", "other-1.0.0")

	cfg := config.Default()
	cfg.RepoDir = work
	cfg.GitAuthorName = "Composer"
	cfg.GitAuthorEmail = "composer@test.local"

	return &fixture{remote: remote, work: work, cfg: cfg, mgr: NewManager(cfg)}
}

func (f *fixture) remoteSubjects(t *testing.T, branch string, n int) []string {
	t.Helper()
	out := gitCmd(t, f.remote, "log", "-n", strconv.Itoa(n), "--format=%s", branch)
	return strings.Split(strings.TrimSpace(out), "\n")
}

func (f *fixture) remoteIndex(t *testing.T) string {
	t.Helper()
	return gitCmd(t, f.remote, "show", "gh-pages:index.yaml")
}

func (f *fixture) readChart(t *testing.T, name, file string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.work, "charts", name, file))
	require.NoError(t, err)
	return string(data)
}

func TestCreate_DockerImage(t *testing.T) {
	f := newFixture(t)

	msg, err := f.mgr.Create(t.Context(), Request{
		Name:        "  New App ",
		Description: "A new app",
		AppType:     "fromDockerImage",
		AppImage:    "jupyter/base-notebook:2024.1",
		CPU:         "500m",
		Memory:      "1Gi",
	})
	require.NoError(t, err)
	assert.Equal(t, "Service new_app is created", msg)

	chart := f.readChart(t, "new_app", "Chart.yaml")
	assert.Contains(t, chart, "name: new_app\n")
	assert.Contains(t, chart, "description: A new app\n")
	assert.Contains(t, chart, "version: 0.0.1\n")
	assert.Contains(t, chart, "icon: "+config.DefaultIconURL+"\n")

	values := f.readChart(t, "new_app", "values.yaml")
	assert.Contains(t, values, "repository: jupyter/base-notebook:2024.1\n")
	assert.Contains(t, values, "tag: 2024.1\n")
	assert.Contains(t, values, "cpu: 500m\n")
	assert.Contains(t, values, "memory: 1Gi\n")

	sts := f.readChart(t, "new_app", "templates/statefulset.yaml")
	assert.Contains(t, sts, "        - \"voila\"\n        - \"index.ipynb\"\n")
	assert.Equal(t, serviceYAML, f.readChart(t, "new_app", "templates/service.yaml"),
		"nested files are copied verbatim")

	meta := f.readChart(t, "new_app", config.MetadataFile)
	assert.Contains(t, meta, `"version": "0.0.1"`)
	assert.Contains(t, meta, `"appBuildType": "fromDockerImage"`)

	assert.NoDirExists(t, filepath.Join(f.work, "images", "new_app"))
	assert.Equal(t, "[auto] add new_app service", f.remoteSubjects(t, "main", 1)[0])
}

func TestCreate_FromRepoBuildsImage(t *testing.T) {
	f := newFixture(t)

	msg, err := f.mgr.Create(t.Context(), Request{
		Name:         "dash board",
		Version:      "1.0.0",
		AppBuildType: "fromRepo",
		AppType:      "dash",
		AppRepoURL:   "https://github.com/logilab/dash-demo",
		Revision:     "v1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Service dash_board is created", msg)

	dockerfile, err := os.ReadFile(filepath.Join(f.work, "images", "dash_board", "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(dockerfile), "RUN git clone https://github.com/logilab/dash-demo /app\n")
	assert.Contains(t, string(dockerfile), "RUN git -C /app checkout v1\n")

	values := f.readChart(t, "dash_board", "values.yaml")
	assert.Contains(t, values, "repository: ghcr.io/logilab/dash_board:1.0.0\n")
	assert.Contains(t, values, "tag: 1.0.0\n")

	tracked := gitCmd(t, f.remote, "ls-tree", "-r", "--name-only", "main")
	assert.Contains(t, tracked, "images/dash_board/Dockerfile")
	assert.Contains(t, tracked, "charts/dash_board/Chart.yaml")
}

func TestCreate_UnsupportedBuildTypeCreatesNothing(t *testing.T) {
	f := newFixture(t)
	head := gitCmd(t, f.work, "rev-parse", "HEAD")

	_, err := f.mgr.Create(t.Context(), Request{
		Name:         "broken",
		AppBuildType: "fromFloppy",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))

	assert.NoDirExists(t, filepath.Join(f.work, "charts", "broken"))
	assert.NoDirExists(t, filepath.Join(f.work, "images", "broken"))
	assert.Equal(t, head, gitCmd(t, f.work, "rev-parse", "HEAD"))
}

func TestCreate_InvalidResources(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Create(t.Context(), Request{
		Name:     "app",
		AppImage: "nginx",
		CPU:      "two cores",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))
	assert.NoDirExists(t, filepath.Join(f.work, "charts", "app"))
}

func TestCreate_ExistingServiceIsUpdated(t *testing.T) {
	f := newFixture(t)
	req := Request{Name: "Sales Dashboard", AppImage: "nginx:1.25"}

	msg, err := f.mgr.Create(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, "Service sales_dashboard is created", msg)

	req.Description = "second"
	msg, err = f.mgr.Create(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, "Service sales_dashboard is updated", msg)

	chart := f.readChart(t, "sales_dashboard", "Chart.yaml")
	assert.Contains(t, chart, "version: 0.0.2\n")
	assert.Contains(t, chart, "description: second\n")

	assert.Equal(t, []string{
		"[auto] add sales_dashboard service",
		"[auto] add sales_dashboard service",
	}, f.remoteSubjects(t, "main", 2), "an update does not commit the intermediate delete")

	idx := f.remoteIndex(t)
	assert.NotContains(t, idx, "sales_dashboard:")
	assert.Contains(t, idx, "other:")
	assert.Equal(t, "[auto] delete sales_dashboard service", f.remoteSubjects(t, "gh-pages", 1)[0])
}

func TestCreate_SwitchingToPassthroughDropsImageDir(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Create(t.Context(), Request{
		Name:         "app",
		AppBuildType: "fromRepo",
		AppRepoURL:   "https://github.com/logilab/app",
	})
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(f.work, "images", "app"))

	_, err = f.mgr.Create(t.Context(), Request{Name: "app", AppImage: "nginx"})
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(f.work, "images", "app"))
	tracked := gitCmd(t, f.remote, "ls-tree", "-r", "--name-only", "main")
	assert.NotContains(t, tracked, "images/app/")
}

func TestCreate_PushFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	head := gitCmd(t, f.work, "rev-parse", "HEAD")

	hook := filepath.Join(f.remote, "hooks", "pre-receive")
	writeFile(t, hook, "#!/bin/sh\nexit 1\n")
	require.NoError(t, os.Chmod(hook, 0755))

	_, err := f.mgr.Create(t.Context(), Request{Name: "app", AppImage: "nginx"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnavailable, errors.CodeOf(err))

	assert.Equal(t, head, gitCmd(t, f.work, "rev-parse", "HEAD"))
	assert.NoDirExists(t, filepath.Join(f.work, "charts", "app"))
	assert.Empty(t, strings.TrimSpace(gitCmd(t, f.work, "status", "--porcelain")))
}

func TestCreate_KeepsExistingImageDir(t *testing.T) {
	f := newFixture(t)
	dockerfile := filepath.Join(f.work, "images", "app", "Dockerfile")
	writeFile(t, dockerfile, "FROM scratch\n")

	_, err := f.mgr.Create(t.Context(), Request{
		Name:         "app",
		AppBuildType: "fromRepo",
		AppRepoURL:   "https://github.com/logilab/app",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyExists, errors.CodeOf(err))

	data, err := os.ReadFile(dockerfile)
	require.NoError(t, err, "untracked image directory must survive a failed create")
	assert.Equal(t, "FROM scratch\n", string(data))
	assert.NoDirExists(t, filepath.Join(f.work, "charts", "app"))
}

func TestCreate_PassthroughLeavesUntrackedImageDir(t *testing.T) {
	f := newFixture(t)
	dockerfile := filepath.Join(f.work, "images", "app", "Dockerfile")
	writeFile(t, dockerfile, "FROM scratch\n")

	hook := filepath.Join(f.remote, "hooks", "pre-receive")
	writeFile(t, hook, "#!/bin/sh\nexit 1\n")
	require.NoError(t, os.Chmod(hook, 0755))

	_, err := f.mgr.Create(t.Context(), Request{Name: "app", AppImage: "nginx"})
	require.Error(t, err)

	assert.FileExists(t, dockerfile)
	assert.NoDirExists(t, filepath.Join(f.work, "charts", "app"))
}

func TestCreate_FailedUpdateKeepsIndexEntry(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Create(t.Context(), Request{Name: "sales_dashboard", AppImage: "nginx"})
	require.NoError(t, err)
	mainHead := gitCmd(t, f.work, "rev-parse", "HEAD")
	pagesHead := gitCmd(t, f.remote, "rev-parse", "gh-pages")

	hook := filepath.Join(f.remote, "hooks", "pre-receive")
	writeFile(t, hook, `#!/bin/sh
while read old new ref; do
	[ "$ref" = "refs/heads/main" ] && exit 1
done
exit 0
`)
	require.NoError(t, os.Chmod(hook, 0755))

	_, err = f.mgr.Create(t.Context(), Request{Name: "sales_dashboard", Description: "second", AppImage: "nginx"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnavailable, errors.CodeOf(err))

	assert.Contains(t, f.remoteIndex(t), "sales_dashboard:")
	assert.Equal(t, pagesHead, gitCmd(t, f.remote, "rev-parse", "gh-pages"))

	assert.Equal(t, mainHead, gitCmd(t, f.work, "rev-parse", "HEAD"))
	assert.Contains(t, f.readChart(t, "sales_dashboard", "Chart.yaml"), "version: 0.0.1\n")
	assert.Empty(t, strings.TrimSpace(gitCmd(t, f.work, "status", "--porcelain")))
}

func TestCreate_RejectsTakenVersion(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Create(t.Context(), Request{Name: "other", Version: "1.0.0", AppImage: "nginx"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyExists, errors.CodeOf(err))
	assert.Equal(t, "name: other\n", f.readChart(t, "other", "Chart.yaml"), "existing chart is untouched")
}

func TestCreate_ConcurrentCallsAreSerialized(t *testing.T) {
	f := newFixture(t)

	names := []string{"alpha", "beta", "gamma"}
	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.mgr.Create(t.Context(), Request{Name: name, AppImage: "nginx"})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, names[i])
	}
	subjects := strings.Join(f.remoteSubjects(t, "main", len(names)), "\n")
	for _, name := range names {
		assert.Contains(t, subjects, "[auto] add "+name+" service")
	}
}

func TestLockHonoursContext(t *testing.T) {
	mgr := NewManager(config.Default())

	unlock, err := mgr.lock(t.Context())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = mgr.CheckName(ctx, "app")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTimeout, errors.CodeOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)

	unlock()
	again, err := mgr.lock(t.Context())
	require.NoError(t, err, "lock is free once released")
	again()
}

func TestCheckName_MetadataVersionCounts(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.work, "charts", "draft", config.MetadataFile),
		`{"name":"draft","version":"2.1.0"}`)
	gitCmd(t, f.work, "tag", "draft-1.0.0")

	info, err := f.mgr.CheckName(t.Context(), "draft")
	require.NoError(t, err)
	assert.Equal(t, "2.1.1", info.Version)

	msg, err := f.mgr.CheckVersion(t.Context(), "draft", "2.1.0")
	require.NoError(t, err)
	assert.Empty(t, msg, "untagged metadata version may be reused")

	msg, err = f.mgr.CheckVersion(t.Context(), "draft", "1.5.0")
	require.NoError(t, err)
	assert.Equal(t, "Version 1.5.0 of draft is older than the latest version 2.1.0", msg)
}

func TestCheckName(t *testing.T) {
	f := newFixture(t)

	info, err := f.mgr.CheckName(t.Context(), "Brand New")
	require.NoError(t, err)
	assert.Equal(t, NameInfo{Exists: false, Version: "0.0.1"}, info)

	info, err = f.mgr.CheckName(t.Context(), "other")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, "1.0.1", info.Version)
	assert.Equal(t, "Other app", info.Description)

	gitCmd(t, f.work, "tag", "myapp-1.2.3")
	info, err = f.mgr.CheckName(t.Context(), "myapp")
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Equal(t, "1.2.4", info.Version)

	_, err = f.mgr.CheckName(t.Context(), "../etc")
	assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))
}

func TestCheckVersion(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		service string
		version string
		want    string
	}{
		{"free", "other", "1.0.1", ""},
		{"new service", "fresh", "0.0.1", ""},
		{"taken", "other", "1.0.0", "Version 1.0.0 of other already exists"},
		{"taken short form", "other", "1.0", "Version 1.0 of other already exists"},
		{"older", "other", "0.9.0", "Version 0.9.0 of other is older than the latest version 1.0.0"},
		{"invalid", "other", "one", "Version one is not valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := f.mgr.CheckVersion(t.Context(), tt.service, tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Create(t.Context(), Request{Name: "app", Description: "An app", AppImage: "nginx"})
	require.NoError(t, err)

	services, err := f.mgr.List(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]Summary{
		"other": {Description: "Other app", Tag: "other-1.0.0"},
		"app":   {Description: "An app", Tag: ""},
	}, services)

	names, err := f.mgr.Names(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "other"}, names)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Create(t.Context(), Request{
		Name:         "sales dashboard",
		AppBuildType: "fromRepo",
		AppRepoURL:   "https://github.com/logilab/sales",
	})
	require.NoError(t, err)

	msg, err := f.mgr.Delete(t.Context(), "Sales Dashboard", false)
	require.NoError(t, err)
	assert.Equal(t, "Service sales_dashboard is deleted", msg)

	assert.NoDirExists(t, filepath.Join(f.work, "charts", "sales_dashboard"))
	assert.NoDirExists(t, filepath.Join(f.work, "images", "sales_dashboard"))
	assert.Equal(t, "[auto] delete sales_dashboard service", f.remoteSubjects(t, "main", 1)[0])
	assert.Equal(t, "[auto] delete sales_dashboard service", f.remoteSubjects(t, "gh-pages", 1)[0])
	assert.NotContains(t, f.remoteIndex(t), "sales_dashboard:")

	branch := strings.TrimSpace(gitCmd(t, f.work, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Equal(t, "main", branch)
}

func TestDelete_IndexUntouchedWhenAbsent(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Create(t.Context(), Request{Name: "app", AppImage: "nginx"})
	require.NoError(t, err)
	pagesHead := gitCmd(t, f.remote, "rev-parse", "gh-pages")

	_, err = f.mgr.Delete(t.Context(), "app", false)
	require.NoError(t, err)

	assert.Equal(t, pagesHead, gitCmd(t, f.remote, "rev-parse", "gh-pages"))
	assert.Equal(t, "[auto] delete app service", f.remoteSubjects(t, "main", 1)[0])
}

func TestDelete_UpdateLeavesRemovalUncommitted(t *testing.T) {
	f := newFixture(t)
	mainHead := gitCmd(t, f.remote, "rev-parse", "main")

	_, err := f.mgr.Delete(t.Context(), "other", true)
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(f.work, "charts", "other"))
	assert.Equal(t, mainHead, gitCmd(t, f.remote, "rev-parse", "main"))
	assert.NotEmpty(t, strings.TrimSpace(gitCmd(t, f.work, "status", "--porcelain")))
}

func TestDelete_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Delete(t.Context(), "ghost", false)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}
