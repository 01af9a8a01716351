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

package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIndex = `apiVersion: v1
entries:
  foo:
    - name: foo
      version: 0.0.1
      urls:
        - https://example.org/foo-0.0.1.tgz
  bar:
    - name: bar
      version: 1.2.0
generated: "2025-01-01T00:00:00Z"
`

func writeIndex(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRemoveEntry(t *testing.T) {
	path := writeIndex(t, sampleIndex)

	changed, err := RemoveEntry(path, "foo")
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.NotContains(t, content, "foo")
	assert.Contains(t, content, "bar:")
	assert.Contains(t, content, "version: 1.2.0")
	assert.Contains(t, content, "generated:")
	assert.True(t, strings.HasPrefix(content, "apiVersion: v1"))
}

func TestRemoveEntryAbsent(t *testing.T) {
	path := writeIndex(t, sampleIndex)

	changed, err := RemoveEntry(path, "baz")
	require.NoError(t, err)
	assert.False(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleIndex, string(data), "file must not be rewritten")
}

func TestRemoveEntryMissingFile(t *testing.T) {
	changed, err := RemoveEntry(filepath.Join(t.TempDir(), FileName), "foo")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRemoveEntryNoEntries(t *testing.T) {
	path := writeIndex(t, "apiVersion: v1\n")

	changed, err := RemoveEntry(path, "foo")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRemoveEntryInvalidYAML(t *testing.T) {
	path := writeIndex(t, "entries: [unterminated\n")

	_, err := RemoveEntry(path, "foo")
	assert.Error(t, err)
}
