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

package serializer

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string   `json:"name" yaml:"name"`
	Version string   `json:"version" yaml:"version"`
	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"composer.yaml", FormatYAML},
		{"composer.YML", FormatYAML},
		{"req.json", FormatJSON},
		{"out.table", FormatTable},
		{"out.txt", FormatTable},
		{"noext", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFromPath(tt.path))
		})
	}
}

func TestNewReaderRejectsTable(t *testing.T) {
	_, err := NewReader(FormatTable, strings.NewReader(""))
	assert.Error(t, err)

	_, err = NewReader(Format("xml"), strings.NewReader(""))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: dash\nversion: 0.0.2\ntags: [a, b]\n"), 0o644))
	got, err := FromFile[sample](yamlPath)
	require.NoError(t, err)
	assert.Equal(t, sample{Name: "dash", Version: "0.0.2", Tags: []string{"a", "b"}}, *got)

	jsonPath := filepath.Join(dir, "s.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name":"voila","version":"1.0"}`), 0o644))
	got, err = FromFile[sample](jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "voila", got.Name)

	_, err = FromFile[sample](filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"name":`), 0o644))
	_, err = FromFile[sample](badPath)
	assert.Error(t, err)
}

func TestReaderCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	r, err := NewFileReader(FormatJSON, path)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	var nilReader *Reader
	assert.NoError(t, nilReader.Close())
	assert.Error(t, nilReader.Deserialize(&sample{}))
}

func TestWriterFormats(t *testing.T) {
	in := []sample{{Name: "app", Version: "0.0.1"}}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(FormatJSON, &buf).Serialize(in))
	assert.Contains(t, buf.String(), `"name": "app"`)

	buf.Reset()
	require.NoError(t, NewWriter(FormatYAML, &buf).Serialize(in))
	assert.Contains(t, buf.String(), "- name: app")

	buf.Reset()
	require.NoError(t, NewWriter(FormatTable, &buf).Serialize(in))
	out := buf.String()
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "[0].name")
	assert.Contains(t, out, "[0].version")
	assert.NotContains(t, out, "[0].tags")

	buf.Reset()
	require.NoError(t, NewWriter(FormatTable, &buf).Serialize([]sample{}))
	assert.Equal(t, "<empty>\n", buf.String())
}

func TestWriterUnknownFormatFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(Format("xml"), &buf).Serialize(map[string]int{"a": 1}))
	assert.Contains(t, buf.String(), `"a": 1`)
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jcomposer.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	require.NoError(t, WriteJSONFile(path, sample{Name: "x", Version: "1"}))

	got, err := FromFile[sample](path)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Name)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not remain")
}

func TestRespondJSON(t *testing.T) {
	w := httptest.NewRecorder()
	RespondJSON(w, http.StatusCreated, map[string]string{"message": "ok"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"ok"}`, w.Body.String())
}

func TestRespondJSONEncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()
	RespondJSON(w, http.StatusOK, map[string]any{"ch": make(chan int)})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		max     int64
		wantErr bool
	}{
		{"valid", `{"name":"a"}`, 1024, false},
		{"empty", ``, 1024, true},
		{"malformed", `{"name":`, 1024, true},
		{"too large", `{"name":"` + strings.Repeat("a", 64) + `"}`, 16, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var s sample
			err := DecodeJSON(r, &s, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", s.Name)
		})
	}
}
