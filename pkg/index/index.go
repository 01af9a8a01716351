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

// Package index edits the Helm repository index (index.yaml) published on
// the chart repository's pages branch.
package index

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the Helm repository index file name.
const FileName = "index.yaml"

// RemoveEntry deletes entries.<name> from the index at path, leaving the rest
// of the document untouched. It reports whether the file changed. A missing
// file or entry is not an error.
func RemoveEntry(path, name string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	entries := lookup(&doc, "entries")
	if entries == nil || entries.Kind != yaml.MappingNode {
		return false, nil
	}

	removed := false
	for i := 0; i+1 < len(entries.Content); i += 2 {
		if entries.Content[i].Value == name {
			entries.Content = append(entries.Content[:i], entries.Content[i+2:]...)
			removed = true
			break
		}
	}
	if !removed {
		return false, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return false, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return false, fmt.Errorf("failed to encode %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}

	slog.Debug("index entry removed", "path", path, "chart", name)
	return true, nil
}

// lookup returns the value node for key in the top-level mapping of doc.
func lookup(doc *yaml.Node, key string) *yaml.Node {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			return root.Content[i+1]
		}
	}
	return nil
}
