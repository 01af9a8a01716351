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

package registry

import (
	"fmt"
	"strings"

	"github.com/logilab/onyxia-composer/pkg/version"
)

// Release is one tagged version of a service.
type Release struct {
	Tag     string
	Name    string
	Version string
}

// Ledger is an append-only record of releases keyed by service name.
// The zero value is an empty ledger ready for use.
type Ledger struct {
	releases map[string][]Release
}

// ParseTag splits a "<name>-<version>" tag. ok is false when the tag has no
// dash or either side is empty.
func ParseTag(tag string) (name, ver string, ok bool) {
	i := strings.LastIndex(tag, "-")
	if i <= 0 || i == len(tag)-1 {
		return "", "", false
	}
	return tag[:i], tag[i+1:], true
}

// NewLedger builds a ledger from a tag list, preserving tag order.
// Tags that do not look like "<name>-<version>" are ignored.
func NewLedger(tags []string) *Ledger {
	l := &Ledger{}
	for _, t := range tags {
		l.Append(t)
	}
	return l
}

// Append records a tag. It reports false if the tag could not be parsed.
func (l *Ledger) Append(tag string) bool {
	name, ver, ok := ParseTag(strings.TrimSpace(tag))
	if !ok {
		return false
	}
	if l.releases == nil {
		l.releases = make(map[string][]Release)
	}
	l.releases[name] = append(l.releases[name], Release{Tag: tag, Name: name, Version: ver})
	return true
}

// Latest returns the release with the highest version for name.
// Releases whose version does not parse cause an error.
func (l *Ledger) Latest(name string) (Release, bool, error) {
	rs := l.releases[name]
	if len(rs) == 0 {
		return Release{}, false, nil
	}

	var (
		best    Release
		bestVer version.Version
	)
	for i, r := range rs {
		v, err := version.ParseVersion(r.Version)
		if err != nil {
			return Release{}, false, fmt.Errorf("tag %q: %w", r.Tag, err)
		}
		if i == 0 || !bestVer.IsNewer(v) {
			best, bestVer = r, v
		}
	}
	return best, true, nil
}

// NextVersion returns the version a new release of name should default to:
// version.DefaultVersion when nothing was released, otherwise the latest
// version with its last component incremented.
func (l *Ledger) NextVersion(name string) (string, error) {
	latest, ok, err := l.Latest(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return version.DefaultVersion, nil
	}
	return version.Next(latest.Version)
}

// Exists reports whether ver is already released for name. Versions are
// compared numerically when both parse, so "1.0" matches a "1.0.0" tag.
func (l *Ledger) Exists(name, ver string) bool {
	want, wantErr := version.ParseVersion(ver)
	for _, r := range l.releases[name] {
		if r.Version == ver {
			return true
		}
		if wantErr != nil {
			continue
		}
		if got, err := version.ParseVersion(r.Version); err == nil && got.Equals(want) {
			return true
		}
	}
	return false
}

// Tag returns the tag of the latest release of name, or "" if none can be
// determined.
func (l *Ledger) Tag(name string) string {
	latest, ok, err := l.Latest(name)
	if err != nil || !ok {
		return ""
	}
	return latest.Tag
}
