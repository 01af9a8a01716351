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

package version

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr error
	}{
		{"full", "1.2.3", NewVersion(1, 2, 3), nil},
		{"v prefix", "v0.0.1", NewVersion(0, 0, 1), nil},
		{"major minor", "1.4", Version{Major: 1, Minor: 4, Precision: 2}, nil},
		{"major only", "7", Version{Major: 7, Precision: 1}, nil},
		{"empty", "", Version{}, ErrEmptyVersion},
		{"too many", "1.2.3.4", Version{}, ErrTooManyComponents},
		{"non numeric", "1.2.x", Version{}, ErrNonNumeric},
		{"empty component", "1..2", Version{}, ErrNonNumeric},
		{"negative", "1.-2", Version{}, ErrNegativeComponent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseVersion(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVersion(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBump(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0.0.1", "0.0.2"},
		{"1.2.9", "1.2.10"},
		{"1.2", "1.3"},
		{"4", "5"},
		{"v2.0.0", "2.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Next(tt.input)
			if err != nil {
				t.Fatalf("Next(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Next(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNextNonNumeric(t *testing.T) {
	if _, err := Next("1.0.beta"); !errors.Is(err, ErrNonNumeric) {
		t.Errorf("expected ErrNonNumeric, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2", "1.2.0", 0},
		{"1.0.10", "1.0.9", 1},
		{"0.9.9", "1.0.0", -1},
		{"2", "1.9.9", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			a := MustParseVersion(tt.a)
			b := MustParseVersion(tt.b)
			if got := a.Compare(b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := a.IsNewer(b); got != (tt.want > 0) {
				t.Errorf("IsNewer(%s, %s) = %v", tt.a, tt.b, got)
			}
		})
	}
}

func TestMustParseVersionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid version")
		}
	}()
	MustParseVersion("not-a-version")
}
