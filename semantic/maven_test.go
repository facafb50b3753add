// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package semantic_test

import (
	"testing"

	"github.com/xregistry/package-registries/semantic"
)

func TestCompareMavenVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2", "1.2.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"1.2.3", "1.2.3.4", -1},
		{"1.9", "1.10", -1},
		{"1.2.3-SNAPSHOT", "1.2.3", -1},
		{"1.2.3-rc1", "1.2.3", -1},
		{"1.2.3-alpha1", "1.2.3-beta1", -1},
		{"1.2.3-beta2", "1.2.3-m3", -1},
		{"1.2.3-m1", "1.2.3-rc1", -1},
		{"1.2.3-cr1", "1.2.3-snapshot", -1},
		{"1.2.3-snapshot", "1.2.3-ga", -1},
		{"1.2.3-ga", "1.2.3-sp1", -1},
		{"1.2.3", "1.2.3-sp", -1},
		{"1.2.3-final", "1.2.3-release", 0},
		{"1.2.3-xyz", "1.2.3", 1}, // unknown qualifier ranks as GA, lexical tie-break
		{"1.2.3-abc", "1.2.3-xyz", -1},
		{"2.0.0-rc2", "2.0.0-rc10", -1},
		{"0.9", "1.0.0-alpha", -1},
	}
	for _, tt := range tests {
		if got := semantic.CompareMavenVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareMavenVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		// The comparator must be antisymmetric.
		if got := semantic.CompareMavenVersions(tt.b, tt.a); got != -tt.want {
			t.Errorf("CompareMavenVersions(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}

func TestCompareMavenVersionsTotalOrder(t *testing.T) {
	sample := []string{
		"1.2.3", "1.2.3-SNAPSHOT", "1.2.3-rc1", "2.0.0", "1.2.3.4", "1.2", "1.2.0",
	}
	for _, a := range sample {
		for _, b := range sample {
			ab := semantic.CompareMavenVersions(a, b)
			ba := semantic.CompareMavenVersions(b, a)
			if ab != -ba {
				t.Errorf("comparator not antisymmetric for (%q, %q): %d vs %d", a, b, ab, ba)
			}
			for _, c := range sample {
				if semantic.CompareMavenVersions(a, b) <= 0 && semantic.CompareMavenVersions(b, c) <= 0 {
					if semantic.CompareMavenVersions(a, c) > 0 {
						t.Errorf("comparator not transitive for (%q, %q, %q)", a, b, c)
					}
				}
			}
		}
	}
}

func TestIsSnapshot(t *testing.T) {
	if !semantic.IsSnapshot("1.2.3-SNAPSHOT") {
		t.Error("IsSnapshot(1.2.3-SNAPSHOT) = false, want true")
	}
	if !semantic.IsSnapshot("1.2.3-snapshot") {
		t.Error("IsSnapshot(1.2.3-snapshot) = false, want true")
	}
	if semantic.IsSnapshot("1.2.3") {
		t.Error("IsSnapshot(1.2.3) = true, want false")
	}
}
