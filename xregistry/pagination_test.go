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

package xregistry

import (
	"fmt"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
)

var linkRe = regexp.MustCompile(`<([^>]+)>; rel="([^"]+)"`)

// parseLinks maps rel values to the offset carried in each link URL.
func parseLinks(t *testing.T, header string) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, m := range linkRe.FindAllStringSubmatch(header, -1) {
		u, err := url.Parse(m[1])
		if err != nil {
			t.Fatalf("link %q is not a URL: %v", m[1], err)
		}
		var off int
		if _, err := fmt.Sscanf(u.Query().Get("offset"), "%d", &off); err != nil {
			t.Fatalf("link %q has no offset: %v", m[1], err)
		}
		out[m[2]] = off
	}
	return out
}

func TestSetLinkHeader(t *testing.T) {
	tests := []struct {
		name                  string
		total, offset, limit  int
		wantRels              map[string]int
		wantAbsent            []string
	}{
		{
			name: "middle page", total: 10, offset: 3, limit: 3,
			wantRels: map[string]int{"first": 0, "prev": 0, "next": 6, "last": 9},
		},
		{
			name: "first page", total: 10, offset: 0, limit: 3,
			wantRels:   map[string]int{"first": 0, "next": 3, "last": 9},
			wantAbsent: []string{"prev"},
		},
		{
			name: "last page", total: 10, offset: 9, limit: 3,
			wantRels:   map[string]int{"first": 0, "prev": 6, "last": 9},
			wantAbsent: []string{"next"},
		},
		{
			name: "single page", total: 2, offset: 0, limit: 5,
			wantRels:   map[string]int{"first": 0, "last": 0},
			wantAbsent: []string{"prev", "next"},
		},
		{
			name: "exact multiple", total: 9, offset: 0, limit: 3,
			wantRels: map[string]int{"first": 0, "next": 3, "last": 6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", fmt.Sprintf("/packages?filter=junit&limit=%d&offset=%d", tt.limit, tt.offset), nil)
			SetLinkHeader(w, r, "http://reg.example", tt.total, tt.offset, tt.limit)

			header := w.Header().Get("Link")
			links := parseLinks(t, header)
			for rel, off := range tt.wantRels {
				got, ok := links[rel]
				if !ok {
					t.Errorf("Link header %q is missing rel=%q", header, rel)
					continue
				}
				if got != off {
					t.Errorf("rel=%q offset = %d, want %d", rel, got, off)
				}
			}
			for _, rel := range tt.wantAbsent {
				if _, ok := links[rel]; ok {
					t.Errorf("Link header %q carries unexpected rel=%q", header, rel)
				}
			}
			if want := fmt.Sprintf("count=%q", fmt.Sprintf("%d", tt.total)); !strings.Contains(header, want) {
				t.Errorf("Link header %q is missing %s", header, want)
			}
			if want := fmt.Sprintf("per-page=%q", fmt.Sprintf("%d", tt.limit)); !strings.Contains(header, want) {
				t.Errorf("Link header %q is missing %s", header, want)
			}
		})
	}
}

func TestSetLinkHeaderPreservesQueryParams(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/packages?filter=junit&sort=name&limit=2&offset=2", nil)
	SetLinkHeader(w, r, "http://reg.example", 10, 2, 2)

	for _, m := range linkRe.FindAllStringSubmatch(w.Header().Get("Link"), -1) {
		u, err := url.Parse(m[1])
		if err != nil {
			t.Fatal(err)
		}
		q := u.Query()
		if q.Get("filter") != "junit" || q.Get("sort") != "name" {
			t.Errorf("link %q dropped non-pagination params", m[1])
		}
		if !strings.HasPrefix(m[1], "http://reg.example/packages?") {
			t.Errorf("link %q does not start with the request path", m[1])
		}
	}
}

// Traversing next links partitions the collection: offsets advance by the
// page size and stop at the last page without overlap.
func TestNextLinkTraversal(t *testing.T) {
	const total, limit = 10, 3
	offset := 0
	var visited []int
	for {
		visited = append(visited, offset)
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", fmt.Sprintf("/packages?limit=%d&offset=%d", limit, offset), nil)
		SetLinkHeader(w, r, "http://reg.example", total, offset, limit)
		links := parseLinks(t, w.Header().Get("Link"))
		next, ok := links["next"]
		if !ok {
			break
		}
		if next <= offset {
			t.Fatalf("next offset %d does not advance past %d", next, offset)
		}
		offset = next
	}
	want := []int{0, 3, 6, 9}
	if len(visited) != len(want) {
		t.Fatalf("visited offsets %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited offsets %v, want %v", visited, want)
		}
	}
}
