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
	"net/http"
	"net/url"
	"strings"
)

// SetLinkHeader emits the RFC5988 Link header for a paginated collection:
// rel=first/prev/next/last plus count and per-page. Every non-pagination
// query parameter of the request is preserved verbatim (re-encoded) in each
// link; the link base is the complete request path.
func SetLinkHeader(w http.ResponseWriter, r *http.Request, base string, total, offset, limit int) {
	if limit <= 0 {
		return
	}

	preserved := url.Values{}
	for k, vs := range r.URL.Query() {
		if paginationParams[k] {
			continue
		}
		preserved[k] = vs
	}

	link := func(off int, rel string) string {
		q := url.Values{}
		for k, vs := range preserved {
			q[k] = vs
		}
		q.Set("limit", fmt.Sprintf("%d", limit))
		q.Set("offset", fmt.Sprintf("%d", off))
		return fmt.Sprintf("<%s%s?%s>; rel=%q", base, r.URL.Path, q.Encode(), rel)
	}

	var parts []string
	parts = append(parts, link(0, "first"))
	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		parts = append(parts, link(prev, "prev"))
	}
	if offset+limit < total {
		parts = append(parts, link(offset+limit, "next"))
	}
	last := ((total + limit - 1) / limit) - 1
	if last < 0 {
		last = 0
	}
	parts = append(parts, link(last*limit, "last"))

	parts = append(parts, fmt.Sprintf("count=%q", fmt.Sprintf("%d", total)))
	parts = append(parts, fmt.Sprintf("per-page=%q", fmt.Sprintf("%d", limit)))

	w.Header().Set("Link", strings.Join(parts, ", "))
}
