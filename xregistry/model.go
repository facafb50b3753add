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
	"encoding/json"
	"fmt"
)

// Names holds the group and resource type names an adapter serves under.
type Names struct {
	GroupPlural      string
	GroupSingular    string
	ResourcePlural   string
	ResourceSingular string
}

// LoadModel parses a declarative model document, unwrapping a top-level
// "model" key if present, and rewrites placeholder group and resource names
// to the adapter's configured ones. The loader is strict: a malformed
// document is a startup failure.
func LoadModel(raw []byte, names Names) (Object, error) {
	var doc Object
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed model document: %w", err)
	}
	if inner, ok := doc["model"].(map[string]any); ok {
		doc = inner
	}

	groups, ok := doc["groups"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("malformed model document: missing groups")
	}
	if len(groups) != 1 {
		return nil, fmt.Errorf("malformed model document: expected exactly one group type, got %d", len(groups))
	}

	for key, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("malformed model document: group %q is not an object", key)
		}
		group["plural"] = names.GroupPlural
		group["singular"] = names.GroupSingular

		if resources, ok := group["resources"].(map[string]any); ok {
			rewritten := map[string]any{}
			for rkey, res := range resources {
				resource, ok := res.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("malformed model document: resource %q is not an object", rkey)
				}
				resource["plural"] = names.ResourcePlural
				resource["singular"] = names.ResourceSingular
				rewritten[names.ResourcePlural] = resource
			}
			group["resources"] = rewritten
		}

		delete(groups, key)
		groups[names.GroupPlural] = group
	}

	return doc, nil
}

// Capabilities describes the protocol surface the engine supports; it is
// identical for every adapter.
func Capabilities() Object {
	return Object{
		"apis":           []any{"/capabilities", "/model"},
		"flags":          []any{"collections", "doc", "epoch", "filter", "inline", "limit", "offset", "noepoch", "noreadonly", "schema", "sort", "specversion"},
		"mutable":        []any{},
		"pagination":     true,
		"schemas":        []any{"xRegistry-json/" + SpecVersion},
		"specversions":   []any{SpecVersion},
		"stickyversions": false,
	}
}
