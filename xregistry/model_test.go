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
	"testing"
)

var testNames = Names{
	GroupPlural:      "javaregistries",
	GroupSingular:    "javaregistry",
	ResourcePlural:   "packages",
	ResourceSingular: "package",
}

func TestLoadModel(t *testing.T) {
	raw := []byte(`{
	  "model": {
	    "groups": {
	      "placeholderregistries": {
	        "plural": "placeholderregistries",
	        "singular": "placeholderregistry",
	        "resources": {
	          "things": {
	            "plural": "things",
	            "singular": "thing",
	            "attributes": {"groupId": {"type": "string"}}
	          }
	        }
	      }
	    }
	  }
	}`)

	model, err := LoadModel(raw, testNames)
	if err != nil {
		t.Fatalf("LoadModel() error: %v", err)
	}

	groups := model["groups"].(map[string]any)
	group, ok := groups["javaregistries"].(map[string]any)
	if !ok {
		t.Fatalf("groups not rekeyed: %v", groups)
	}
	if group["plural"] != "javaregistries" || group["singular"] != "javaregistry" {
		t.Errorf("group names not rewritten: %v", group)
	}

	resources := group["resources"].(map[string]any)
	resource, ok := resources["packages"].(map[string]any)
	if !ok {
		t.Fatalf("resources not rekeyed: %v", resources)
	}
	if resource["plural"] != "packages" || resource["singular"] != "package" {
		t.Errorf("resource names not rewritten: %v", resource)
	}
	if _, ok := resource["attributes"].(map[string]any); !ok {
		t.Error("attribute schema lost during rewriting")
	}
}

func TestLoadModelWithoutWrapper(t *testing.T) {
	raw := []byte(`{"groups": {"g": {"plural": "g", "singular": "x"}}}`)
	model, err := LoadModel(raw, testNames)
	if err != nil {
		t.Fatalf("LoadModel() error: %v", err)
	}
	if _, ok := model["groups"].(map[string]any)["javaregistries"]; !ok {
		t.Errorf("unwrapped model not rekeyed: %v", model)
	}
}

func TestLoadModelRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not JSON", `{`},
		{"no groups", `{"model": {}}`},
		{"two group types", `{"groups": {"a": {}, "b": {}}}`},
		{"group not an object", `{"groups": {"a": 1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadModel([]byte(tt.raw), testNames); err == nil {
				t.Errorf("LoadModel(%s) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities()
	if caps["pagination"] != true {
		t.Error("pagination capability not advertised")
	}
	specversions, ok := caps["specversions"].([]any)
	if !ok || len(specversions) != 1 || specversions[0] != SpecVersion {
		t.Errorf("specversions = %v, want [%s]", caps["specversions"], SpecVersion)
	}
	flags, ok := caps["flags"].([]any)
	if !ok || len(flags) == 0 {
		t.Fatalf("flags = %v", caps["flags"])
	}
}
