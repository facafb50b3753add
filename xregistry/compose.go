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
	"net/http"

	"github.com/gorilla/mux"
)

// ServerConfig carries the serving options shared by the standalone and
// composed servers.
type ServerConfig struct {
	BaseURL string // overrides request-derived absolute URLs
	APIKey  string // enables bearer auth when non-empty
	Quiet   bool
}

// NewHandler builds the standalone HTTP handler for a single adapter
// service: the full route surface behind the fixed middleware pipeline, plus
// the metrics endpoint.
func NewHandler(cfg ServerConfig, svc *Service) http.Handler {
	metrics := NewMetrics()

	r := mux.NewRouter()
	r.UseEncodedPath()
	svc.Routes(r)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return Pipeline(r, cfg.APIKey, metrics)
}

// Compose mounts several adapter services on one shared server. Each adapter
// lives under its own path prefix with its group collection at the prefix
// root; the shared root publishes a merged model document and an aggregate
// registry root.
func Compose(cfg ServerConfig, services map[string]*Service) http.Handler {
	metrics := NewMetrics()
	shaper := &Shaper{BaseURL: cfg.BaseURL}

	r := mux.NewRouter()
	r.UseEncodedPath()

	for prefix, svc := range services {
		svc.AttachToApp(r, AttachOptions{
			PathPrefix: prefix,
			BaseURL:    cfg.BaseURL,
			Quiet:      cfg.Quiet,
		})
	}

	r.HandleFunc("/model", func(w http.ResponseWriter, r *http.Request) {
		merged := Object{"groups": Object{}}
		groups := merged["groups"].(Object)
		for _, svc := range services {
			model := svc.Model()
			if g, ok := model["groups"].(map[string]any); ok {
				for k, v := range g {
					groups[k] = v
				}
			}
		}
		shaper.WriteCollection(w, r, merged)
	}).Methods(http.MethodGet)

	r.HandleFunc("/capabilities", func(w http.ResponseWriter, r *http.Request) {
		shaper.WriteCollection(w, r, Capabilities())
	}).Methods(http.MethodGet)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		root := Object{
			"specversion": SpecVersion,
			"registryid":  "package-registries",
			"name":        "package-registries",
			"description": "xRegistry federation gateway",
		}
		for prefix, svc := range services {
			gt := svc.Names().GroupPlural
			root[gt+"url"] = prefix
		}
		shaper.Shape(root, "/", shaper.RequestBase(r))
		shaper.WriteEntity(w, r, root)
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return Pipeline(r, cfg.APIKey, metrics)
}
