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

// Package xregistry implements the shared xRegistry serving engine: the
// request pipeline, query-flag handling, response shaping, pagination and the
// route surface every upstream adapter mounts its data operations on.
package xregistry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SpecVersion is the xRegistry specification version served by the gateway.
const SpecVersion = "1.0-rc1"

// ContentType is the media type for every response body, errors included.
const ContentType = `application/json; charset=utf-8; schema="xRegistry-json/1.0-rc1"`

// Object is a JSON-shaped entity or collection. Collections are objects
// keyed by entity id, not arrays, per the wire protocol.
type Object = map[string]any

// processEpochTime is the timestamp attached to entities synthesized from
// upstreams that carry no timestamps of their own. Keeping it fixed for the
// process lifetime keeps response bodies, and therefore ETags, stable.
var processEpochTime = time.Now().UTC().Truncate(time.Second)

// Shaper attaches the required identity attributes to entities and
// absolutizes URL-bearing values.
type Shaper struct {
	// BaseURL overrides the base URL derived from the incoming request.
	BaseURL string
}

// RequestBase returns the absolute URL prefix for the given request: the
// configured base URL if set, otherwise scheme://host derived from the
// request.
func (s *Shaper) RequestBase(r *http.Request) string {
	if s.BaseURL != "" {
		return strings.TrimSuffix(s.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// Shape fills in the identity attributes an entity at the given xid must
// carry. Values already present are left alone.
func (s *Shaper) Shape(e Object, xid, base string) Object {
	e["xid"] = xid
	if xid == "/" {
		e["self"] = base + "/"
	} else {
		e["self"] = base + xid
	}
	if _, ok := e["epoch"]; !ok {
		e["epoch"] = 1
	}
	now := processEpochTime.Format(time.RFC3339)
	if _, ok := e["createdat"]; !ok {
		e["createdat"] = now
	}
	if _, ok := e["modifiedat"]; !ok {
		e["modifiedat"] = now
	}
	return e
}

// urlBearingKey reports whether the value under key is subject to the
// absolutization pass: self, docs, and anything ending in "url".
func urlBearingKey(key string) bool {
	return key == "self" || key == "docs" || strings.HasSuffix(key, "url")
}

// Absolutize walks the response tree once and rewrites relative values under
// URL-bearing keys to absolute URLs. Already-absolute values are untouched,
// so the pass never double-rewrites.
func Absolutize(v any, base string) {
	switch t := v.(type) {
	case Object:
		for k, val := range t {
			if s, ok := val.(string); ok && urlBearingKey(k) {
				if strings.HasPrefix(s, "/") {
					t[k] = base + s
				}
				continue
			}
			Absolutize(val, base)
		}
	case []any:
		for _, item := range t {
			Absolutize(item, base)
		}
	}
}

// computeETag derives a deterministic validator from the serialized body.
func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

// WriteEntity serializes body with the standard xRegistry response envelope:
// content type, spec version, epoch and validator headers. The conditional
// middleware upstream may still turn the response into a 304.
func (s *Shaper) WriteEntity(w http.ResponseWriter, r *http.Request, body Object) {
	base := s.RequestBase(r)
	Absolutize(body, base)

	b, err := json.Marshal(body)
	if err != nil {
		WriteProblem(w, NewProblem(ErrServerError, r.URL.Path, err.Error()))
		return
	}

	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("X-XRegistry-SpecVersion", SpecVersion)
	if epoch, ok := body["epoch"]; ok {
		h.Set("X-XRegistry-Epoch", fmt.Sprintf("%v", epoch))
	}
	h.Set("ETag", computeETag(b))
	h.Set("Cache-Control", "no-cache")
	if mod, ok := body["modifiedat"].(string); ok {
		if t, err := time.Parse(time.RFC3339, mod); err == nil {
			h.Set("Last-Modified", t.UTC().Format(http.TimeFormat))
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// WriteCollection serializes a collection keyed by id with the standard
// envelope. Collections have no epoch of their own.
func (s *Shaper) WriteCollection(w http.ResponseWriter, r *http.Request, body Object) {
	base := s.RequestBase(r)
	Absolutize(body, base)

	b, err := json.Marshal(body)
	if err != nil {
		WriteProblem(w, NewProblem(ErrServerError, r.URL.Path, err.Error()))
		return
	}

	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("X-XRegistry-SpecVersion", SpecVersion)
	h.Set("ETag", computeETag(b))
	h.Set("Cache-Control", "no-cache")

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// AddWarning appends a soft-degradation warning header without failing the
// request.
func AddWarning(w http.ResponseWriter, detail string) {
	w.Header().Add("Warning", fmt.Sprintf("299 - %q", detail))
}
