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
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/xregistry/package-registries/log"
)

// Adapter fronts one upstream package registry. All operations are
// read-only; entities are returned as JSON-shaped objects carrying the
// adapter's domain attributes, the engine attaches identity and lineage.
type Adapter interface {
	// Names returns the group and resource type names of the adapter.
	Names() Names
	// Model returns the adapter's loaded model document.
	Model() Object

	ListGroups(ctx context.Context) ([]Object, error)
	GetGroup(ctx context.Context, gid string) (Object, error)
	// ListResources returns one page of resources plus the total match
	// count. Filtering, sorting and paging are pushed down so that
	// index-backed adapters never materialize the full catalogue.
	ListResources(ctx context.Context, gid string, f *Flags) (page []Object, total int, err error)
	GetResource(ctx context.Context, gid, rid string) (Object, error)
	GetMeta(ctx context.Context, gid, rid string) (Object, error)
	ListVersions(ctx context.Context, gid, rid string) ([]Object, error)
	GetVersion(ctx context.Context, gid, rid, vid string) (Object, error)
	// DocRef returns either a redirect target or a raw description body for
	// the resource's doc endpoint.
	DocRef(ctx context.Context, gid, rid string) (redirect string, body string, err error)
}

// Service serves the xRegistry route surface for one adapter.
type Service struct {
	adapter    Adapter
	names      Names
	shaper     *Shaper
	registryID string
	prefix     string
}

// NewService wraps an adapter for serving. registryID names the registry
// root entity; baseURL, when non-empty, overrides request-derived absolute
// URLs.
func NewService(adapter Adapter, registryID, baseURL string) *Service {
	return &Service{
		adapter:    adapter,
		names:      adapter.Names(),
		shaper:     &Shaper{BaseURL: baseURL},
		registryID: registryID,
	}
}

// Model exposes the adapter's model document so a composing aggregator can
// publish a merged one.
func (s *Service) Model() Object { return s.adapter.Model() }

// Names exposes the adapter's type names.
func (s *Service) Names() Names { return s.names }

// Routes registers the full standalone route surface on the router.
func (s *Service) Routes(r *mux.Router) {
	r.UseEncodedPath()
	gt, rt := s.names.GroupPlural, s.names.ResourcePlural

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/capabilities", s.handleCapabilities).Methods(http.MethodGet)
	r.HandleFunc("/model", s.handleModel).Methods(http.MethodGet)
	r.HandleFunc("/"+gt, s.handleGroups).Methods(http.MethodGet)
	s.resourceRoutes(r, "/"+gt+"/{gid}", rt)
}

// AttachOptions configures mounting a service under a shared aggregate
// server.
type AttachOptions struct {
	// PathPrefix the adapter's routes live under, e.g. "/maven".
	PathPrefix string
	// BaseURL overrides the absolute URL prefix for this adapter.
	BaseURL string
	// Quiet suppresses the mount log line.
	Quiet bool
}

// AttachToApp mounts the adapter's routes under opts.PathPrefix on a shared
// router. Routes that would collide with the shared root are dropped and the
// group collection moves to the prefix root itself.
func (s *Service) AttachToApp(r *mux.Router, opts AttachOptions) {
	prefix := strings.TrimSuffix(opts.PathPrefix, "/")
	s.prefix = prefix
	if opts.BaseURL != "" {
		s.shaper.BaseURL = opts.BaseURL
	}

	r.UseEncodedPath()
	r.HandleFunc(prefix, s.handleGroups).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/model", s.handleModel).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/capabilities", s.handleCapabilities).Methods(http.MethodGet)
	s.resourceRoutes(r, prefix+"/{gid}", s.names.ResourcePlural)

	if !opts.Quiet {
		log.Infof("mounted %s adapter at %s", s.names.GroupPlural, prefix)
	}
}

func (s *Service) resourceRoutes(r *mux.Router, groupPath, rt string) {
	r.HandleFunc(groupPath, s.handleGroup).Methods(http.MethodGet)
	r.HandleFunc(groupPath+"/"+rt, s.handleResources).Methods(http.MethodGet)
	r.HandleFunc(groupPath+"/"+rt+"/{rid}", s.handleResource).Methods(http.MethodGet)
	r.HandleFunc(groupPath+"/"+rt+"/{rid}/meta", s.handleMeta).Methods(http.MethodGet)
	r.HandleFunc(groupPath+"/"+rt+"/{rid}/doc", s.handleDoc).Methods(http.MethodGet)
	r.HandleFunc(groupPath+"/"+rt+"/{rid}/versions", s.handleVersions).Methods(http.MethodGet)
	r.HandleFunc(groupPath+"/"+rt+"/{rid}/versions/{vid}", s.handleVersion).Methods(http.MethodGet)
}

// vars returns the decoded path parameters. Identifiers arrive
// percent-encoded; colons, dots, dashes and encoded slashes inside them are
// preserved across routing.
func vars(r *http.Request) map[string]string {
	out := map[string]string{}
	for k, v := range mux.Vars(r) {
		if dec, err := url.PathUnescape(v); err == nil {
			out[k] = dec
		} else {
			out[k] = v
		}
	}
	return out
}

func (s *Service) parseFlags(w http.ResponseWriter, r *http.Request) (*Flags, bool) {
	f, p := ParseFlags(r.URL.Query())
	if p != nil {
		p.Instance = r.URL.Path
		WriteProblem(w, p)
		return nil, false
	}
	return f, true
}

// entityWarnings emits the soft-degradation warnings for the epoch and
// specversion flags.
func (s *Service) entityWarnings(w http.ResponseWriter, f *Flags, e Object) {
	if f.HasEpoch {
		if epoch, ok := e["epoch"].(int); !ok || epoch != f.Epoch {
			AddWarning(w, fmt.Sprintf("requested epoch %d is not available, serving current epoch", f.Epoch))
		}
	}
	if f.SpecVersion != "" && f.SpecVersion != SpecVersion {
		AddWarning(w, fmt.Sprintf("specversion %s is not supported, serving %s", f.SpecVersion, SpecVersion))
	}
}

// finishEntity runs the entity stages of the flag pipeline and writes the
// response.
func (s *Service) finishEntity(w http.ResponseWriter, r *http.Request, f *Flags, e Object) {
	s.entityWarnings(w, f, e)
	if f.Schema {
		for _, msg := range f.AttachSchema(e) {
			AddWarning(w, msg)
		}
	}
	f.StripEntity(e)
	s.shaper.WriteEntity(w, r, e)
}

func (s *Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseFlags(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	groups, err := s.adapter.ListGroups(ctx)
	if err != nil {
		WriteProblem(w, AsProblem(err, r.URL.Path))
		return
	}

	gt := s.names.GroupPlural
	root := Object{
		"specversion": SpecVersion,
		"registryid":  s.registryID,
		"name":        s.registryID,
		"description": "xRegistry federation gateway",
		gt + "url":    "/" + gt,
		gt + "count":  len(groups),
	}
	s.shaper.Shape(root, "/", s.shaper.RequestBase(r))

	if f.WantsInline("model") {
		root["model"] = s.adapter.Model()
	}
	if f.WantsInline("capabilities") {
		root["capabilities"] = Capabilities()
	}
	if f.WantsInline(gt) {
		root[gt] = s.groupCollection(r, groups, f)
	}

	s.finishEntity(w, r, f, root)
}

func (s *Service) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	s.shaper.WriteCollection(w, r, Capabilities())
}

func (s *Service) handleModel(w http.ResponseWriter, r *http.Request) {
	s.shaper.WriteCollection(w, r, s.adapter.Model())
}

// groupPath returns the collection path groups live under, which moves to
// the mount prefix when composed.
func (s *Service) groupPath() string {
	if s.prefix != "" {
		return s.prefix
	}
	return "/" + s.names.GroupPlural
}

// groupXID returns a group's canonical xid, which keeps the group-type
// segment even when the route is mounted under a prefix.
func (s *Service) groupXID(gid string) string {
	return "/" + s.names.GroupPlural + "/" + url.PathEscape(gid)
}

func (s *Service) shapeGroup(r *http.Request, e Object, gid string) Object {
	rt := s.names.ResourcePlural
	e[s.names.GroupSingular+"id"] = gid
	if _, ok := e["name"]; !ok {
		e["name"] = gid
	}
	e[rt+"url"] = s.groupPath() + "/" + url.PathEscape(gid) + "/" + rt
	return s.shaper.Shape(e, s.groupXID(gid), s.shaper.RequestBase(r))
}

func (s *Service) groupCollection(r *http.Request, groups []Object, f *Flags) Object {
	coll := Object{}
	for _, g := range groups {
		gid, _ := g[s.names.GroupSingular+"id"].(string)
		if gid == "" {
			gid, _ = g["name"].(string)
		}
		shaped := s.shapeGroup(r, g, gid)
		f.StripEntity(shaped)
		coll[gid] = shaped
	}
	return coll
}

func (s *Service) handleGroups(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseFlags(w, r)
	if !ok {
		return
	}

	groups, err := s.adapter.ListGroups(r.Context())
	if err != nil {
		WriteProblem(w, AsProblem(err, r.URL.Path))
		return
	}

	idOf := func(e Object) string {
		if id, ok := e[s.names.GroupSingular+"id"].(string); ok && id != "" {
			return id
		}
		id, _ := e["name"].(string)
		return id
	}
	for _, g := range groups {
		if _, ok := g["name"]; !ok {
			g["name"] = idOf(g)
		}
	}
	page, total := f.ApplyCollection(groups, idOf)
	if f.Offset > 0 && len(page) == 0 {
		AddWarning(w, fmt.Sprintf("offset %d is beyond the end of the collection (%d entries)", f.Offset, total))
	}
	if f.HasLimit {
		SetLinkHeader(w, r, s.shaper.RequestBase(r), total, f.Offset, f.Limit)
	}

	s.entityWarnings(w, f, Object{})
	s.shaper.WriteCollection(w, r, s.groupCollection(r, page, f))
}

func (s *Service) handleGroup(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseFlags(w, r)
	if !ok {
		return
	}
	v := vars(r)
	gid := v["gid"]

	group, err := s.adapter.GetGroup(r.Context(), gid)
	if err != nil {
		WriteProblem(w, AsProblem(err, r.URL.Path))
		return
	}
	shaped := s.shapeGroup(r, group, gid)

	rt := s.names.ResourcePlural
	if f.WantsInline(rt) {
		page, _, err := s.adapter.ListResources(r.Context(), gid, f)
		if err == nil {
			coll := Object{}
			for _, res := range page {
				rid, _ := res[s.names.ResourceSingular+"id"].(string)
				coll[rid] = s.shapeResource(r, res, gid, rid)
			}
			shaped[rt] = coll
		} else {
			AddWarning(w, fmt.Sprintf("failed to inline %s: %v", rt, err))
		}
	}

	s.finishEntity(w, r, f, shaped)
}

// resourceXID returns a resource's canonical xid.
func (s *Service) resourceXID(gid, rid string) string {
	return s.groupXID(gid) + "/" + s.names.ResourcePlural + "/" + url.PathEscape(rid)
}

func (s *Service) shapeResource(r *http.Request, e Object, gid, rid string) Object {
	xid := s.resourceXID(gid, rid)
	e[s.names.ResourceSingular+"id"] = rid
	if _, ok := e["name"]; !ok {
		e["name"] = rid
	}
	e["versionsurl"] = xid + "/versions"
	e["metaurl"] = xid + "/meta"
	return s.shaper.Shape(e, xid, s.shaper.RequestBase(r))
}

func (s *Service) handleResources(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseFlags(w, r)
	if !ok {
		return
	}
	v := vars(r)
	gid := v["gid"]

	page, total, err := s.adapter.ListResources(r.Context(), gid, f)
	if err != nil {
		WriteProblem(w, AsProblem(err, r.URL.Path))
		return
	}
	if f.Offset > 0 && len(page) == 0 {
		AddWarning(w, fmt.Sprintf("offset %d is beyond the end of the collection (%d entries)", f.Offset, total))
	}
	if f.HasLimit {
		SetLinkHeader(w, r, s.shaper.RequestBase(r), total, f.Offset, f.Limit)
	}

	coll := Object{}
	for _, res := range page {
		rid, _ := res[s.names.ResourceSingular+"id"].(string)
		shaped := s.shapeResource(r, res, gid, rid)
		f.StripEntity(shaped)
		coll[rid] = shaped
	}
	s.entityWarnings(w, f, Object{})
	s.shaper.WriteCollection(w, r, coll)
}

func (s *Service) handleResource(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseFlags(w, r)
	if !ok {
		return
	}
	v := vars(r)
	gid, rid := v["gid"], v["rid"]

	res, err := s.adapter.GetResource(r.Context(), gid, rid)
	if err != nil {
		WriteProblem(w, AsProblem(err, r.URL.Path))
		return
	}
	shaped := s.shapeResource(r, res, gid, rid)

	if f.WantsInline("meta") {
		meta, err := s.adapter.GetMeta(r.Context(), gid, rid)
		if err != nil {
			AddWarning(w, fmt.Sprintf("failed to inline meta: %v", err))
		} else {
			delete(shaped, "metaurl")
			shaped["meta"] = s.shapeMeta(r, meta, gid, rid)
		}
	}

	s.finishEntity(w, r, f, shaped)
}

func (s *Service) shapeMeta(r *http.Request, e Object, gid, rid string) Object {
	xid := s.resourceXID(gid, rid) + "/meta"
	e[s.names.ResourceSingular+"id"] = rid
	if _, ok := e["readonly"]; !ok {
		e["readonly"] = true
	}
	if _, ok := e["compatibility"]; !ok {
		e["compatibility"] = "none"
	}
	return s.shaper.Shape(e, xid, s.shaper.RequestBase(r))
}

func (s *Service) handleMeta(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseFlags(w, r)
	if !ok {
		return
	}
	v := vars(r)
	gid, rid := v["gid"], v["rid"]

	meta, err := s.adapter.GetMeta(r.Context(), gid, rid)
	if err != nil {
		WriteProblem(w, AsProblem(err, r.URL.Path))
		return
	}
	s.finishEntity(w, r, f, s.shapeMeta(r, meta, gid, rid))
}

func (s *Service) handleDoc(w http.ResponseWriter, r *http.Request) {
	v := vars(r)
	gid, rid := v["gid"], v["rid"]

	redirect, body, err := s.adapter.DocRef(r.Context(), gid, rid)
	if err != nil {
		WriteProblem(w, AsProblem(err, r.URL.Path))
		return
	}
	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func (s *Service) versionXID(gid, rid, vid string) string {
	return s.resourceXID(gid, rid) + "/versions/" + url.PathEscape(vid)
}

func (s *Service) shapeVersion(r *http.Request, e Object, gid, rid, vid string) Object {
	e["versionid"] = vid
	if _, ok := e["name"]; !ok {
		e["name"] = vid
	}
	return s.shaper.Shape(e, s.versionXID(gid, rid, vid), s.shaper.RequestBase(r))
}

func (s *Service) handleVersions(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseFlags(w, r)
	if !ok {
		return
	}
	v := vars(r)
	gid, rid := v["gid"], v["rid"]

	versions, err := s.adapter.ListVersions(r.Context(), gid, rid)
	if err != nil {
		WriteProblem(w, AsProblem(err, r.URL.Path))
		return
	}

	idOf := func(e Object) string {
		id, _ := e["versionid"].(string)
		return id
	}
	for _, ver := range versions {
		if _, ok := ver["name"]; !ok {
			ver["name"] = idOf(ver)
		}
	}
	page, total := f.ApplyCollection(versions, idOf)
	if f.Offset > 0 && len(page) == 0 {
		AddWarning(w, fmt.Sprintf("offset %d is beyond the end of the collection (%d entries)", f.Offset, total))
	}
	if f.HasLimit {
		SetLinkHeader(w, r, s.shaper.RequestBase(r), total, f.Offset, f.Limit)
	}

	coll := Object{}
	for _, ver := range page {
		vid := idOf(ver)
		shaped := s.shapeVersion(r, ver, gid, rid, vid)
		f.StripEntity(shaped)
		coll[vid] = shaped
	}
	s.entityWarnings(w, f, Object{})
	s.shaper.WriteCollection(w, r, coll)
}

func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseFlags(w, r)
	if !ok {
		return
	}
	v := vars(r)
	gid, rid, vid := v["gid"], v["rid"], v["vid"]

	version, err := s.adapter.GetVersion(r.Context(), gid, rid, vid)
	if err != nil {
		WriteProblem(w, AsProblem(err, r.URL.Path))
		return
	}
	s.finishEntity(w, r, f, s.shapeVersion(r, version, gid, rid, vid))
}
