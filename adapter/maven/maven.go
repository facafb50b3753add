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

// Package maven fronts Maven Central as an xRegistry group type. Resources
// are Maven coordinates (groupId:artifactId); versions come from the
// artifact's maven-metadata.xml and version detail from the POM.
package maven

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xregistry/package-registries/clients/datasource"
	"github.com/xregistry/package-registries/clients/httpcache"
	"github.com/xregistry/package-registries/index"
	"github.com/xregistry/package-registries/internal/mavenutil"
	"github.com/xregistry/package-registries/log"
	"github.com/xregistry/package-registries/semantic"
	"github.com/xregistry/package-registries/xregistry"
)

//go:embed model.json
var modelJSON []byte

// GroupID is the only group this adapter serves.
const GroupID = "maven-central"

const defaultPageSize = 50

// Config wires the adapter's upstream endpoints. Zero values fall back to
// the public Maven Central endpoints.
type Config struct {
	// Registry overrides the Maven repository base URL.
	Registry string
	// SolrEndpoint overrides the search.maven.org select endpoint.
	SolrEndpoint string
	// IndexPath is the FTS catalogue database. When missing or empty,
	// package search falls back to Solr.
	IndexPath string
	// Cache is the shared conditional HTTP cache. Required.
	Cache *httpcache.Cache
}

// Adapter implements xregistry.Adapter for Maven Central.
type Adapter struct {
	names     xregistry.Names
	model     xregistry.Object
	repo      *datasource.MavenRegistryAPIClient
	solr      *datasource.MavenSearchClient
	resolver  *mavenutil.Resolver
	indexPath string

	mu       sync.RWMutex
	searcher *index.Searcher
}

// New builds the adapter, loading the embedded model and opening the FTS
// catalogue when one exists.
func New(cfg Config) (*Adapter, error) {
	names := xregistry.Names{
		GroupPlural:      "javaregistries",
		GroupSingular:    "javaregistry",
		ResourcePlural:   "packages",
		ResourceSingular: "package",
	}
	model, err := xregistry.LoadModel(modelJSON, names)
	if err != nil {
		return nil, fmt.Errorf("failed to load Maven model: %w", err)
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("maven adapter requires an HTTP cache")
	}

	a := &Adapter{
		names: names,
		model: model,
		repo:  datasource.NewMavenRegistryAPIClient(cfg.Registry, cfg.Cache),
		solr:  datasource.NewMavenSearchClient(cfg.SolrEndpoint, cfg.Cache),
	}
	a.resolver = &mavenutil.Resolver{
		Client:   a.repo,
		BasePath: "/" + names.GroupPlural + "/" + GroupID + "/" + names.ResourcePlural,
	}

	a.indexPath = cfg.IndexPath
	if err := a.ReloadIndex(); err != nil {
		return nil, err
	}
	if a.indexPath != "" && a.currentSearcher() == nil {
		log.Warnf("package index %s not present, falling back to Solr search", a.indexPath)
	}
	return a, nil
}

// ReloadIndex opens the catalogue database, replacing any handle already
// held. The rebuild scheduler calls it after every successful build so a
// freshly produced catalogue is served without a restart. A database that
// does not exist yet is not an error; search stays on the Solr fallback.
func (a *Adapter) ReloadIndex() error {
	if a.indexPath == "" {
		return nil
	}
	if _, err := os.Stat(a.indexPath); err != nil {
		return nil
	}
	s, err := index.OpenSearcher(a.indexPath)
	if err != nil {
		return fmt.Errorf("failed to open package index: %w", err)
	}
	a.mu.Lock()
	old := a.searcher
	a.searcher = s
	a.mu.Unlock()
	if old != nil {
		old.Close()
	}
	log.Infof("maven package search backed by index %s", a.indexPath)
	return nil
}

func (a *Adapter) currentSearcher() *index.Searcher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.searcher
}

// Close releases the FTS catalogue handle if one is open.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.searcher != nil {
		return a.searcher.Close()
	}
	return nil
}

func (a *Adapter) Names() xregistry.Names { return a.names }

func (a *Adapter) Model() xregistry.Object { return a.model }

func (a *Adapter) ListGroups(ctx context.Context) ([]xregistry.Object, error) {
	return []xregistry.Object{a.group()}, nil
}

func (a *Adapter) GetGroup(ctx context.Context, gid string) (xregistry.Object, error) {
	if gid != GroupID {
		return nil, xregistry.NewProblem(xregistry.ErrNotFound, "",
			fmt.Sprintf("unknown %s %q", a.names.GroupSingular, gid))
	}
	return a.group(), nil
}

func (a *Adapter) group() xregistry.Object {
	return xregistry.Object{
		a.names.GroupSingular + "id": GroupID,
		"name":                       GroupID,
		"description":                "Maven Central repository",
		"docs":                       "https://central.sonatype.com",
	}
}

// ListResources pushes filter, sort and paging into the catalogue backend:
// the FTS index when open, Solr otherwise.
func (a *Adapter) ListResources(ctx context.Context, gid string, f *xregistry.Flags) ([]xregistry.Object, int, error) {
	if gid != GroupID {
		return nil, 0, xregistry.NewProblem(xregistry.ErrNotFound, "",
			fmt.Sprintf("unknown %s %q", a.names.GroupSingular, gid))
	}
	limit := defaultPageSize
	if f.HasLimit {
		limit = f.Limit
	}
	if s := a.currentSearcher(); s != nil {
		return a.listFromIndex(ctx, s, f, limit)
	}
	return a.listFromSolr(ctx, f, limit)
}

// indexColumns maps resource attribute names to catalogue columns.
var indexColumns = map[string]string{
	"groupId":    "group_id",
	"artifactId": "artifact_id",
	"name":       "coordinates",
	"packageid":  "coordinates",
}

func (a *Adapter) listFromIndex(ctx context.Context, s *index.Searcher, f *xregistry.Flags, limit int) ([]xregistry.Object, int, error) {
	q := index.Query{
		Query:  f.Text,
		Limit:  limit,
		Offset: f.Offset,
		SortBy: indexColumns[f.Sort],
	}
	if f.SortDesc {
		q.SortOrder = "DESC"
	}
	// Every structured term narrows the query. Catalogue rows only carry
	// coordinate attributes, so a term on anything else matches nothing.
	for _, term := range f.Terms {
		col, ok := indexColumns[term.Key]
		if !ok {
			return nil, 0, nil
		}
		if q.Exact == nil {
			q.Exact = map[string]string{}
		}
		if prev, dup := q.Exact[col]; dup && !strings.EqualFold(prev, term.Value) {
			return nil, 0, nil
		}
		q.Exact[col] = term.Value
	}

	res, err := s.Search(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("package index search failed: %w", err)
	}
	out := make([]xregistry.Object, 0, len(res.Results))
	for _, p := range res.Results {
		out = append(out, a.resource(p.GroupID, p.ArtifactID))
	}
	return out, res.TotalCount, nil
}

func (a *Adapter) listFromSolr(ctx context.Context, f *xregistry.Flags, limit int) ([]xregistry.Object, int, error) {
	// Solr recall uses the narrowest coordinate query the terms allow; the
	// full filter is enforced below, so Solr can only over-select.
	query := f.Text
	var g, art string
	for _, term := range f.Terms {
		switch term.Key {
		case "groupId":
			g = term.Value
		case "artifactId":
			art = term.Value
		}
	}
	switch {
	case g != "" && art != "":
		query = g + ":" + art
	case g != "":
		query = g + ":"
	case art != "":
		query = art
	}

	// The gav core returns one document per version; overfetch and collapse
	// to coordinates.
	res, err := a.solr.Search(ctx, query, (f.Offset+limit)*4, 0)
	if err != nil {
		return nil, 0, err
	}
	seen := map[string]bool{}
	var all []xregistry.Object
	for _, doc := range res.Docs {
		key := doc.GroupID + ":" + doc.ArtifactID
		if seen[key] {
			continue
		}
		seen[key] = true
		r := a.resource(doc.GroupID, doc.ArtifactID)
		if !f.Matches(r, key) {
			continue
		}
		all = append(all, r)
	}

	total := len(all)
	lo := min(f.Offset, total)
	hi := min(lo+limit, total)
	return all[lo:hi], total, nil
}

func (a *Adapter) resource(groupID, artifactID string) xregistry.Object {
	return xregistry.Object{
		a.names.ResourceSingular + "id": groupID + ":" + artifactID,
		"groupId":                       groupID,
		"artifactId":                    artifactID,
	}
}

// splitCoordinates parses a resource id of the form groupId:artifactId.
func splitCoordinates(rid string) (string, string, error) {
	g, art, ok := strings.Cut(rid, ":")
	if !ok || g == "" || art == "" {
		return "", "", xregistry.NewProblem(xregistry.ErrInvalidData, "",
			fmt.Sprintf("package id %q is not of the form groupId:artifactId", rid))
	}
	return g, art, nil
}

// asAdapterError maps upstream failures to problem kinds: a confirmed 404
// becomes not_found, everything else stays a gateway fault.
func (a *Adapter) asAdapterError(err error, rid string) error {
	if errors.Is(err, httpcache.ErrNotFound) {
		return xregistry.NewProblem(xregistry.ErrNotFound, "",
			fmt.Sprintf("package %q is not known to Maven Central", rid))
	}
	return err
}

func (a *Adapter) GetResource(ctx context.Context, gid, rid string) (xregistry.Object, error) {
	if gid != GroupID {
		return nil, xregistry.NewProblem(xregistry.ErrNotFound, "",
			fmt.Sprintf("unknown %s %q", a.names.GroupSingular, gid))
	}
	groupID, artifactID, err := splitCoordinates(rid)
	if err != nil {
		return nil, err
	}

	versions, err := a.repo.GetVersions(ctx, groupID, artifactID)
	if err != nil {
		return nil, a.asAdapterError(err, rid)
	}

	res := a.resource(groupID, artifactID)
	res["versionscount"] = len(versions)

	// Best effort: the newest POM carries description and homepage.
	if latest := defaultVersion(versions); latest != "" {
		if proj, err := a.repo.GetProject(ctx, groupID, artifactID, latest); err == nil {
			if proj.Name != "" {
				res["name"] = proj.Name
			}
			if proj.Description != "" {
				res["description"] = proj.Description
			}
			if proj.URL != "" {
				res["homepage"] = proj.URL
			}
		}
	}
	return res, nil
}

// defaultVersion picks the newest non-SNAPSHOT version, or the newest
// overall when only snapshots exist. Versions arrive sorted ascending.
func defaultVersion(versions []string) string {
	for i := len(versions) - 1; i >= 0; i-- {
		if !semantic.IsSnapshot(versions[i]) {
			return versions[i]
		}
	}
	if len(versions) > 0 {
		return versions[len(versions)-1]
	}
	return ""
}

func (a *Adapter) GetMeta(ctx context.Context, gid, rid string) (xregistry.Object, error) {
	if gid != GroupID {
		return nil, xregistry.NewProblem(xregistry.ErrNotFound, "",
			fmt.Sprintf("unknown %s %q", a.names.GroupSingular, gid))
	}
	groupID, artifactID, err := splitCoordinates(rid)
	if err != nil {
		return nil, err
	}

	versions, err := a.repo.GetVersions(ctx, groupID, artifactID)
	if err != nil {
		return nil, a.asAdapterError(err, rid)
	}

	meta := xregistry.Object{
		"readonly":             true,
		"compatibility":        "none",
		"defaultversionsticky": false,
	}
	if def := defaultVersion(versions); def != "" {
		meta["defaultversionid"] = def
		meta["defaultversionurl"] = a.resolver.BasePath + "/" + rid + "/versions/" + def
	}
	return meta, nil
}

func (a *Adapter) ListVersions(ctx context.Context, gid, rid string) ([]xregistry.Object, error) {
	if gid != GroupID {
		return nil, xregistry.NewProblem(xregistry.ErrNotFound, "",
			fmt.Sprintf("unknown %s %q", a.names.GroupSingular, gid))
	}
	groupID, artifactID, err := splitCoordinates(rid)
	if err != nil {
		return nil, err
	}

	versions, err := a.repo.GetVersions(ctx, groupID, artifactID)
	if err != nil {
		return nil, a.asAdapterError(err, rid)
	}
	out := make([]xregistry.Object, 0, len(versions))
	for _, v := range versions {
		out = append(out, xregistry.Object{
			"versionid":  v,
			"groupId":    groupID,
			"artifactId": artifactID,
			"version":    v,
		})
	}
	return out, nil
}

func (a *Adapter) GetVersion(ctx context.Context, gid, rid, vid string) (xregistry.Object, error) {
	if gid != GroupID {
		return nil, xregistry.NewProblem(xregistry.ErrNotFound, "",
			fmt.Sprintf("unknown %s %q", a.names.GroupSingular, gid))
	}
	groupID, artifactID, err := splitCoordinates(rid)
	if err != nil {
		return nil, err
	}

	proj, err := a.repo.GetProject(ctx, groupID, artifactID, vid)
	if err != nil {
		if errors.Is(err, httpcache.ErrNotFound) {
			return nil, xregistry.NewProblem(xregistry.ErrNotFound, "",
				fmt.Sprintf("version %q of %q is not known to Maven Central", vid, rid))
		}
		return nil, err
	}
	return a.versionEntity(ctx, groupID, artifactID, vid, proj), nil
}

// versionEntity maps a POM onto the declared resource attribute schema.
// Empty blocks are omitted rather than serialized as empty objects.
func (a *Adapter) versionEntity(ctx context.Context, groupID, artifactID, vid string, proj datasource.Project) xregistry.Object {
	e := xregistry.Object{
		"versionid":  vid,
		"groupId":    groupID,
		"artifactId": artifactID,
		"version":    vid,
		"packaging":  proj.Packaging,
	}
	if e["packaging"] == "" {
		e["packaging"] = "jar"
	}
	if proj.Name != "" {
		e["name"] = proj.Name
	}
	if proj.Description != "" {
		e["description"] = proj.Description
	}
	if proj.URL != "" {
		e["homepage"] = proj.URL
	}
	if proj.Organization != (datasource.Organization{}) {
		e["organization"] = map[string]any{
			"name": proj.Organization.Name,
			"url":  proj.Organization.URL,
		}
	}
	if len(proj.Developers) > 0 {
		devs := make([]map[string]any, 0, len(proj.Developers))
		for _, d := range proj.Developers {
			devs = append(devs, map[string]any{
				"id":           d.ID,
				"name":         d.Name,
				"email":        d.Email,
				"organization": d.Organization,
			})
		}
		e["developers"] = devs
	}
	if len(proj.Licenses) > 0 {
		lics := make([]map[string]any, 0, len(proj.Licenses))
		for _, l := range proj.Licenses {
			lics = append(lics, map[string]any{"name": l.Name, "url": l.URL})
		}
		e["licenses"] = lics
	}
	if proj.SCM != (datasource.SCM{}) {
		e["scm"] = map[string]any{
			"url":                 proj.SCM.URL,
			"connection":          proj.SCM.Connection,
			"developerConnection": proj.SCM.DeveloperConnection,
		}
	}
	if proj.IssueManagement != (datasource.IssueManagement{}) {
		e["issueManagement"] = map[string]any{
			"system": proj.IssueManagement.System,
			"url":    proj.IssueManagement.URL,
		}
	}
	if len(proj.Dependencies) > 0 {
		e["dependencies"] = a.resolver.Resolve(ctx, proj.Dependencies)
	}
	return e
}

// DocRef redirects to the project homepage when the POM declares one and
// falls back to serving the description as the document body.
func (a *Adapter) DocRef(ctx context.Context, gid, rid string) (string, string, error) {
	if gid != GroupID {
		return "", "", xregistry.NewProblem(xregistry.ErrNotFound, "",
			fmt.Sprintf("unknown %s %q", a.names.GroupSingular, gid))
	}
	groupID, artifactID, err := splitCoordinates(rid)
	if err != nil {
		return "", "", err
	}

	versions, err := a.repo.GetVersions(ctx, groupID, artifactID)
	if err != nil {
		return "", "", a.asAdapterError(err, rid)
	}
	latest := defaultVersion(versions)
	if latest == "" {
		return "", "", xregistry.NewProblem(xregistry.ErrNotFound, "",
			fmt.Sprintf("package %q has no published versions", rid))
	}
	proj, err := a.repo.GetProject(ctx, groupID, artifactID, latest)
	if err != nil {
		return "", "", a.asAdapterError(err, rid)
	}
	if proj.URL != "" {
		return proj.URL, "", nil
	}
	return "", proj.Description, nil
}
