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

package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/xregistry/package-registries/clients/httpcache"
)

// mavenSolr holds the URL of the Maven Central Solr select endpoint.
const mavenSolr = "https://search.maven.org/solrsearch/select"

// SolrDoc is one search hit of the Solr gav core.
type SolrDoc struct {
	ID         string `json:"id"`
	GroupID    string `json:"g"`
	ArtifactID string `json:"a"`
	Version    string `json:"v"`
	Packaging  string `json:"p"`
	Timestamp  int64  `json:"timestamp"`
}

// SolrResult is the paged result of one Solr search.
type SolrResult struct {
	NumFound int       `json:"numFound"`
	Start    int       `json:"start"`
	Docs     []SolrDoc `json:"docs"`
}

type solrResponse struct {
	Response SolrResult `json:"response"`
}

// MavenSearchClient queries the Maven Central Solr search endpoint. It
// backs package search when no local Nexus index is available.
type MavenSearchClient struct {
	endpoint string
	cache    *httpcache.Cache
}

// NewMavenSearchClient returns a search client for the given Solr endpoint,
// defaulting to search.maven.org.
func NewMavenSearchClient(endpoint string, cache *httpcache.Cache) *MavenSearchClient {
	if endpoint == "" {
		endpoint = mavenSolr
	}
	return &MavenSearchClient{endpoint: endpoint, cache: cache}
}

// Search runs a free-text search over the gav core. A query containing a
// colon searches by exact groupId:artifactId coordinate.
func (c *MavenSearchClient) Search(ctx context.Context, query string, rows, start int) (SolrResult, error) {
	q := query
	if g, a, ok := strings.Cut(query, ":"); ok && g != "" && a != "" {
		q = fmt.Sprintf("g:%q AND a:%q", g, a)
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("core", "gav")
	params.Set("rows", fmt.Sprintf("%d", rows))
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("wt", "json")

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var resp solrResponse
	if err := c.cache.GetJSON(ctx, c.endpoint+"?"+params.Encode(), nil, &resp); err != nil {
		return SolrResult{}, fmt.Errorf("%w: Solr search for %q failed: %w", errAPIFailed, query, err)
	}
	return resp.Response, nil
}

// ListArtifactVersions returns the versions of one artifact known to the
// search index, newest first, using Solr's gav core paging.
func (c *MavenSearchClient) ListArtifactVersions(ctx context.Context, groupID, artifactID string, rows, start int) (SolrResult, error) {
	return c.Search(ctx, groupID+":"+artifactID, rows, start)
}
