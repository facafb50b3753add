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
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/xregistry/package-registries/clients/httpcache"
	"github.com/xregistry/package-registries/semantic"
)

// mavenCentral holds the URL of the Maven Central repository.
const mavenCentral = "https://repo1.maven.org/maven2"

// Outbound call budgets. POM fetches get more slack than searches because
// repo1 sometimes serves large parent POM chains slowly.
const (
	searchTimeout = 10 * time.Second
	fetchTimeout  = 30 * time.Second
)

var errAPIFailed = errors.New("API query failed")

// MavenRegistryAPIClient fetches POMs and version metadata from a Maven
// repository. All outbound calls go through the conditional HTTP cache.
type MavenRegistryAPIClient struct {
	registry string
	cache    *httpcache.Cache
}

// NewMavenRegistryAPIClient returns a client for the given repository URL,
// defaulting to Maven Central.
func NewMavenRegistryAPIClient(registry string, cache *httpcache.Cache) *MavenRegistryAPIClient {
	if registry == "" {
		registry = mavenCentral
	}
	return &MavenRegistryAPIClient{
		registry: strings.TrimSuffix(registry, "/"),
		cache:    cache,
	}
}

// pomURL returns the repository path of the POM for the given coordinate.
func (m *MavenRegistryAPIClient) pomURL(groupID, artifactID, version string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s-%s.pom",
		m.registry, strings.ReplaceAll(groupID, ".", "/"), artifactID, version, artifactID, version)
}

func (m *MavenRegistryAPIClient) metadataURL(groupID, artifactID string) string {
	return fmt.Sprintf("%s/%s/%s/maven-metadata.xml",
		m.registry, strings.ReplaceAll(groupID, ".", "/"), artifactID)
}

// GetProject fetches a pom.xml specified by groupID, artifactID and version
// and parses it to a Project.
func (m *MavenRegistryAPIClient) GetProject(ctx context.Context, groupID, artifactID, version string) (Project, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	b, err := m.cache.Get(ctx, m.pomURL(groupID, artifactID, version), nil)
	if err != nil {
		return Project{}, fmt.Errorf("%w: failed to fetch Maven project %s:%s@%s: %w", errAPIFailed, groupID, artifactID, version, err)
	}

	var project Project
	if err := NewMavenDecoder(bytes.NewReader(b)).Decode(&project); err != nil {
		return Project{}, fmt.Errorf("failed to parse POM of %s:%s@%s: %w", groupID, artifactID, version, err)
	}
	// A POM may inherit its groupId or version from the parent block.
	if project.GroupID == "" {
		project.GroupID = project.Parent.GroupID
	}
	if project.Version == "" {
		project.Version = project.Parent.Version
	}
	return project, nil
}

// GetArtifactMetadata fetches an artifact level maven-metadata.xml and
// parses it to Metadata.
func (m *MavenRegistryAPIClient) GetArtifactMetadata(ctx context.Context, groupID, artifactID string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	b, err := m.cache.Get(ctx, m.metadataURL(groupID, artifactID), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: failed to fetch metadata of %s:%s: %w", errAPIFailed, groupID, artifactID, err)
	}

	var metadata Metadata
	if err := NewMavenDecoder(bytes.NewReader(b)).Decode(&metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata of %s:%s: %w", groupID, artifactID, err)
	}
	return metadata, nil
}

// GetVersions returns the available versions of the artifact, sorted
// ascending by Maven version order. Version strings are upstream identifiers
// and are never rewritten.
func (m *MavenRegistryAPIClient) GetVersions(ctx context.Context, groupID, artifactID string) ([]string, error) {
	metadata, err := m.GetArtifactMetadata(ctx, groupID, artifactID)
	if err != nil {
		return nil, err
	}
	versions := slices.Clone(metadata.Versioning.Versions)
	slices.SortFunc(versions, semantic.CompareMavenVersions)
	return slices.Compact(versions), nil
}
