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

// Package mavenutil resolves POM dependency version ranges against the
// versions an artifact actually published.
package mavenutil

import (
	"context"
	"net/url"
	"strings"

	"github.com/xregistry/package-registries/clients/datasource"
	"github.com/xregistry/package-registries/log"
	"github.com/xregistry/package-registries/semantic"
)

// ResolvedDependency is one POM dependency with its version requirement
// matched against the artifact's published versions. Package carries the
// xRegistry cross-reference: the versioned path when the requirement
// resolved, the base resource path when only the artifact's existence is
// known, and empty when existence could not be confirmed.
type ResolvedDependency struct {
	GroupID         string `json:"groupId"`
	ArtifactID      string `json:"artifactId"`
	Version         string `json:"version,omitempty"`
	Scope           string `json:"scope"`
	Optional        bool   `json:"optional"`
	Package         string `json:"package,omitempty"`
	ResolvedVersion string `json:"resolved_version,omitempty"`
}

// Resolver matches dependency requirements against artifact metadata.
type Resolver struct {
	Client *datasource.MavenRegistryAPIClient
	// BasePath is the resource-collection xid prefix cross-references point
	// into, e.g. /javaregistries/maven-central/packages.
	BasePath string
}

// Resolve maps every POM dependency to a ResolvedDependency. Failures to
// confirm existence degrade to an absent cross-reference, never to an error.
func (r *Resolver) Resolve(ctx context.Context, deps []datasource.Dependency) []ResolvedDependency {
	out := make([]ResolvedDependency, 0, len(deps))
	for _, dep := range deps {
		out = append(out, r.resolveOne(ctx, dep))
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, dep datasource.Dependency) ResolvedDependency {
	resolved := ResolvedDependency{
		GroupID:    dep.GroupID,
		ArtifactID: dep.ArtifactID,
		Version:    dep.Version,
		Scope:      dep.EffectiveScope(),
		Optional:   dep.IsOptional(),
	}

	versions, err := r.Client.GetVersions(ctx, dep.GroupID, dep.ArtifactID)
	if err != nil {
		// Existence unconfirmed, leave the cross-reference absent.
		log.Debugf("could not confirm %s:%s: %v", dep.GroupID, dep.ArtifactID, err)
		return resolved
	}

	basePath := r.BasePath + "/" + url.PathEscape(dep.GroupID+":"+dep.ArtifactID)

	if exact, ok := exactRequirement(dep.Version); ok {
		for _, v := range versions {
			if v == exact {
				resolved.ResolvedVersion = exact
				resolved.Package = basePath + "/versions/" + url.PathEscape(exact)
				return resolved
			}
		}
	} else if minVer, ok := openRange(dep.Version); ok {
		if best := newestAtLeast(versions, minVer); best != "" {
			resolved.ResolvedVersion = best
			resolved.Package = basePath + "/versions/" + url.PathEscape(best)
			return resolved
		}
	}

	// The artifact exists but the requirement did not pin a version.
	resolved.Package = basePath
	return resolved
}

// exactRequirement recognizes a plain version or a single-version hard
// requirement "[X.Y.Z]".
func exactRequirement(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.Contains(v, ",") {
		return "", false
	}
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		return strings.TrimSpace(v[1 : len(v)-1]), true
	}
	if strings.ContainsAny(v, "[]()") {
		return "", false
	}
	return v, true
}

// openRange recognizes a lower-bounded open range "[minVer,)".
func openRange(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "[") || !strings.HasSuffix(v, ")") {
		return "", false
	}
	inner := v[1 : len(v)-1]
	minVer, rest, ok := strings.Cut(inner, ",")
	if !ok || strings.TrimSpace(rest) != "" {
		return "", false
	}
	minVer = strings.TrimSpace(minVer)
	return minVer, minVer != ""
}

// newestAtLeast picks the newest version >= minVer, preferring non-SNAPSHOT
// versions over snapshots.
func newestAtLeast(versions []string, minVer string) string {
	bestRelease, bestAny := "", ""
	for _, v := range versions {
		if semantic.CompareMavenVersions(v, minVer) < 0 {
			continue
		}
		if bestAny == "" || semantic.CompareMavenVersions(v, bestAny) > 0 {
			bestAny = v
		}
		if !semantic.IsSnapshot(v) && (bestRelease == "" || semantic.CompareMavenVersions(v, bestRelease) > 0) {
			bestRelease = v
		}
	}
	if bestRelease != "" {
		return bestRelease
	}
	return bestAny
}
