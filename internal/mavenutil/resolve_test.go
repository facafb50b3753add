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

package mavenutil_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xregistry/package-registries/clients/clienttest"
	"github.com/xregistry/package-registries/clients/datasource"
	"github.com/xregistry/package-registries/clients/httpcache"
	"github.com/xregistry/package-registries/internal/mavenutil"
)

const basePath = "/javaregistries/maven-central/packages"

func newResolver(t *testing.T) (*mavenutil.Resolver, *clienttest.MockHTTPServer) {
	t.Helper()
	srv := clienttest.NewMockHTTPServer(t)
	cache, err := httpcache.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("httpcache.New: %v", err)
	}
	srv.SetResponse(t, "org/hamcrest/hamcrest-core/maven-metadata.xml", []byte(`
	<metadata>
	  <groupId>org.hamcrest</groupId>
	  <artifactId>hamcrest-core</artifactId>
	  <versioning>
	    <versions>
	      <version>1.1</version>
	      <version>1.2</version>
	      <version>1.3</version>
	      <version>1.4-SNAPSHOT</version>
	    </versions>
	  </versioning>
	</metadata>
	`))
	return &mavenutil.Resolver{
		Client:   datasource.NewMavenRegistryAPIClient(srv.URL, cache),
		BasePath: basePath,
	}, srv
}

func TestResolveExactVersion(t *testing.T) {
	r, _ := newResolver(t)

	got := r.Resolve(context.Background(), []datasource.Dependency{
		{GroupID: "org.hamcrest", ArtifactID: "hamcrest-core", Version: "1.3"},
	})
	want := []mavenutil.ResolvedDependency{{
		GroupID:         "org.hamcrest",
		ArtifactID:      "hamcrest-core",
		Version:         "1.3",
		Scope:           "compile",
		ResolvedVersion: "1.3",
		Package:         basePath + "/org.hamcrest:hamcrest-core/versions/1.3",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveHardRequirement(t *testing.T) {
	r, _ := newResolver(t)

	got := r.Resolve(context.Background(), []datasource.Dependency{
		{GroupID: "org.hamcrest", ArtifactID: "hamcrest-core", Version: "[1.2]"},
	})
	if got[0].ResolvedVersion != "1.2" {
		t.Errorf("ResolvedVersion = %q, want 1.2", got[0].ResolvedVersion)
	}
}

func TestResolveOpenRangePrefersRelease(t *testing.T) {
	r, _ := newResolver(t)

	got := r.Resolve(context.Background(), []datasource.Dependency{
		{GroupID: "org.hamcrest", ArtifactID: "hamcrest-core", Version: "[1.2,)"},
	})
	// 1.4-SNAPSHOT is newer but snapshots lose to releases.
	if got[0].ResolvedVersion != "1.3" {
		t.Errorf("ResolvedVersion = %q, want 1.3", got[0].ResolvedVersion)
	}
	if want := basePath + "/org.hamcrest:hamcrest-core/versions/1.3"; got[0].Package != want {
		t.Errorf("Package = %q, want %q", got[0].Package, want)
	}
}

func TestResolveUnlistedVersionKeepsBaseReference(t *testing.T) {
	r, _ := newResolver(t)

	got := r.Resolve(context.Background(), []datasource.Dependency{
		{GroupID: "org.hamcrest", ArtifactID: "hamcrest-core", Version: "9.9"},
	})
	if got[0].ResolvedVersion != "" {
		t.Errorf("ResolvedVersion = %q, want empty", got[0].ResolvedVersion)
	}
	if want := basePath + "/org.hamcrest:hamcrest-core"; got[0].Package != want {
		t.Errorf("Package = %q, want %q", got[0].Package, want)
	}
}

func TestResolveUnknownArtifactOmitsReference(t *testing.T) {
	r, _ := newResolver(t)

	got := r.Resolve(context.Background(), []datasource.Dependency{
		{GroupID: "com.example", ArtifactID: "missing", Version: "1.0", Scope: "test", Optional: "true"},
	})
	if got[0].Package != "" {
		t.Errorf("Package = %q, want empty", got[0].Package)
	}
	if got[0].Scope != "test" || !got[0].Optional {
		t.Errorf("scope/optional not carried: %+v", got[0])
	}
}
