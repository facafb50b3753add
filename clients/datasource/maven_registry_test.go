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

package datasource_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xregistry/package-registries/clients/clienttest"
	"github.com/xregistry/package-registries/clients/datasource"
	"github.com/xregistry/package-registries/clients/httpcache"
)

func newClient(t *testing.T, url string) *datasource.MavenRegistryAPIClient {
	t.Helper()
	cache, err := httpcache.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("httpcache.New: %v", err)
	}
	return datasource.NewMavenRegistryAPIClient(url, cache)
}

func TestGetProject(t *testing.T) {
	srv := clienttest.NewMockHTTPServer(t)
	srv.SetResponse(t, "junit/junit/4.13.2/junit-4.13.2.pom", []byte(`
	<project>
	  <groupId>junit</groupId>
	  <artifactId>junit</artifactId>
	  <version>4.13.2</version>
	  <packaging>jar</packaging>
	  <url>https://junit.org/junit4/</url>
	  <organization>
	    <name>JUnit</name>
	    <url>https://junit.org</url>
	  </organization>
	  <licenses>
	    <license>
	      <name>Eclipse Public License 1.0</name>
	      <url>http://www.eclipse.org/legal/epl-v10.html</url>
	    </license>
	  </licenses>
	  <scm>
	    <url>https://github.com/junit-team/junit4</url>
	    <connection>scm:git:git://github.com/junit-team/junit4.git</connection>
	  </scm>
	  <dependencies>
	    <dependency>
	      <groupId>org.hamcrest</groupId>
	      <artifactId>hamcrest-core</artifactId>
	      <version>1.3</version>
	    </dependency>
	  </dependencies>
	</project>
	`))

	client := newClient(t, srv.URL)
	got, err := client.GetProject(context.Background(), "junit", "junit", "4.13.2")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}

	want := datasource.Project{
		GroupID:      "junit",
		ArtifactID:   "junit",
		Version:      "4.13.2",
		Packaging:    "jar",
		URL:          "https://junit.org/junit4/",
		Organization: datasource.Organization{Name: "JUnit", URL: "https://junit.org"},
		Licenses: []datasource.License{
			{Name: "Eclipse Public License 1.0", URL: "http://www.eclipse.org/legal/epl-v10.html"},
		},
		SCM: datasource.SCM{
			URL:        "https://github.com/junit-team/junit4",
			Connection: "scm:git:git://github.com/junit-team/junit4.git",
		},
		Dependencies: []datasource.Dependency{
			{GroupID: "org.hamcrest", ArtifactID: "hamcrest-core", Version: "1.3"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetProject(junit:junit@4.13.2) mismatch (-want +got):\n%s", diff)
	}
}

func TestGetProjectInheritsParentCoordinates(t *testing.T) {
	srv := clienttest.NewMockHTTPServer(t)
	srv.SetResponse(t, "org/example/child/1.0.0/child-1.0.0.pom", []byte(`
	<project>
	  <parent>
	    <groupId>org.example</groupId>
	    <artifactId>parent</artifactId>
	    <version>1.0.0</version>
	  </parent>
	  <artifactId>child</artifactId>
	</project>
	`))

	client := newClient(t, srv.URL)
	got, err := client.GetProject(context.Background(), "org.example", "child", "1.0.0")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.GroupID != "org.example" || got.Version != "1.0.0" {
		t.Errorf("GetProject did not inherit parent coordinates: got %s@%s", got.GroupID, got.Version)
	}
}

func TestGetVersions(t *testing.T) {
	srv := clienttest.NewMockHTTPServer(t)
	srv.SetResponse(t, "junit/junit/maven-metadata.xml", []byte(`
	<metadata>
	  <groupId>junit</groupId>
	  <artifactId>junit</artifactId>
	  <versioning>
	    <latest>4.13.2</latest>
	    <release>4.13.2</release>
	    <versions>
	      <version>4.13.2</version>
	      <version>4.10</version>
	      <version>4.13-rc-1</version>
	      <version>4.9</version>
	    </versions>
	  </versioning>
	</metadata>
	`))

	client := newClient(t, srv.URL)
	got, err := client.GetVersions(context.Background(), "junit", "junit")
	if err != nil {
		t.Fatalf("GetVersions: %v", err)
	}
	want := []string{"4.9", "4.10", "4.13-rc-1", "4.13.2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetVersions(junit:junit) mismatch (-want +got):\n%s", diff)
	}
}

func TestGetProjectUsesCache(t *testing.T) {
	srv := clienttest.NewMockHTTPServer(t)
	srv.SetResponse(t, "junit/junit/4.13.2/junit-4.13.2.pom", []byte(`
	<project>
	  <groupId>junit</groupId>
	  <artifactId>junit</artifactId>
	  <version>4.13.2</version>
	</project>
	`))

	client := newClient(t, srv.URL)
	for range 2 {
		if _, err := client.GetProject(context.Background(), "junit", "junit", "4.13.2"); err != nil {
			t.Fatalf("GetProject: %v", err)
		}
	}
	// The mock server sends no validators, so each request revalidates, but
	// both must succeed against the same record.
	if hits := srv.Hits("junit/junit/4.13.2/junit-4.13.2.pom"); hits != 2 {
		t.Errorf("upstream hits = %d, want 2", hits)
	}
}
