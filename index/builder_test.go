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

package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	workdir := t.TempDir()
	exportDir := filepath.Join(workdir, "export")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		t.Fatal(err)
	}
	fld := "doc 0\n" +
		"value org.junit|junit|4.13.2|jar\n" +
		"value junit|junit|3.8.1|jar\n" +
		"value org.junit|junit|4.12|jar\n" +
		"field uinfo\n" +
		"value io.grpc|grpc-core|1.60.0|jar\n" +
		"value |broken|1.0|jar\n"
	if err := os.WriteFile(filepath.Join(exportDir, "sample.fld"), []byte(fld), 0644); err != nil {
		t.Fatal(err)
	}

	b, err := NewBuilder(BuildConfig{
		WorkDir: workdir,
		Output:  filepath.Join(workdir, "packages.db"),
	})
	if err != nil {
		t.Fatalf("NewBuilder() error: %v", err)
	}
	count, err := b.load(context.Background())
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if count != 3 {
		t.Errorf("load() = %d coordinates, want 3", count)
	}

	s, err := OpenSearcher(b.cfg.Output)
	if err != nil {
		t.Fatalf("OpenSearcher() error: %v", err)
	}
	defer s.Close()
	got, err := s.Search(context.Background(), Query{Query: "junit"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if got.TotalCount != 2 {
		t.Errorf("Search(junit) after load = %d matches, want 2", got.TotalCount)
	}
}

func TestBuildSkipsFreshDatabase(t *testing.T) {
	workdir := t.TempDir()
	output := filepath.Join(workdir, "packages.db")
	if err := os.WriteFile(output, nil, 0644); err != nil {
		t.Fatal(err)
	}

	b, err := NewBuilder(BuildConfig{WorkDir: workdir, Output: output})
	if err != nil {
		t.Fatalf("NewBuilder() error: %v", err)
	}
	// A just-written database is inside the freshness window, so Build must
	// return before touching the network.
	if err := b.Build(context.Background()); err != nil {
		t.Errorf("Build() on fresh database error: %v", err)
	}
}

func TestNewBuilderRequiresPaths(t *testing.T) {
	if _, err := NewBuilder(BuildConfig{Output: "out.db"}); err == nil {
		t.Error("NewBuilder() without workdir succeeded, want error")
	}
	if _, err := NewBuilder(BuildConfig{WorkDir: "w"}); err == nil {
		t.Error("NewBuilder() without output succeeded, want error")
	}
}
