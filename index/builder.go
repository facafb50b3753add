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
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/xregistry/package-registries/log"
)

// nexusIndexURL is the downloadable catalogue of all published Maven
// Central coordinates.
const nexusIndexURL = "https://repo.maven.apache.org/maven2/.index/nexus-maven-repository-index.gz"

// defaultExtractorImage runs the Maven indexer CLI against the downloaded
// archive and emits .fld text files under export/.
const defaultExtractorImage = "clemensv/maven-index-exporter"

// progressInterval is how many input lines pass between progress log lines.
const progressInterval = 100000

// BuildConfig configures one index build run.
type BuildConfig struct {
	// WorkDir holds the downloaded archive and the extractor output.
	WorkDir string
	// Output is the path of the database file to produce.
	Output string
	// IndexURL overrides the Nexus index location, for tests.
	IndexURL string
	// ExtractorImage is the Docker image of the external extractor.
	ExtractorImage string
	// Freshness is how old the database may be before a rebuild; 24h if
	// zero.
	Freshness time.Duration
	// Force rebuilds regardless of database age.
	Force bool
}

// Builder produces the package catalogue database from the Nexus index. On
// any failure the previous database file remains usable: the build writes
// into the existing file only inside a single transaction.
type Builder struct {
	cfg BuildConfig
}

// NewBuilder validates the configuration and returns a Builder.
func NewBuilder(cfg BuildConfig) (*Builder, error) {
	if cfg.WorkDir == "" || cfg.Output == "" {
		return nil, fmt.Errorf("index builder requires workdir and output")
	}
	if cfg.IndexURL == "" {
		cfg.IndexURL = nexusIndexURL
	}
	if cfg.ExtractorImage == "" {
		cfg.ExtractorImage = defaultExtractorImage
	}
	if cfg.Freshness == 0 {
		cfg.Freshness = 24 * time.Hour
	}
	return &Builder{cfg: cfg}, nil
}

// Build runs the full pipeline: download, extract, load, project, compact.
func (b *Builder) Build(ctx context.Context) error {
	if !b.cfg.Force && b.isFresh() {
		log.Infof("index database %s is fresh, skipping rebuild", b.cfg.Output)
		return nil
	}

	if err := os.MkdirAll(b.cfg.WorkDir, 0755); err != nil {
		return fmt.Errorf("failed to create workdir: %w", err)
	}

	archive := filepath.Join(b.cfg.WorkDir, "nexus-maven-repository-index.gz")
	if err := b.download(ctx, archive); err != nil {
		return fmt.Errorf("download phase failed: %w", err)
	}
	if err := b.extract(ctx); err != nil {
		return fmt.Errorf("extract phase failed: %w", err)
	}
	count, err := b.load(ctx)
	if err != nil {
		return fmt.Errorf("load phase failed: %w", err)
	}
	log.Infof("index build finished, %d coordinates loaded", count)
	return nil
}

// isFresh reports whether the database was rebuilt within the freshness
// window.
func (b *Builder) isFresh() bool {
	info, err := os.Stat(b.cfg.Output)
	return err == nil && time.Since(info.ModTime()) < b.cfg.Freshness
}

// download fetches the Nexus index archive, conditional on the mtime of the
// local copy.
func (b *Builder) download(ctx context.Context, dest string) error {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, b.cfg.IndexURL, nil)
	if err != nil {
		return err
	}
	if info, err := os.Stat(dest); err == nil {
		req.Header.Set("If-Modified-Since", info.ModTime().UTC().Format(http.TimeFormat))
	}

	log.Infof("downloading %s", b.cfg.IndexURL)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		log.Infof("index archive unchanged upstream, reusing %s", dest)
		return nil
	case http.StatusOK:
	default:
		return fmt.Errorf("unexpected status %d downloading index", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(b.cfg.WorkDir, ".download-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// extract invokes the external extractor image with the workdir mounted at
// /work; it emits export/*.fld files.
func (b *Builder) extract(ctx context.Context) error {
	workdir, err := filepath.Abs(b.cfg.WorkDir)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "docker", "run", "--rm",
		"-v", workdir+":/work", b.cfg.ExtractorImage)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	log.Infof("running extractor %s", b.cfg.ExtractorImage)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extractor failed: %w", err)
	}
	return nil
}

// load streams the extractor's .fld output into the packages table inside
// one transaction, deduplicating coordinates in memory, then rebuilds the
// FTS projection and compacts the file.
func (b *Builder) load(ctx context.Context) (int, error) {
	matches, err := filepath.Glob(filepath.Join(b.cfg.WorkDir, "export", "*.fld"))
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, fmt.Errorf("no .fld files under %s", filepath.Join(b.cfg.WorkDir, "export"))
	}

	db, err := OpenWritable(ctx, b.cfg.Output)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO packages(group_id, artifact_id, coordinates) VALUES (?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	seen := make(map[string]struct{})
	lines := 0
	for _, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
		for scanner.Scan() {
			lines++
			if lines%progressInterval == 0 {
				log.Infof("index load progress: %d lines, %d unique coordinates", lines, len(seen))
			}
			value, ok := strings.CutPrefix(scanner.Text(), "value ")
			if !ok {
				continue
			}
			parts := strings.Split(value, "|")
			if len(parts) < 2 {
				continue
			}
			groupID, artifactID := parts[0], parts[1]
			if groupID == "" || artifactID == "" {
				continue
			}
			key := groupID + ":" + artifactID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if _, err := stmt.ExecContext(ctx, groupID, artifactID, key); err != nil {
				f.Close()
				return 0, err
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return 0, err
		}
		f.Close()
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	// The triggers kept the projection in sync during the bulk insert; the
	// rebuild repairs any projection drift from earlier runs.
	if _, err := db.ExecContext(ctx, "INSERT INTO packages_fts(packages_fts) VALUES ('rebuild')"); err != nil {
		return 0, fmt.Errorf("FTS rebuild failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return 0, fmt.Errorf("compaction failed: %w", err)
	}
	return len(seen), nil
}
