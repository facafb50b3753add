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

// The xrindexer command builds the Maven package catalogue database from the
// Nexus repository index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xregistry/package-registries/index"
	"github.com/xregistry/package-registries/log"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	cfg, quiet, logFile, err := parseFlags(args[1:])
	if err != nil {
		log.Errorf("Error parsing CLI args: %v", err)
		return 1
	}

	log.SetQuiet(quiet)
	if logFile != "" {
		if err := log.SetFile(logFile); err != nil {
			log.Errorf("Failed to open log file: %v", err)
			return 1
		}
	}

	builder, err := index.NewBuilder(cfg)
	if err != nil {
		log.Errorf("Failed to set up the index builder: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := builder.Build(ctx); err != nil {
		log.Errorf("Index build failed: %v", err)
		return 1
	}
	return 0
}

func parseFlags(args []string) (index.BuildConfig, bool, string, error) {
	fs := flag.NewFlagSet("xrindexer", flag.ContinueOnError)
	workDir := fs.String("workdir", "work", "Working directory for the downloaded archive and the extractor output")
	output := fs.String("output", "packages.db", "Path of the database file to produce")
	indexURL := fs.String("url", "", "Override the Nexus index archive URL")
	image := fs.String("image", "", "Override the extractor Docker image")
	freshness := fs.Duration("freshness", 24*time.Hour, "Skip the rebuild when the database is younger than this")
	force := fs.Bool("force", false, "Rebuild regardless of database age")
	quiet := fs.Bool("quiet", false, "Suppress console logs")
	logFile := fs.String("log", "", "Structured log sink path")
	if err := fs.Parse(args); err != nil {
		return index.BuildConfig{}, false, "", err
	}
	if len(fs.Args()) > 0 {
		return index.BuildConfig{}, false, "", fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return index.BuildConfig{
		WorkDir:        *workDir,
		Output:         *output,
		IndexURL:       *indexURL,
		ExtractorImage: *image,
		Freshness:      *freshness,
		Force:          *force,
	}, *quiet, *logFile, nil
}
