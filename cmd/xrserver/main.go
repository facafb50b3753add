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

// The xrserver command serves the xRegistry federation gateway over the
// configured upstream package registries.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xregistry/package-registries/adapter/maven"
	"github.com/xregistry/package-registries/clients/httpcache"
	"github.com/xregistry/package-registries/index"
	"github.com/xregistry/package-registries/log"
	"github.com/xregistry/package-registries/scheduler"
	"github.com/xregistry/package-registries/xregistry"
)

// mavenRefreshInterval is how often the package catalogue is rebuilt.
const mavenRefreshInterval = 7 * 24 * time.Hour

type serverFlags struct {
	port       int
	baseURL    string
	apiKey     string
	quiet      bool
	logFile    string
	pathPrefix string
	cacheDir   string
	indexPath  string
	workDir    string
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	flags, err := parseFlags(args[1:])
	if err != nil {
		log.Errorf("Error parsing CLI args: %v", err)
		return 1
	}

	log.SetQuiet(flags.quiet)
	if flags.logFile != "" {
		if err := log.SetFile(flags.logFile); err != nil {
			log.Errorf("Failed to open log file: %v", err)
			return 1
		}
	}

	cache, err := httpcache.New(flags.cacheDir, nil)
	if err != nil {
		log.Errorf("Failed to set up the HTTP cache: %v", err)
		return 1
	}

	adapter, err := maven.New(maven.Config{
		IndexPath: flags.indexPath,
		Cache:     cache,
	})
	if err != nil {
		log.Errorf("Failed to set up the Maven adapter: %v", err)
		return 1
	}
	defer adapter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.workDir != "" {
		builder, err := index.NewBuilder(index.BuildConfig{
			WorkDir: flags.workDir,
			Output:  flags.indexPath,
		})
		if err != nil {
			log.Errorf("Failed to set up the index builder: %v", err)
			return 1
		}
		// Rebuilds hand the fresh catalogue to the adapter; the synchronous
		// first run means a cold start serves from the index, not Solr.
		_, statErr := os.Stat(flags.indexPath)
		scheduler.Schedule(ctx, "maven-index", mavenRefreshInterval, statErr != nil, func(ctx context.Context) error {
			if err := builder.Build(ctx); err != nil {
				return err
			}
			return adapter.ReloadIndex()
		})
	}

	cfg := xregistry.ServerConfig{
		BaseURL: flags.baseURL,
		APIKey:  flags.apiKey,
		Quiet:   flags.quiet,
	}
	svc := xregistry.NewService(adapter, "package-registries", flags.baseURL)

	var handler http.Handler
	if flags.pathPrefix != "" {
		handler = xregistry.Compose(cfg, map[string]*xregistry.Service{flags.pathPrefix: svc})
	} else {
		handler = xregistry.NewHandler(cfg, svc)
	}

	addr := fmt.Sprintf(":%d", flags.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Errorf("Failed to bind %s: %v", addr, err)
		return 1
	}

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("xregistry gateway listening on %s", addr)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Errorf("Server failed: %v", err)
		return 1
	}
	return 0
}

func parseFlags(args []string) (*serverFlags, error) {
	fs := flag.NewFlagSet("xrserver", flag.ContinueOnError)
	port := fs.Int("port", 8080, "The port to listen on")
	baseURL := fs.String("baseurl", "", "Absolute base URL used in self links (derived from the request if empty)")
	apiKey := fs.String("apikey", "", "API key; bearer authentication is enabled when non-empty")
	quiet := fs.Bool("quiet", false, "Suppress console logs")
	logFile := fs.String("log", "", "Structured log sink path")
	pathPrefix := fs.String("pathprefix", "", `Mount the adapter under a path prefix (e.g. "/maven")`)
	cacheDir := fs.String("cachedir", "cache", "Directory of the conditional HTTP cache")
	indexPath := fs.String("index", "packages.db", "Path of the package catalogue database")
	workDir := fs.String("workdir", "", "Index builder working directory; scheduled rebuilds are disabled when empty")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if len(fs.Args()) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return &serverFlags{
		port:       *port,
		baseURL:    *baseURL,
		apiKey:     *apiKey,
		quiet:      *quiet,
		logFile:    *logFile,
		pathPrefix: *pathPrefix,
		cacheDir:   *cacheDir,
		indexPath:  *indexPath,
		workDir:    *workDir,
	}, nil
}
