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

// Package httpcache implements a content-addressed store for outbound GET
// requests with transparent ETag revalidation. Records are kept as JSON files
// named by the base64-encoded request URL; freshness is delegated entirely to
// upstream validators, no time-based expiry is applied.
package httpcache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xregistry/package-registries/log"
)

var errUpstreamFailed = errors.New("upstream request failed")

// ErrNotFound reports that the upstream answered 404 and no cached copy
// exists. Callers use it to distinguish a missing entity from a broken
// upstream.
var ErrNotFound = errors.New("not found upstream")

// record is the on-disk cache entry for one URL.
type record struct {
	ETag      string    `json:"etag"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache is a conditional HTTP cache over a flat directory. The zero value is
// not usable; construct with New.
type Cache struct {
	dir    string
	client *http.Client

	// At most one in-flight refresh per URL.
	group singleflight.Group
}

// New creates a cache rooted at dir, creating the directory if needed.
// If client is nil, http.DefaultClient is used.
func New(dir string, client *http.Client) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Cache{dir: dir, client: client}, nil
}

// Get fetches url through the cache. The stored ETag, if any, is replayed as
// If-None-Match; a 304 serves the stored bytes, a 200 replaces the record.
// On any other failure the stored bytes are served if present, otherwise the
// error surfaces. Extra request headers may be passed in hdr.
func (c *Cache) Get(ctx context.Context, url string, hdr http.Header) ([]byte, error) {
	v, err, _ := c.group.Do(url, func() (any, error) {
		return c.fetch(ctx, url, hdr)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// GetJSON fetches url through the cache and decodes the body into dst.
func (c *Cache) GetJSON(ctx context.Context, url string, hdr http.Header, dst any) error {
	b, err := c.Get(ctx, url, hdr)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

func (c *Cache) fetch(ctx context.Context, url string, hdr http.Header) ([]byte, error) {
	stored, ok := c.load(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if ok && stored.ETag != "" {
		req.Header.Set("If-None-Match", stored.ETag)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ok {
			log.Warnf("request to %s failed, serving cached copy: %v", url, err)
			return stored.Data, nil
		}
		return nil, fmt.Errorf("%w: %w", errUpstreamFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return stored.Data, nil
	case http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			if ok {
				return stored.Data, nil
			}
			return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
		}
		if err := c.store(url, record{
			ETag:      resp.Header.Get("ETag"),
			Data:      b,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			log.Warnf("failed to persist cache record for %s: %v", url, err)
		}
		return b, nil
	case http.StatusNotFound:
		if ok {
			return stored.Data, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	default:
		if ok {
			log.Warnf("request to %s returned status %d, serving cached copy", url, resp.StatusCode)
			return stored.Data, nil
		}
		return nil, fmt.Errorf("%w: status %d from %s", errUpstreamFailed, resp.StatusCode, url)
	}
}

// path maps a URL to its cache file.
func (c *Cache) path(url string) string {
	return filepath.Join(c.dir, base64.URLEncoding.EncodeToString([]byte(url)))
}

func (c *Cache) load(url string) (record, bool) {
	b, err := os.ReadFile(c.path(url))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("failed to read cache record for %s: %v", url, err)
		}
		return record{}, false
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		log.Warnf("discarding corrupt cache record for %s: %v", url, err)
		return record{}, false
	}
	return rec, true
}

// store writes the record atomically so concurrent readers observe either the
// old or the new entry, never a partial write.
func (c *Cache) store(url string, rec record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(url))
}
