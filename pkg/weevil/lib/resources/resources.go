// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resources resolves model artifacts (weights, config, vocab files)
// to local filesystem paths. Pipelines never know whether a path was already
// local or downloaded; they only require that resolution yields a readable file.
package resources

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/antflydb/weevil/pkg/weevil/lib/paths"
)

// Provider resolves a single resource to a local filesystem path.
// Resolution failures are fatal to pipeline construction and are
// propagated unchanged.
type Provider interface {
	// GetLocalPath returns the local path of the resource, fetching it first
	// if necessary.
	GetLocalPath() (string, error)
}

// LocalResource is a resource that already exists on the local filesystem.
type LocalResource struct {
	Path string
}

// NewLocalResource returns a Provider for a file that is already on disk.
func NewLocalResource(path string) *LocalResource {
	return &LocalResource{Path: path}
}

// GetLocalPath verifies the file exists and returns its path.
func (r *LocalResource) GetLocalPath() (string, error) {
	if _, err := os.Stat(r.Path); err != nil {
		return "", fmt.Errorf("resolving local resource %s: %w", r.Path, err)
	}
	return r.Path, nil
}

// CachedRemoteResource downloads a resource over HTTP once and caches it
// under the weevil cache directory, keyed by URL hash.
type CachedRemoteResource struct {
	URL string

	// CacheDir overrides the default cache directory (mainly for tests).
	CacheDir string

	// Client overrides the default HTTP client (mainly for tests).
	Client *http.Client
}

// NewRemoteResource returns a Provider that fetches the URL on first use.
func NewRemoteResource(url string) *CachedRemoteResource {
	return &CachedRemoteResource{URL: url}
}

// GetLocalPath returns the cached file path, downloading it first if absent.
func (r *CachedRemoteResource) GetLocalPath() (string, error) {
	cacheDir := r.CacheDir
	if cacheDir == "" {
		cacheDir = paths.DefaultCacheDir()
	}

	sum := sha256.Sum256([]byte(r.URL))
	target := filepath.Join(cacheDir, hex.EncodeToString(sum[:8])+"-"+filepath.Base(r.URL))

	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(r.URL)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", r.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %s", r.URL, resp.Status)
	}

	// Download to a temp file first so a partial download never
	// masquerades as a cached resource.
	tmp, err := os.CreateTemp(cacheDir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("moving download into cache: %w", err)
	}
	return target, nil
}
