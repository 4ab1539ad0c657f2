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

package resources

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalResource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	resolved, err := NewLocalResource(path).GetLocalPath()
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
}

func TestLocalResourceMissing(t *testing.T) {
	_, err := NewLocalResource(filepath.Join(t.TempDir(), "absent")).GetLocalPath()
	require.Error(t, err)
}

func TestCachedRemoteResourceDownloadsOnce(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("model bytes"))
	}))
	defer server.Close()

	resource := &CachedRemoteResource{
		URL:      server.URL + "/model.onnx",
		CacheDir: t.TempDir(),
	}

	path, err := resource.GetLocalPath()
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "model bytes", string(content))

	// Second resolution is served from the cache.
	again, err := resource.GetLocalPath()
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int64(1), hits.Load())
}

func TestCachedRemoteResourceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	resource := &CachedRemoteResource{
		URL:      server.URL + "/missing.onnx",
		CacheDir: t.TempDir(),
	}

	_, err := resource.GetLocalPath()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	// Nothing is cached on failure.
	entries, err := os.ReadDir(resource.CacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
