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

package weevil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/antflydb/weevil/pkg/weevil/lib/backends"
	"github.com/antflydb/weevil/pkg/weevil/lib/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscoverModelFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model.onnx", "weights")
	writeFile(t, dir, "config.json", "{}")
	writeFile(t, dir, "tokenizer.json", "{}")

	weights, config, vocab := discoverModelFiles(dir)
	assert.Equal(t, filepath.Join(dir, "model.onnx"), weights)
	assert.Equal(t, filepath.Join(dir, "config.json"), config)
	assert.Equal(t, filepath.Join(dir, "tokenizer.json"), vocab)
}

func TestDiscoverModelFilesOnnxSubdir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "onnx/model.onnx", "weights")
	writeFile(t, dir, "config.json", "{}")
	writeFile(t, dir, "spiece.model", "sp")

	weights, _, vocab := discoverModelFiles(dir)
	assert.Equal(t, filepath.Join(dir, "onnx", "model.onnx"), weights)
	assert.Equal(t, filepath.Join(dir, "spiece.model"), vocab, "sentencepiece vocabularies are discovered")
}

func TestDiscoverModelFilesIncomplete(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", "{}")

	weights, config, vocab := discoverModelFiles(dir)
	assert.Empty(t, weights)
	assert.NotEmpty(t, config)
	assert.Empty(t, vocab)
}

func TestDetectModelType(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "config.json", `{"model_type": "distilbert"}`)
	modelType, err := detectModelType(path)
	require.NoError(t, err)
	assert.Equal(t, models.DistilBert, modelType)

	path = writeFile(t, dir, "config2.json", `{"model_type": "gpt2"}`)
	_, err = detectModelType(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gpt2")

	path = writeFile(t, dir, "config3.json", `not json`)
	_, err = detectModelType(path)
	require.Error(t, err)
}

func TestReadTokenizerOptions(t *testing.T) {
	dir := t.TempDir()

	// No tokenizer_config.json: everything defaults to false.
	lower, strip, prefix := readTokenizerOptions(dir)
	assert.False(t, lower)
	assert.False(t, strip)
	assert.False(t, prefix)

	writeFile(t, dir, "tokenizer_config.json", `{"do_lower_case": true, "add_prefix_space": true}`)
	lower, strip, prefix = readTokenizerOptions(dir)
	assert.True(t, lower)
	assert.False(t, strip)
	assert.True(t, prefix)
}

func TestRegistryEmptyModelsDir(t *testing.T) {
	registry, err := NewClassifierRegistry(t.TempDir(), backends.NewSessionFactory(backends.GPUModeCPU), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() {
		_ = registry.Close()
	}()

	assert.Empty(t, registry.List())

	_, err = registry.Get("anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegistryMissingModelsDir(t *testing.T) {
	registry, err := NewClassifierRegistry(filepath.Join(t.TempDir(), "absent"), backends.NewSessionFactory(backends.GPUModeCPU), zaptest.NewLogger(t))
	require.NoError(t, err, "a missing directory is not an error, just an empty registry")
	assert.Empty(t, registry.List())
}

func TestRegistrySkipsIncompleteModelDirs(t *testing.T) {
	modelsDir := t.TempDir()
	// A directory with only a config is not a loadable model.
	writeFile(t, filepath.Join(modelsDir, "half-model"), "config.json", `{"model_type": "bert"}`)
	// Plain files in the models dir are ignored.
	writeFile(t, modelsDir, "README.md", "notes")

	registry, err := NewClassifierRegistry(modelsDir, backends.NewSessionFactory(backends.GPUModeCPU), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Empty(t, registry.List())
}

func TestLoadClassifierIncompleteDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{"model_type": "bert"}`)

	_, _, err := LoadClassifier(dir, backends.NewSessionFactory(backends.GPUModeCPU), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing weights")
}
