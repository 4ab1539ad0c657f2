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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/antflydb/weevil/pkg/weevil/lib/backends"
	"github.com/antflydb/weevil/pkg/weevil/lib/classification"
	"github.com/antflydb/weevil/pkg/weevil/lib/models"
	"github.com/antflydb/weevil/pkg/weevil/lib/pipelines"
	"github.com/antflydb/weevil/pkg/weevil/lib/resources"
)

// vocabFilenames are the tokenizer files searched for in a model directory,
// in preference order.
var vocabFilenames = []string{"tokenizer.json", "spiece.model", "sentencepiece.bpe.model"}

// hfModelTypes maps the model_type values HuggingFace configs carry to the
// architectures this library supports.
var hfModelTypes = map[string]models.ModelType{
	"bert":        models.Bert,
	"deberta":     models.Deberta,
	"deberta-v2":  models.DebertaV2,
	"distilbert":  models.DistilBert,
	"mobilebert":  models.MobileBert,
	"roberta":     models.Roberta,
	"xlm-roberta": models.XLMRoberta,
	"albert":      models.Albert,
	"xlnet":       models.XLNet,
	"bart":        models.Bart,
	"reformer":    models.Reformer,
	"longformer":  models.Longformer,
	"fnet":        models.FNet,
}

// discoverModelFiles locates the ONNX weights, config.json, and tokenizer
// vocabulary in a model directory. Weights are searched in the root and in an
// "onnx/" subdirectory (common for onnx-community exports). Any missing file
// comes back as an empty string.
func discoverModelFiles(modelPath string) (weights, config, vocab string) {
	for _, dir := range []string{modelPath, filepath.Join(modelPath, "onnx")} {
		candidate := filepath.Join(dir, "model.onnx")
		if _, err := os.Stat(candidate); err == nil {
			weights = candidate
			break
		}
	}

	candidate := filepath.Join(modelPath, "config.json")
	if _, err := os.Stat(candidate); err == nil {
		config = candidate
	}

	for _, name := range vocabFilenames {
		candidate := filepath.Join(modelPath, name)
		if _, err := os.Stat(candidate); err == nil {
			vocab = candidate
			break
		}
	}
	return weights, config, vocab
}

// detectModelType reads the model_type field of a HuggingFace config.json.
func detectModelType(configPath string) (models.ModelType, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("reading config.json: %w", err)
	}
	var header struct {
		ModelType string `json:"model_type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return "", fmt.Errorf("parsing config.json: %w", err)
	}
	modelType, ok := hfModelTypes[header.ModelType]
	if !ok {
		return "", fmt.Errorf("unsupported model_type %q", header.ModelType)
	}
	return modelType, nil
}

// readTokenizerOptions pulls normalization flags from tokenizer_config.json
// when present. Absent file or fields default to false.
func readTokenizerOptions(modelPath string) (lowerCase, stripAccents, addPrefixSpace bool) {
	data, err := os.ReadFile(filepath.Join(modelPath, "tokenizer_config.json"))
	if err != nil {
		return false, false, false
	}
	var opts struct {
		DoLowerCase    bool `json:"do_lower_case"`
		StripAccents   bool `json:"strip_accents"`
		AddPrefixSpace bool `json:"add_prefix_space"`
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return false, false, false
	}
	return opts.DoLowerCase, opts.StripAccents, opts.AddPrefixSpace
}

// LoadClassifier loads a pooled classifier from a single model directory
// containing ONNX weights, a config.json, and a tokenizer vocabulary. The
// architecture is detected from the config's model_type field.
func LoadClassifier(modelPath string, factory backends.SessionFactory, logger *zap.Logger) (classification.Classifier, models.ModelType, error) {
	return loadClassifier(modelPath, "", factory, logger)
}

// LoadClassifierWithType is LoadClassifier with the architecture forced,
// bypassing model_type detection. Useful for exports whose config.json
// predates the architecture's model_type value.
func LoadClassifierWithType(modelPath string, modelType models.ModelType, factory backends.SessionFactory, logger *zap.Logger) (classification.Classifier, error) {
	classifier, _, err := loadClassifier(modelPath, modelType, factory, logger)
	return classifier, err
}

func loadClassifier(modelPath string, modelType models.ModelType, factory backends.SessionFactory, logger *zap.Logger) (classification.Classifier, models.ModelType, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	weights, config, vocab := discoverModelFiles(modelPath)
	if weights == "" || config == "" || vocab == "" {
		return nil, "", fmt.Errorf("model directory %s is missing weights, config.json, or a tokenizer file", modelPath)
	}

	if modelType == "" {
		detected, err := detectModelType(config)
		if err != nil {
			return nil, "", fmt.Errorf("detecting model type in %s: %w", modelPath, err)
		}
		modelType = detected
	}

	lowerCase, stripAccents, addPrefixSpace := readTokenizerOptions(modelPath)

	classifier, err := classification.NewPooledClassifier(classification.PooledClassifierConfig{
		Pipeline: &pipelines.ClassificationConfig{
			ModelType:      modelType,
			ModelResource:  &resources.LocalResource{Path: weights},
			ConfigResource: &resources.LocalResource{Path: config},
			VocabResource:  &resources.LocalResource{Path: vocab},
			LowerCase:      lowerCase,
			StripAccents:   stripAccents,
			AddPrefixSpace: addPrefixSpace,
			Logger:         logger,
		},
		Logger: logger,
	}, factory)
	if err != nil {
		return nil, "", err
	}
	return classifier, modelType, nil
}

// ClassifierRegistry manages multiple classification models loaded from a directory
type ClassifierRegistry struct {
	models map[string]classification.Classifier // model name -> classifier instance
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewClassifierRegistry creates a registry and discovers models in the given directory.
// Directory structure: modelsDir/model_name/{model.onnx, config.json, tokenizer.json}
func NewClassifierRegistry(modelsDir string, factory backends.SessionFactory, logger *zap.Logger) (*ClassifierRegistry, error) {
	registry := &ClassifierRegistry{
		models: make(map[string]classification.Classifier),
		logger: logger,
	}

	if modelsDir == "" {
		logger.Info("No classifier models directory configured")
		return registry, nil
	}

	// Check if directory exists
	if _, err := os.Stat(modelsDir); os.IsNotExist(err) {
		logger.Warn("Classifier models directory does not exist",
			zap.String("dir", modelsDir))
		return registry, nil
	}

	// Scan directory for model subdirectories
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("reading models directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		modelName := entry.Name()
		modelPath := filepath.Join(modelsDir, modelName)

		if weights, config, vocab := discoverModelFiles(modelPath); weights == "" || config == "" || vocab == "" {
			logger.Debug("Skipping directory without complete model files",
				zap.String("dir", modelName))
			continue
		}

		logger.Info("Discovered classifier model directory",
			zap.String("name", modelName),
			zap.String("path", modelPath))

		classifier, modelType, err := LoadClassifier(modelPath, factory, logger.Named(modelName))
		if err != nil {
			logger.Warn("Failed to load classifier model",
				zap.String("name", modelName),
				zap.Error(err))
			continue
		}

		registry.models[modelName] = classifier
		logger.Info("Successfully loaded classifier model",
			zap.String("name", modelName),
			zap.String("model_type", string(modelType)))
	}

	logger.Info("Classifier registry initialized",
		zap.Int("models_loaded", len(registry.models)))

	return registry, nil
}

// Get returns a classifier by model name
func (r *ClassifierRegistry) Get(modelName string) (classification.Classifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classifier, ok := r.models[modelName]
	if !ok {
		return nil, fmt.Errorf("classifier model not found: %s", modelName)
	}
	return classifier, nil
}

// List returns all available model names
func (r *ClassifierRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names
}

// Close closes all loaded models
func (r *ClassifierRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, classifier := range r.models {
		if err := classifier.Close(); err != nil {
			r.logger.Warn("Error closing classifier model",
				zap.String("name", name),
				zap.Error(err))
		}
	}
	return nil
}
