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

package pipelines

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/antflydb/weevil/pkg/weevil/lib/backends"
	"github.com/antflydb/weevil/pkg/weevil/lib/models"
	"github.com/antflydb/weevil/pkg/weevil/lib/resources"
	"github.com/antflydb/weevil/pkg/weevil/lib/tokenizers"
)

// DefaultMultiLabelThreshold is the sigmoid activation above which a label is
// considered assigned when the caller does not pick a threshold.
const DefaultMultiLabelThreshold = 0.5

// TextEncoder is the tokenizer surface the pipeline depends on.
// *tokenizers.Adapter implements it.
type TextEncoder interface {
	EncodeBatch(texts []string, maxLength int, strategy tokenizers.TruncationStrategy, extraTokens int) []tokenizers.TokenizedInput
	PadID() (int64, bool)
}

// LogitsModel is the forward-pass surface the pipeline depends on.
// *models.SequenceClassifier implements it.
type LogitsModel interface {
	ForwardT(input models.ForwardInput, train bool) ([][]float32, error)
	Close() error
}

var (
	_ TextEncoder = (*tokenizers.Adapter)(nil)
	_ LogitsModel = (*models.SequenceClassifier)(nil)
)

// ClassificationConfig bundles everything needed to assemble a
// ClassificationPipeline from model artifacts.
type ClassificationConfig struct {
	// ModelType selects the transformer architecture.
	ModelType models.ModelType

	// ModelResource locates the ONNX weights file.
	ModelResource resources.Provider
	// ConfigResource locates the model's config.json.
	ConfigResource resources.Provider
	// VocabResource locates the tokenizer vocabulary
	// (tokenizer.json or a sentencepiece .model).
	VocabResource resources.Provider

	// LowerCase, StripAccents and AddPrefixSpace select the text
	// normalization the model was trained with.
	LowerCase      bool
	StripAccents   bool
	AddPrefixSpace bool

	// Truncation picks the truncation strategy; defaults to
	// tokenizers.TruncateLongestFirst.
	Truncation tokenizers.TruncationStrategy

	// MaxLength caps tokenized sequence length. Zero means use the model
	// configuration's maximum position embeddings (unbounded if the model
	// has none, e.g. XLNet).
	MaxLength int

	// Logger for pipeline diagnostics; defaults to a no-op logger.
	Logger *zap.Logger
}

// ClassificationPipeline classifies texts into the label set baked into the
// model. It owns the model session and must be closed when done. All methods
// are safe for concurrent use if the underlying session supports concurrent
// runs.
type ClassificationPipeline struct {
	encoder    TextEncoder
	model      LogitsModel
	labels     map[int64]string
	maxLength  int
	truncation tokenizers.TruncationStrategy
	logger     *zap.Logger
}

// NewClassificationPipeline resolves the configured resources, loads the
// model configuration, tokenizer, and weights, and assembles the pipeline.
func NewClassificationPipeline(
	cfg *ClassificationConfig,
	factory backends.SessionFactory,
	opts ...backends.SessionOption,
) (*ClassificationPipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	configPath, err := cfg.ConfigResource.GetLocalPath()
	if err != nil {
		return nil, fmt.Errorf("resolving model config: %w", err)
	}
	modelConfig, err := models.LoadConfig(cfg.ModelType, configPath)
	if err != nil {
		return nil, fmt.Errorf("loading model config: %w", err)
	}

	vocabPath, err := cfg.VocabResource.GetLocalPath()
	if err != nil {
		return nil, fmt.Errorf("resolving vocabulary: %w", err)
	}
	adapter, err := tokenizers.LoadAdapter(vocabPath, tokenizers.AdapterOptions{
		LowerCase:      cfg.LowerCase,
		StripAccents:   cfg.StripAccents,
		AddPrefixSpace: cfg.AddPrefixSpace,
	})
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	weightsPath, err := cfg.ModelResource.GetLocalPath()
	if err != nil {
		return nil, fmt.Errorf("resolving model weights: %w", err)
	}
	classifier, err := models.NewSequenceClassifier(cfg.ModelType, weightsPath, modelConfig, factory, opts...)
	if err != nil {
		return nil, err
	}

	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = modelConfig.MaxLen()
	}
	truncation := cfg.Truncation
	if truncation == "" {
		truncation = tokenizers.TruncateLongestFirst
	}

	logger.Info("classification pipeline ready",
		zap.String("model_type", string(cfg.ModelType)),
		zap.Int64("num_labels", modelConfig.NumLabels()),
		zap.Int("max_length", maxLength))

	return &ClassificationPipeline{
		encoder:    adapter,
		model:      classifier,
		labels:     modelConfig.LabelMapping(),
		maxLength:  maxLength,
		truncation: truncation,
		logger:     logger,
	}, nil
}

// NewPipelineFromComponents wires a pipeline from an already-built encoder and
// model. It is the constructor for callers that manage their own artifact
// loading or substitute custom implementations.
func NewPipelineFromComponents(encoder TextEncoder, model LogitsModel, labels map[int64]string, maxLength int, logger *zap.Logger) *ClassificationPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassificationPipeline{
		encoder:    encoder,
		model:      model,
		labels:     labels,
		maxLength:  maxLength,
		truncation: tokenizers.TruncateLongestFirst,
		logger:     logger,
	}
}

// Predict assigns exactly one label to each text: the class with the highest
// softmax probability. The result has one Label per input, in input order,
// with Sentence set to the input's index.
func (p *ClassificationPipeline) Predict(texts []string) ([]Label, error) {
	if len(texts) == 0 {
		return []Label{}, nil
	}

	logits, err := p.forward(texts)
	if err != nil {
		return nil, err
	}

	labels := make([]Label, len(logits))
	for i, row := range logits {
		probs := Softmax(row)
		id := Argmax(probs)
		labels[i] = Label{
			Text:     p.labelFor(id),
			Score:    probs[id],
			ID:       id,
			Sentence: i,
		}
	}
	return labels, nil
}

// PredictMultilabel scores every class independently through a sigmoid and
// assigns all classes whose activation reaches the threshold. The result has
// exactly one group per input text, in input order; a group is empty when no
// class reaches the threshold.
func (p *ClassificationPipeline) PredictMultilabel(texts []string, threshold float64) ([][]Label, error) {
	if len(texts) == 0 {
		return [][]Label{}, nil
	}

	logits, err := p.forward(texts)
	if err != nil {
		return nil, err
	}

	groups := make([][]Label, len(logits))
	for i, row := range logits {
		probs := Sigmoid(row)
		group := []Label{}
		for id, score := range probs {
			if score >= threshold {
				group = append(group, Label{
					Text:     p.labelFor(int64(id)),
					Score:    score,
					ID:       int64(id),
					Sentence: i,
				})
			}
		}
		groups[i] = group
	}
	return groups, nil
}

// forward tokenizes, pads, and runs the batch through the model.
func (p *ClassificationPipeline) forward(texts []string) ([][]float32, error) {
	encoded := p.encoder.EncodeBatch(texts, p.maxLength, p.truncation, 0)

	padID, hasPad := p.encoder.PadID()
	b, err := buildBatch(encoded, padID, hasPad)
	if err != nil {
		return nil, err
	}

	return p.model.ForwardT(models.ForwardInput{
		InputIDs:      b.inputIDs,
		AttentionMask: b.attentionMask,
	}, false)
}

// labelFor resolves a class id through the model's label mapping. A missing
// entry means the model config and classification head disagree, which is a
// corrupted-artifact condition rather than a runtime input error.
func (p *ClassificationPipeline) labelFor(id int64) string {
	text, ok := p.labels[id]
	if !ok {
		panic(fmt.Sprintf("class id %d has no entry in the model's id2label mapping", id))
	}
	return text
}

// Close releases the model session.
func (p *ClassificationPipeline) Close() error {
	return p.model.Close()
}
