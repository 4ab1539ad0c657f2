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

package models

import (
	"fmt"

	"github.com/antflydb/weevil/pkg/weevil/lib/backends"
)

// ForwardInput carries the optional inputs of the uniform forward-pass
// contract. Only InputIDs is commonly populated; each architecture accepts a
// different subset and synthesizes defaults for the tensors it requires
// (an all-ones attention mask, all-zero token type ids).
type ForwardInput struct {
	// InputIDs is the rectangular token id batch, one row per text.
	InputIDs [][]int64
	// AttentionMask marks real tokens with 1 and padding with 0.
	// When nil, architectures that need a mask assume all-ones.
	AttentionMask [][]int64
	// TokenTypeIDs distinguishes sequence segments. When nil, architectures
	// that need type ids assume all-zeros. Ignored by architectures without
	// a token type vocabulary.
	TokenTypeIDs [][]int64
	// PositionIDs overrides position indices. Ignored by architectures that
	// derive positions internally.
	PositionIDs [][]int64
	// InputEmbeds are precomputed input embeddings. Session-backed
	// architectures cannot accept them and fail descriptively.
	InputEmbeds [][][]float32
}

// architecture is one arm of the closed classifier union. Each implementation
// feeds its session the tensor subset its ONNX export expects and extracts the
// logits from the session's output.
type architecture interface {
	forwardT(input ForwardInput) ([][]float32, error)
	close() error
}

// SequenceClassifier holds exactly one architecture variant, chosen at
// construction, and forwards inference calls to it. It is immutable after
// construction; concurrent forward passes are safe if the underlying session
// supports concurrent read-only runs.
type SequenceClassifier struct {
	modelType ModelType
	arch      architecture
}

// NewSequenceClassifier constructs the classifier for the requested
// architecture. The configuration's concrete type must match the architecture
// (ConfigMismatchError otherwise), architectures with constrained
// hyperparameters validate them (BackendConstructionError), and the weights at
// weightsPath are loaded into a session created by the factory. No partially
// constructed classifier is ever returned.
func NewSequenceClassifier(
	modelType ModelType,
	weightsPath string,
	config Config,
	factory backends.SessionFactory,
	opts ...backends.SessionOption,
) (*SequenceClassifier, error) {
	var build func(session backends.Session) architecture

	switch modelType {
	case Bert:
		cfg, ok := config.(*BertConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "BertConfig", Variant: Bert}
		}
		build = func(s backends.Session) architecture {
			return &bertClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case Deberta:
		cfg, ok := config.(*DebertaConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "DebertaConfig", Variant: Deberta}
		}
		build = func(s backends.Session) architecture {
			return &debertaClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case DebertaV2:
		cfg, ok := config.(*DebertaV2Config)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "DebertaV2Config", Variant: DebertaV2}
		}
		build = func(s backends.Session) architecture {
			return &debertaV2Classifier{session: s, numLabels: cfg.NumLabels()}
		}
	case DistilBert:
		cfg, ok := config.(*DistilBertConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "DistilBertConfig", Variant: DistilBert}
		}
		build = func(s backends.Session) architecture {
			return &distilBertClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case MobileBert:
		cfg, ok := config.(*MobileBertConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "MobileBertConfig", Variant: MobileBert}
		}
		build = func(s backends.Session) architecture {
			return &mobileBertClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case Roberta, XLMRoberta:
		// Roberta-family models share the BERT hyperparameter layout.
		cfg, ok := config.(*BertConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "BertConfig", Variant: modelType}
		}
		build = func(s backends.Session) architecture {
			return &robertaClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case Albert:
		cfg, ok := config.(*AlbertConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "AlbertConfig", Variant: Albert}
		}
		build = func(s backends.Session) architecture {
			return &albertClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case XLNet:
		cfg, ok := config.(*XLNetConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "XLNetConfig", Variant: XLNet}
		}
		if cfg.NHead <= 0 || cfg.DModel%cfg.NHead != 0 {
			return nil, &BackendConstructionError{
				Variant: XLNet,
				Reason:  fmt.Sprintf("d_model %d is not divisible by n_head %d", cfg.DModel, cfg.NHead),
			}
		}
		build = func(s backends.Session) architecture {
			return &xlnetClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case Bart:
		cfg, ok := config.(*BartConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "BartConfig", Variant: Bart}
		}
		build = func(s backends.Session) architecture {
			return &bartClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case Reformer:
		cfg, ok := config.(*ReformerConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "ReformerConfig", Variant: Reformer}
		}
		if len(cfg.AxialPosEmbdsDim) > 0 {
			sum := 0
			for _, d := range cfg.AxialPosEmbdsDim {
				sum += d
			}
			if sum != cfg.HiddenSize {
				return nil, &BackendConstructionError{
					Variant: Reformer,
					Reason: fmt.Sprintf("axial position embedding dimensions %v must sum to hidden size %d",
						cfg.AxialPosEmbdsDim, cfg.HiddenSize),
				}
			}
		}
		build = func(s backends.Session) architecture {
			return &reformerClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case Longformer:
		cfg, ok := config.(*LongformerConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "LongformerConfig", Variant: Longformer}
		}
		build = func(s backends.Session) architecture {
			return &longformerClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	case FNet:
		cfg, ok := config.(*FNetConfig)
		if !ok {
			return nil, &ConfigMismatchError{Expected: "FNetConfig", Variant: FNet}
		}
		build = func(s backends.Session) architecture {
			return &fnetClassifier{session: s, numLabels: cfg.NumLabels()}
		}
	default:
		return nil, fmt.Errorf("sequence classification not implemented for %s", modelType)
	}

	session, err := factory.CreateSession(weightsPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading weights for %s from %s: %w", modelType, weightsPath, err)
	}

	return &SequenceClassifier{
		modelType: modelType,
		arch:      build(session),
	}, nil
}

// ModelType returns the architecture this classifier was built for.
func (c *SequenceClassifier) ModelType() ModelType {
	return c.modelType
}

// ForwardT runs a forward pass and returns the raw logits, one row per input
// text and one column per label. train must be false: classification
// inference never tracks gradients or enables dropout.
func (c *SequenceClassifier) ForwardT(input ForwardInput, train bool) ([][]float32, error) {
	if train {
		return nil, fmt.Errorf("classification is inference-only: training forward passes are not supported")
	}
	if input.InputEmbeds != nil {
		return nil, fmt.Errorf("%s: precomputed input embeddings are not supported by session-backed models", c.modelType)
	}
	return c.arch.forwardT(input)
}

// Close releases the underlying session.
func (c *SequenceClassifier) Close() error {
	return c.arch.close()
}

// ---------------------------------------------------------------------------
// Architecture arms. Each knows the input tensors its ONNX export expects.
// ---------------------------------------------------------------------------

type bertClassifier struct {
	session   backends.Session
	numLabels int64
}

func (m *bertClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
		typeTensor("token_type_ids", in.TokenTypeIDs, in.InputIDs),
	)
}

func (m *bertClassifier) close() error { return m.session.Close() }

type debertaClassifier struct {
	session   backends.Session
	numLabels int64
}

// DeBERTa exports carry no token type input; type ids are ignored.
func (m *debertaClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
	)
}

func (m *debertaClassifier) close() error { return m.session.Close() }

type debertaV2Classifier struct {
	session   backends.Session
	numLabels int64
}

func (m *debertaV2Classifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
	)
}

func (m *debertaV2Classifier) close() error { return m.session.Close() }

type distilBertClassifier struct {
	session   backends.Session
	numLabels int64
}

func (m *distilBertClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
	)
}

func (m *distilBertClassifier) close() error { return m.session.Close() }

type mobileBertClassifier struct {
	session   backends.Session
	numLabels int64
}

func (m *mobileBertClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
		typeTensor("token_type_ids", in.TokenTypeIDs, in.InputIDs),
	)
}

func (m *mobileBertClassifier) close() error { return m.session.Close() }

type robertaClassifier struct {
	session   backends.Session
	numLabels int64
}

// Roberta-family exports take no token type ids.
func (m *robertaClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
	)
}

func (m *robertaClassifier) close() error { return m.session.Close() }

type albertClassifier struct {
	session   backends.Session
	numLabels int64
}

func (m *albertClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
		typeTensor("token_type_ids", in.TokenTypeIDs, in.InputIDs),
	)
}

func (m *albertClassifier) close() error { return m.session.Close() }

type xlnetClassifier struct {
	session   backends.Session
	numLabels int64
}

func (m *xlnetClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
		typeTensor("token_type_ids", in.TokenTypeIDs, in.InputIDs),
	)
}

func (m *xlnetClassifier) close() error { return m.session.Close() }

type bartClassifier struct {
	session   backends.Session
	numLabels int64
}

// BART classifies from the decoder output, and cannot derive decoder inputs
// without token ids.
func (m *bartClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	if in.InputIDs == nil {
		return nil, fmt.Errorf("input_ids must be provided for BART models")
	}
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
	)
}

func (m *bartClassifier) close() error { return m.session.Close() }

type reformerClassifier struct {
	session   backends.Session
	numLabels int64
}

func (m *reformerClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
	)
}

func (m *reformerClassifier) close() error { return m.session.Close() }

type longformerClassifier struct {
	session   backends.Session
	numLabels int64
}

// Longformer additionally takes a global attention mask; for classification
// only the leading token attends globally.
func (m *longformerClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		maskTensor("attention_mask", in.AttentionMask, in.InputIDs),
		globalAttentionTensor("global_attention_mask", in.InputIDs),
	)
}

func (m *longformerClassifier) close() error { return m.session.Close() }

type fnetClassifier struct {
	session   backends.Session
	numLabels int64
}

// FNet mixes tokens with Fourier transforms and has no attention mask input.
func (m *fnetClassifier) forwardT(in ForwardInput) ([][]float32, error) {
	return runForLogits(m.session, m.numLabels,
		idsTensor("input_ids", in.InputIDs),
		typeTensor("token_type_ids", in.TokenTypeIDs, in.InputIDs),
	)
}

func (m *fnetClassifier) close() error { return m.session.Close() }

// ---------------------------------------------------------------------------
// Shared tensor plumbing.
// ---------------------------------------------------------------------------

// batchShape returns (rows, cols) of a rectangular batch.
func batchShape(rows [][]int64) (int64, int64) {
	if len(rows) == 0 {
		return 0, 0
	}
	return int64(len(rows)), int64(len(rows[0]))
}

// flatten copies a rectangular [][]int64 into a flat row-major []int64.
func flatten(rows [][]int64) []int64 {
	if len(rows) == 0 {
		return nil
	}
	flat := make([]int64, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		flat = append(flat, row...)
	}
	return flat
}

// idsTensor wraps the token id batch as a named session input.
func idsTensor(name string, ids [][]int64) backends.NamedTensor {
	batch, seqLen := batchShape(ids)
	return backends.NamedTensor{
		Name:  name,
		Shape: []int64{batch, seqLen},
		Data:  flatten(ids),
	}
}

// maskTensor wraps the attention mask, defaulting to all-ones when absent.
func maskTensor(name string, mask, ids [][]int64) backends.NamedTensor {
	if mask != nil {
		return idsTensor(name, mask)
	}
	batch, seqLen := batchShape(ids)
	ones := make([]int64, batch*seqLen)
	for i := range ones {
		ones[i] = 1
	}
	return backends.NamedTensor{Name: name, Shape: []int64{batch, seqLen}, Data: ones}
}

// typeTensor wraps token type ids, defaulting to all-zeros when absent.
func typeTensor(name string, typeIDs, ids [][]int64) backends.NamedTensor {
	if typeIDs != nil {
		return idsTensor(name, typeIDs)
	}
	batch, seqLen := batchShape(ids)
	return backends.NamedTensor{Name: name, Shape: []int64{batch, seqLen}, Data: make([]int64, batch*seqLen)}
}

// globalAttentionTensor marks only the first token of each row for global
// attention.
func globalAttentionTensor(name string, ids [][]int64) backends.NamedTensor {
	batch, seqLen := batchShape(ids)
	global := make([]int64, batch*seqLen)
	for i := int64(0); i < batch; i++ {
		global[i*seqLen] = 1
	}
	return backends.NamedTensor{Name: name, Shape: []int64{batch, seqLen}, Data: global}
}

// runForLogits validates the batch, runs the session, and extracts the logits
// tensor from the session's richer output set.
func runForLogits(session backends.Session, numLabels int64, inputs ...backends.NamedTensor) ([][]float32, error) {
	if len(inputs) == 0 || len(inputs[0].Shape) < 2 || inputs[0].Shape[0] == 0 {
		return nil, fmt.Errorf("input_ids must be provided")
	}
	batch := inputs[0].Shape[0]

	outputs, err := session.Run(inputs)
	if err != nil {
		return nil, fmt.Errorf("running forward pass: %w", err)
	}
	return extractLogits(outputs, batch, numLabels)
}

// extractLogits pulls the [batch, numLabels] logits out of the session
// outputs. Classification exports name the tensor "logits"; when absent the
// first float32 output is taken.
func extractLogits(outputs []backends.NamedTensor, batch, numLabels int64) ([][]float32, error) {
	var data []float32
	for _, out := range outputs {
		if out.Name != "logits" {
			continue
		}
		var ok bool
		if data, ok = out.Data.([]float32); !ok {
			return nil, fmt.Errorf("logits output has unexpected type %T", out.Data)
		}
		break
	}
	if data == nil {
		for _, out := range outputs {
			if f, ok := out.Data.([]float32); ok {
				data = f
				break
			}
		}
	}
	if data == nil {
		return nil, fmt.Errorf("no logits tensor in model output")
	}
	if int64(len(data)) != batch*numLabels {
		return nil, fmt.Errorf("logits tensor has %d values, want %d (batch %d x labels %d)",
			len(data), batch*numLabels, batch, numLabels)
	}

	logits := make([][]float32, batch)
	for i := int64(0); i < batch; i++ {
		logits[i] = data[i*numLabels : (i+1)*numLabels]
	}
	return logits, nil
}
