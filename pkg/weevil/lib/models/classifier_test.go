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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antflydb/weevil/pkg/weevil/lib/backends"
)

// fakeSession records the inputs of the last Run call and plays back canned
// outputs.
type fakeSession struct {
	outputs    []backends.NamedTensor
	lastInputs []backends.NamedTensor
	closed     bool
}

func (s *fakeSession) Run(inputs []backends.NamedTensor) ([]backends.NamedTensor, error) {
	s.lastInputs = inputs
	return s.outputs, nil
}

func (s *fakeSession) InputInfo() []backends.TensorInfo  { return nil }
func (s *fakeSession) OutputInfo() []backends.TensorInfo { return nil }
func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeFactory struct {
	session  *fakeSession
	err      error
	sessions int
}

func (f *fakeFactory) CreateSession(modelPath string, opts ...backends.SessionOption) (backends.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sessions++
	return f.session, nil
}

func (f *fakeFactory) Backend() backends.BackendType { return backends.BackendONNX }

// logitsOutput builds a flat "logits" output tensor for a batch.
func logitsOutput(batch, numLabels int64, values []float32) []backends.NamedTensor {
	return []backends.NamedTensor{{
		Name:  "logits",
		Shape: []int64{batch, numLabels},
		Data:  values,
	}}
}

func bertTestConfig(t *testing.T, numLabels int) *BertConfig {
	t.Helper()
	cfg := &BertConfig{
		VocabSize:             30522,
		HiddenSize:            768,
		MaxPositionEmbeddings: 512,
		TypeVocabSize:         2,
	}
	cfg.ID2Label = map[string]string{}
	for i := 0; i < numLabels; i++ {
		cfg.ID2Label[string(rune('0'+i))] = "label"
	}
	require.NoError(t, cfg.compile())
	return cfg
}

func TestNewSequenceClassifierConfigMismatch(t *testing.T) {
	// Every architecture rejects a config of the wrong concrete type, and no
	// session is created when validation fails.
	wrongConfigs := map[ModelType]Config{
		Bert:       &XLNetConfig{},
		Deberta:    &BertConfig{},
		DebertaV2:  &BertConfig{},
		DistilBert: &BertConfig{},
		MobileBert: &BertConfig{},
		Roberta:    &DistilBertConfig{},
		XLMRoberta: &DistilBertConfig{},
		Albert:     &BertConfig{},
		XLNet:      &BertConfig{},
		Bart:       &BertConfig{},
		Reformer:   &BertConfig{},
		Longformer: &BertConfig{},
		FNet:       &BertConfig{},
	}
	require.Len(t, wrongConfigs, len(ModelTypes()))

	for modelType, cfg := range wrongConfigs {
		t.Run(string(modelType), func(t *testing.T) {
			factory := &fakeFactory{session: &fakeSession{}}
			_, err := NewSequenceClassifier(modelType, "model.onnx", cfg, factory)

			var mismatch *ConfigMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Equal(t, modelType, mismatch.Variant)
			assert.Zero(t, factory.sessions, "session must not be created on config mismatch")
		})
	}
}

func TestNewSequenceClassifierUnsupportedType(t *testing.T) {
	_, err := NewSequenceClassifier(ModelType("gpt2"), "model.onnx", &BertConfig{}, &fakeFactory{session: &fakeSession{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}

func TestXLNetRejectsIndivisibleHeads(t *testing.T) {
	cfg := &XLNetConfig{DModel: 10, NHead: 3}
	factory := &fakeFactory{session: &fakeSession{}}

	_, err := NewSequenceClassifier(XLNet, "model.onnx", cfg, factory)

	var construction *BackendConstructionError
	require.ErrorAs(t, err, &construction)
	assert.Equal(t, XLNet, construction.Variant)
	assert.Zero(t, factory.sessions)

	cfg.NHead = 2
	_, err = NewSequenceClassifier(XLNet, "model.onnx", cfg, factory)
	require.NoError(t, err)
}

func TestReformerRejectsMismatchedAxialDims(t *testing.T) {
	cfg := &ReformerConfig{HiddenSize: 6, AxialPosEmbdsDim: []int{2, 3}}
	factory := &fakeFactory{session: &fakeSession{}}

	_, err := NewSequenceClassifier(Reformer, "model.onnx", cfg, factory)

	var construction *BackendConstructionError
	require.ErrorAs(t, err, &construction)
	assert.Equal(t, Reformer, construction.Variant)

	cfg.AxialPosEmbdsDim = []int{2, 4}
	_, err = NewSequenceClassifier(Reformer, "model.onnx", cfg, factory)
	require.NoError(t, err)
}

func TestNewSequenceClassifierSessionError(t *testing.T) {
	factory := &fakeFactory{err: errors.New("file not found")}
	_, err := NewSequenceClassifier(Bert, "missing.onnx", bertTestConfig(t, 2), factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.onnx")
}

func TestForwardTRejectsTraining(t *testing.T) {
	factory := &fakeFactory{session: &fakeSession{}}
	classifier, err := NewSequenceClassifier(Bert, "model.onnx", bertTestConfig(t, 2), factory)
	require.NoError(t, err)

	_, err = classifier.ForwardT(ForwardInput{InputIDs: [][]int64{{1, 2}}}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inference-only")
}

func TestForwardTRejectsInputEmbeds(t *testing.T) {
	factory := &fakeFactory{session: &fakeSession{}}
	classifier, err := NewSequenceClassifier(Bert, "model.onnx", bertTestConfig(t, 2), factory)
	require.NoError(t, err)

	_, err = classifier.ForwardT(ForwardInput{InputEmbeds: [][][]float32{{{0.1}}}}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input embeddings")
}

func TestBartRequiresInputIDs(t *testing.T) {
	session := &fakeSession{}
	factory := &fakeFactory{session: session}
	cfg := &BartConfig{}
	classifier, err := NewSequenceClassifier(Bart, "model.onnx", cfg, factory)
	require.NoError(t, err)

	_, err = classifier.ForwardT(ForwardInput{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input_ids must be provided for BART")
}

func TestForwardTRejectsMissingInputIDs(t *testing.T) {
	// Absent input ids must error before the session runs, not pass a
	// zero-row batch through it.
	session := &fakeSession{}
	factory := &fakeFactory{session: session}
	classifier, err := NewSequenceClassifier(Bert, "model.onnx", bertTestConfig(t, 2), factory)
	require.NoError(t, err)

	for name, ids := range map[string][][]int64{"nil": nil, "empty": {}} {
		t.Run(name, func(t *testing.T) {
			_, err := classifier.ForwardT(ForwardInput{InputIDs: ids}, false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "input_ids must be provided")
			assert.Nil(t, session.lastInputs, "session must not run without input ids")
		})
	}
}

func TestBertSynthesizesDefaultInputs(t *testing.T) {
	session := &fakeSession{outputs: logitsOutput(2, 2, []float32{1, 2, 3, 4})}
	factory := &fakeFactory{session: session}
	classifier, err := NewSequenceClassifier(Bert, "model.onnx", bertTestConfig(t, 2), factory)
	require.NoError(t, err)

	logits, err := classifier.ForwardT(ForwardInput{
		InputIDs: [][]int64{{101, 2023}, {101, 4937}},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, logits)

	require.Len(t, session.lastInputs, 3)
	byName := map[string]backends.NamedTensor{}
	for _, in := range session.lastInputs {
		byName[in.Name] = in
	}

	assert.Equal(t, []int64{101, 2023, 101, 4937}, byName["input_ids"].Data)
	assert.Equal(t, []int64{1, 1, 1, 1}, byName["attention_mask"].Data, "missing mask defaults to ones")
	assert.Equal(t, []int64{0, 0, 0, 0}, byName["token_type_ids"].Data, "missing type ids default to zeros")
	assert.Equal(t, []int64{2, 2}, byName["input_ids"].Shape)
}

func TestDistilBertOmitsTokenTypeIDs(t *testing.T) {
	session := &fakeSession{outputs: logitsOutput(1, 2, []float32{0.5, -0.5})}
	factory := &fakeFactory{session: session}
	cfg := &DistilBertConfig{}
	cfg.ID2Label = map[string]string{"0": "neg", "1": "pos"}
	require.NoError(t, cfg.compile())

	classifier, err := NewSequenceClassifier(DistilBert, "model.onnx", cfg, factory)
	require.NoError(t, err)

	_, err = classifier.ForwardT(ForwardInput{InputIDs: [][]int64{{101, 2023}}}, false)
	require.NoError(t, err)

	require.Len(t, session.lastInputs, 2)
	assert.Equal(t, "input_ids", session.lastInputs[0].Name)
	assert.Equal(t, "attention_mask", session.lastInputs[1].Name)
}

func TestLongformerMarksLeadingTokenGlobal(t *testing.T) {
	session := &fakeSession{outputs: logitsOutput(2, 2, []float32{1, 2, 3, 4})}
	factory := &fakeFactory{session: session}
	cfg := &LongformerConfig{AttentionWindow: []int{512}}
	cfg.ID2Label = map[string]string{"0": "a", "1": "b"}
	require.NoError(t, cfg.compile())

	classifier, err := NewSequenceClassifier(Longformer, "model.onnx", cfg, factory)
	require.NoError(t, err)

	_, err = classifier.ForwardT(ForwardInput{InputIDs: [][]int64{{0, 5, 6}, {0, 7, 8}}}, false)
	require.NoError(t, err)

	require.Len(t, session.lastInputs, 3)
	global := session.lastInputs[2]
	assert.Equal(t, "global_attention_mask", global.Name)
	assert.Equal(t, []int64{1, 0, 0, 1, 0, 0}, global.Data)
}

func TestExtractLogitsPrefersNamedTensor(t *testing.T) {
	outputs := []backends.NamedTensor{
		{Name: "hidden_states", Shape: []int64{1, 4}, Data: []float32{9, 9, 9, 9}},
		{Name: "logits", Shape: []int64{1, 2}, Data: []float32{1, 2}},
	}
	logits, err := extractLogits(outputs, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}}, logits)
}

func TestExtractLogitsFallsBackToFirstFloat32(t *testing.T) {
	outputs := []backends.NamedTensor{
		{Name: "ids", Shape: []int64{2}, Data: []int64{1, 2}},
		{Name: "scores", Shape: []int64{1, 2}, Data: []float32{3, 4}},
	}
	logits, err := extractLogits(outputs, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 4}}, logits)
}

func TestExtractLogitsShapeMismatch(t *testing.T) {
	outputs := logitsOutput(2, 3, []float32{1, 2, 3, 4})
	_, err := extractLogits(outputs, 2, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 6")
}

func TestExtractLogitsMissing(t *testing.T) {
	outputs := []backends.NamedTensor{{Name: "ids", Data: []int64{1}}}
	_, err := extractLogits(outputs, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no logits tensor")
}

func TestCloseReleasesSession(t *testing.T) {
	session := &fakeSession{}
	factory := &fakeFactory{session: session}
	classifier, err := NewSequenceClassifier(Roberta, "model.onnx", bertTestConfig(t, 2), factory)
	require.NoError(t, err)

	require.NoError(t, classifier.Close())
	assert.True(t, session.closed)
}
