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
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the architecture-tagged model configuration. Exactly one concrete
// config type exists per architecture; the classifier constructor validates
// that the concrete type matches the requested ModelType.
type Config interface {
	// Type returns the architecture this config belongs to.
	Type() ModelType
	// NumLabels returns the number of classification labels.
	NumLabels() int64
	// MaxLen returns the maximum sequence length, or 0 for unbounded.
	MaxLen() int
	// LabelMapping returns the id -> label text mapping. It is total over
	// 0..NumLabels-1 for a well-formed config.
	LabelMapping() map[int64]string
}

// configCore holds the fields shared by every architecture's config.json.
type configCore struct {
	ID2Label map[string]string `json:"id2label"`

	labels map[int64]string
}

// compile parses the string-keyed id2label mapping into an int64-keyed one.
func (c *configCore) compile() error {
	c.labels = make(map[int64]string, len(c.ID2Label))
	for key, text := range c.ID2Label {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing id2label key %q: %w", key, err)
		}
		c.labels[id] = text
	}
	return nil
}

func (c *configCore) NumLabels() int64 {
	return int64(len(c.labels))
}

func (c *configCore) LabelMapping() map[int64]string {
	return c.labels
}

// BertConfig configures BERT models and the Roberta/XLM-Roberta family,
// which share its hyperparameter layout.
type BertConfig struct {
	configCore
	VocabSize             int `json:"vocab_size"`
	HiddenSize            int `json:"hidden_size"`
	NumHiddenLayers       int `json:"num_hidden_layers"`
	NumAttentionHeads     int `json:"num_attention_heads"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
	TypeVocabSize         int `json:"type_vocab_size"`
}

func (c *BertConfig) Type() ModelType { return Bert }
func (c *BertConfig) MaxLen() int     { return c.MaxPositionEmbeddings }

// DebertaConfig configures DeBERTa models.
type DebertaConfig struct {
	configCore
	VocabSize             int  `json:"vocab_size"`
	HiddenSize            int  `json:"hidden_size"`
	NumAttentionHeads     int  `json:"num_attention_heads"`
	MaxPositionEmbeddings int  `json:"max_position_embeddings"`
	RelativeAttention     bool `json:"relative_attention"`
}

func (c *DebertaConfig) Type() ModelType { return Deberta }
func (c *DebertaConfig) MaxLen() int     { return c.MaxPositionEmbeddings }

// DebertaV2Config configures DeBERTa V2/V3 models.
type DebertaV2Config struct {
	configCore
	VocabSize             int `json:"vocab_size"`
	HiddenSize            int `json:"hidden_size"`
	NumAttentionHeads     int `json:"num_attention_heads"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
}

func (c *DebertaV2Config) Type() ModelType { return DebertaV2 }
func (c *DebertaV2Config) MaxLen() int     { return c.MaxPositionEmbeddings }

// DistilBertConfig configures DistilBERT models, which use their own
// hyperparameter names (dim/n_heads) and carry no token type vocabulary.
type DistilBertConfig struct {
	configCore
	VocabSize             int `json:"vocab_size"`
	Dim                   int `json:"dim"`
	NLayers               int `json:"n_layers"`
	NHeads                int `json:"n_heads"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
}

func (c *DistilBertConfig) Type() ModelType { return DistilBert }
func (c *DistilBertConfig) MaxLen() int     { return c.MaxPositionEmbeddings }

// MobileBertConfig configures MobileBERT models.
type MobileBertConfig struct {
	configCore
	VocabSize             int `json:"vocab_size"`
	HiddenSize            int `json:"hidden_size"`
	IntraBottleneckSize   int `json:"intra_bottleneck_size"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
}

func (c *MobileBertConfig) Type() ModelType { return MobileBert }
func (c *MobileBertConfig) MaxLen() int     { return c.MaxPositionEmbeddings }

// AlbertConfig configures ALBERT models.
type AlbertConfig struct {
	configCore
	VocabSize             int `json:"vocab_size"`
	HiddenSize            int `json:"hidden_size"`
	EmbeddingSize         int `json:"embedding_size"`
	NumAttentionHeads     int `json:"num_attention_heads"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
}

func (c *AlbertConfig) Type() ModelType { return Albert }
func (c *AlbertConfig) MaxLen() int     { return c.MaxPositionEmbeddings }

// XLNetConfig configures XLNet models. XLNet has no positional embedding
// table, so it imposes no maximum sequence length.
type XLNetConfig struct {
	configCore
	VocabSize int `json:"vocab_size"`
	DModel    int `json:"d_model"`
	NHead     int `json:"n_head"`
	NLayer    int `json:"n_layer"`
}

func (c *XLNetConfig) Type() ModelType { return XLNet }
func (c *XLNetConfig) MaxLen() int     { return 0 }

// BartConfig configures BART models.
type BartConfig struct {
	configCore
	VocabSize             int `json:"vocab_size"`
	DModel                int `json:"d_model"`
	EncoderAttentionHeads int `json:"encoder_attention_heads"`
	DecoderAttentionHeads int `json:"decoder_attention_heads"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
}

func (c *BartConfig) Type() ModelType { return Bart }
func (c *BartConfig) MaxLen() int     { return c.MaxPositionEmbeddings }

// ReformerConfig configures Reformer models. Axial position embedding
// dimensions must sum to the hidden size; the constructor enforces this.
type ReformerConfig struct {
	configCore
	VocabSize             int   `json:"vocab_size"`
	HiddenSize            int   `json:"hidden_size"`
	NumAttentionHeads     int   `json:"num_attention_heads"`
	AttentionHeadSize     int   `json:"attention_head_size"`
	AxialPosEmbdsDim      []int `json:"axial_pos_embds_dim"`
	MaxPositionEmbeddings int   `json:"max_position_embeddings"`
}

func (c *ReformerConfig) Type() ModelType { return Reformer }
func (c *ReformerConfig) MaxLen() int     { return c.MaxPositionEmbeddings }

// LongformerConfig configures Longformer models.
type LongformerConfig struct {
	configCore
	VocabSize             int   `json:"vocab_size"`
	HiddenSize            int   `json:"hidden_size"`
	NumAttentionHeads     int   `json:"num_attention_heads"`
	AttentionWindow       []int `json:"attention_window"`
	MaxPositionEmbeddings int   `json:"max_position_embeddings"`
}

func (c *LongformerConfig) Type() ModelType { return Longformer }
func (c *LongformerConfig) MaxLen() int     { return c.MaxPositionEmbeddings }

// FNetConfig configures FNet models (Fourier token mixing, no attention).
type FNetConfig struct {
	configCore
	VocabSize             int `json:"vocab_size"`
	HiddenSize            int `json:"hidden_size"`
	NumHiddenLayers       int `json:"num_hidden_layers"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
	TypeVocabSize         int `json:"type_vocab_size"`
}

func (c *FNetConfig) Type() ModelType { return FNet }
func (c *FNetConfig) MaxLen() int     { return c.MaxPositionEmbeddings }

// LoadConfig parses a model config.json into the architecture's config type.
// Roberta and XLM-Roberta share BertConfig, mirroring their shared layout.
func LoadConfig(modelType ModelType, path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model config: %w", err)
	}

	var cfg interface {
		Config
		compile() error
	}
	switch modelType {
	case Bert, Roberta, XLMRoberta:
		cfg = &BertConfig{}
	case Deberta:
		cfg = &DebertaConfig{}
	case DebertaV2:
		cfg = &DebertaV2Config{}
	case DistilBert:
		cfg = &DistilBertConfig{}
	case MobileBert:
		cfg = &MobileBertConfig{}
	case Albert:
		cfg = &AlbertConfig{}
	case XLNet:
		cfg = &XLNetConfig{}
	case Bart:
		cfg = &BartConfig{}
	case Reformer:
		cfg = &ReformerConfig{}
	case Longformer:
		cfg = &LongformerConfig{}
	case FNet:
		cfg = &FNetConfig{}
	default:
		return nil, fmt.Errorf("no configuration defined for model type %s", modelType)
	}

	if err := json.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parsing model config %s: %w", path, err)
	}
	if err := cfg.compile(); err != nil {
		return nil, fmt.Errorf("parsing model config %s: %w", path, err)
	}
	return cfg, nil
}
