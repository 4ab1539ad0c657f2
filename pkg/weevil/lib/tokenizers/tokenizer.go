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

// Package tokenizers loads HuggingFace and SentencePiece tokenizers and wraps
// them in a batch-encoding Adapter for classification pipelines.
//
// The package re-exports key types from go-huggingface/tokenizers so that
// callers don't need to import the upstream library directly.
package tokenizers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/go-huggingface/tokenizers"
	"github.com/gomlx/go-huggingface/tokenizers/api"
	"github.com/gomlx/go-huggingface/tokenizers/hftokenizer"
)

// Re-export key types from go-huggingface/tokenizers so pipeline code
// can import this package instead of the upstream library directly.
type (
	// Tokenizer is the full tokenizer interface with Encode/Decode/SpecialTokenID.
	Tokenizer = tokenizers.Tokenizer

	// Config holds HuggingFace's tokenizer_config.json contents.
	Config = api.Config

	// SpecialToken is an enum of commonly used special tokens.
	SpecialToken = api.SpecialToken
)

// Re-export special token constants.
const (
	TokBeginningOfSentence = api.TokBeginningOfSentence
	TokEndOfSentence       = api.TokEndOfSentence
	TokUnknown             = api.TokUnknown
	TokPad                 = api.TokPad
	TokMask                = api.TokMask
	TokClassification      = api.TokClassification
)

// LoadTokenizer loads a tokenizer from a vocabulary file path.
// It auto-detects the tokenizer type: tokenizer.json (HuggingFace Tokenizers
// format - BPE, WordPiece, etc.) or tokenizer.model (SentencePiece format).
// A tokenizer_config.json sitting next to the vocabulary file is picked up
// for special-token information when present.
func LoadTokenizer(vocabPath string) (Tokenizer, error) {
	if _, err := os.Stat(vocabPath); err != nil {
		return nil, fmt.Errorf("tokenizer vocabulary not found: %w", err)
	}

	// Load tokenizer_config.json for class information when present.
	var config *api.Config
	configPath := filepath.Join(filepath.Dir(vocabPath), "tokenizer_config.json")
	if _, err := os.Stat(configPath); err == nil {
		// Normalize the config to handle HuggingFace AddedToken objects
		normalizedContent, err := normalizeTokenizerConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("normalizing tokenizer config: %w", err)
		}
		config, err = api.ParseConfigContent(normalizedContent)
		if err != nil {
			return nil, fmt.Errorf("parsing tokenizer config: %w", err)
		}
		config.ConfigFile = configPath
	}

	switch filepath.Ext(vocabPath) {
	case ".json":
		tok, err := hftokenizer.NewFromFile(config, vocabPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", filepath.Base(vocabPath), err)
		}
		return tok, nil
	case ".model":
		proc, err := esentencepiece.NewProcessorFromPath(vocabPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", filepath.Base(vocabPath), err)
		}
		return &sentencepieceTokenizer{
			Processor: proc,
			Info:      proc.ModelInfo(),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported tokenizer vocabulary %s (expected tokenizer.json or tokenizer.model)", vocabPath)
	}
}

// MustLoadTokenizer loads a tokenizer and panics on error.
// Useful for tests and initialization code.
func MustLoadTokenizer(vocabPath string) Tokenizer {
	tok, err := LoadTokenizer(vocabPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load tokenizer: %v", err))
	}
	return tok
}

// sentencepieceTokenizer wraps esentencepiece.Processor to implement Tokenizer.
type sentencepieceTokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo
}

// Ensure sentencepieceTokenizer implements Tokenizer
var _ Tokenizer = (*sentencepieceTokenizer)(nil)

// Encode returns the text encoded into a sequence of token IDs.
func (t *sentencepieceTokenizer) Encode(text string) []int {
	tokens := t.Processor.Encode(text)
	result := make([]int, len(tokens))
	for i, tok := range tokens {
		result[i] = tok.ID
	}
	return result
}

// Decode returns the text from a sequence of token IDs.
func (t *sentencepieceTokenizer) Decode(ids []int) string {
	return t.Processor.Decode(ids)
}

// SpecialTokenID returns the ID for the given special token, or an error if unknown.
func (t *sentencepieceTokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return t.Info.UnknownID, nil
	case api.TokPad:
		return t.Info.PadID, nil
	case api.TokBeginningOfSentence:
		return t.Info.BeginningOfSentenceID, nil
	case api.TokEndOfSentence:
		return t.Info.EndOfSentenceID, nil
	default:
		return 0, fmt.Errorf("unknown special token: %s (%d)", token, int(token))
	}
}

// normalizeTokenizerConfig reads a tokenizer_config.json file and normalizes
// HuggingFace AddedToken objects to plain strings.
// Some HuggingFace models use {"__type": "AddedToken", "content": "<s>"} format
// instead of plain strings for special tokens.
func normalizeTokenizerConfig(configPath string) ([]byte, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Parse as generic JSON
	var raw map[string]any
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parsing config JSON: %w", err)
	}

	// Token fields that might be AddedToken objects
	tokenFields := []string{
		"bos_token", "eos_token", "pad_token", "unk_token",
		"cls_token", "sep_token", "mask_token",
	}

	// Normalize each token field
	for _, field := range tokenFields {
		if val, ok := raw[field]; ok {
			raw[field] = extractTokenContent(val)
		}
	}

	// Re-serialize to JSON
	return json.Marshal(raw)
}

// extractTokenContent extracts the token string from either a plain string
// or a HuggingFace AddedToken object.
func extractTokenContent(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		// HuggingFace AddedToken format: {"__type": "AddedToken", "content": "<s>", ...}
		if content, ok := val["content"].(string); ok {
			return content
		}
	}
	return ""
}
