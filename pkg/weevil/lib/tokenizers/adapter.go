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

package tokenizers

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TruncationStrategy selects how sequences exceeding the maximum length are cut.
type TruncationStrategy string

const (
	// TruncateLongestFirst removes tokens from the longest side first.
	// For a single (unpaired) sequence this truncates the trailing tokens.
	TruncateLongestFirst TruncationStrategy = "longest_first"
	// TruncateOnlyFirst truncates only the first sequence of a pair.
	TruncateOnlyFirst TruncationStrategy = "only_first"
	// TruncateNone disables truncation; over-length sequences pass through.
	TruncateNone TruncationStrategy = "do_not_truncate"
)

// TokenizedInput is the per-text output of batch encoding, before padding.
type TokenizedInput struct {
	// TokenIDs are the encoded token IDs, already truncated to the maximum length.
	TokenIDs []int64
	// Overflowing holds the tokens removed by truncation, in their original order.
	Overflowing []int64
}

// AdapterOptions control text normalization applied before encoding.
// These mirror the casing/accent/prefix-space switches classification models
// are trained with; a lower-cased model must see lower-cased input.
type AdapterOptions struct {
	// LowerCase lower-cases all input before encoding.
	LowerCase bool
	// StripAccents removes combining marks (é -> e) before encoding.
	StripAccents bool
	// AddPrefixSpace prepends a space to the input, needed for some
	// Roberta-style BPE vocabularies.
	AddPrefixSpace bool
}

// Adapter wraps a Tokenizer with the batch encoding, truncation, and
// normalization behavior the classification pipeline needs. It is immutable
// and safe for concurrent use if the wrapped Tokenizer is.
type Adapter struct {
	tok  Tokenizer
	opts AdapterOptions
}

// NewAdapter wraps an already-constructed tokenizer.
func NewAdapter(tok Tokenizer, opts AdapterOptions) *Adapter {
	return &Adapter{tok: tok, opts: opts}
}

// LoadAdapter loads the tokenizer at vocabPath (see LoadTokenizer) and wraps it.
func LoadAdapter(vocabPath string, opts AdapterOptions) (*Adapter, error) {
	tok, err := LoadTokenizer(vocabPath)
	if err != nil {
		return nil, err
	}
	return NewAdapter(tok, opts), nil
}

// PadID returns the padding token ID, or false if the underlying tokenizer
// does not define one.
func (a *Adapter) PadID() (int64, bool) {
	id, err := a.tok.SpecialTokenID(TokPad)
	if err != nil || id < 0 {
		return 0, false
	}
	return int64(id), true
}

// Decode returns the text for a sequence of token IDs.
func (a *Adapter) Decode(ids []int64) string {
	ints := make([]int, len(ids))
	for i, id := range ids {
		ints[i] = int(id)
	}
	return a.tok.Decode(ints)
}

// Encode tokenizes a single text, applying the adapter's normalization options
// and truncating to maxLength using the given strategy. maxLength <= 0 means
// unbounded.
func (a *Adapter) Encode(text string, maxLength int, strategy TruncationStrategy) TokenizedInput {
	ids := a.tok.Encode(a.normalize(text))
	tokenIDs := make([]int64, len(ids))
	for i, id := range ids {
		tokenIDs[i] = int64(id)
	}

	if strategy == TruncateNone || maxLength <= 0 || len(tokenIDs) <= maxLength {
		return TokenizedInput{TokenIDs: tokenIDs}
	}

	// Unpaired input: both strategies reduce to cutting the trailing tokens.
	return TokenizedInput{
		TokenIDs:    tokenIDs[:maxLength],
		Overflowing: tokenIDs[maxLength:],
	}
}

// EncodeBatch tokenizes each text independently. extraTokens reserves room
// in the length budget (e.g. for special tokens a model prepends later); it
// tightens the effective maximum length by that amount.
func (a *Adapter) EncodeBatch(texts []string, maxLength int, strategy TruncationStrategy, extraTokens int) []TokenizedInput {
	effectiveMax := maxLength
	if maxLength > 0 && extraTokens > 0 {
		effectiveMax = maxLength - extraTokens
		if effectiveMax < 1 {
			effectiveMax = 1
		}
	}

	encoded := make([]TokenizedInput, len(texts))
	for i, text := range texts {
		encoded[i] = a.Encode(text, effectiveMax, strategy)
	}
	return encoded
}

// normalize applies the adapter options to raw text before encoding.
func (a *Adapter) normalize(text string) string {
	if a.opts.LowerCase {
		text = strings.ToLower(text)
	}
	if a.opts.StripAccents {
		text = stripAccents(text)
	}
	if a.opts.AddPrefixSpace && !strings.HasPrefix(text, " ") {
		text = " " + text
	}
	return text
}

// stripAccents decomposes the text and drops combining marks.
func stripAccents(text string) string {
	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// String implements fmt.Stringer for debug logging.
func (a *Adapter) String() string {
	return fmt.Sprintf("tokenizers.Adapter{lower_case: %t, strip_accents: %t, add_prefix_space: %t}",
		a.opts.LowerCase, a.opts.StripAccents, a.opts.AddPrefixSpace)
}
