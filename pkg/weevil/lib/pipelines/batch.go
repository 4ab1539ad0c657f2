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

	"github.com/antflydb/weevil/pkg/weevil/lib/tokenizers"
)

// TokenizationError reports a failure while turning texts into a model batch.
type TokenizationError struct {
	Reason string
}

func (e *TokenizationError) Error() string {
	return fmt.Sprintf("tokenization failed: %s", e.Reason)
}

// batch is a rectangular model input built from ragged per-text encodings.
type batch struct {
	// inputIDs has one row per text, every row padded to the longest row.
	inputIDs [][]int64
	// attentionMask is 1 over real tokens and 0 over padding.
	attentionMask [][]int64
}

// buildBatch pads the ragged encodings to the length of the longest row.
// The pad id is only required when at least one row actually needs padding,
// so tokenizers without a pad token still handle uniform-length batches.
func buildBatch(encoded []tokenizers.TokenizedInput, padID int64, hasPad bool) (*batch, error) {
	maxLen := 0
	for _, enc := range encoded {
		if len(enc.TokenIDs) > maxLen {
			maxLen = len(enc.TokenIDs)
		}
	}

	b := &batch{
		inputIDs:      make([][]int64, len(encoded)),
		attentionMask: make([][]int64, len(encoded)),
	}
	for i, enc := range encoded {
		if len(enc.TokenIDs) < maxLen && !hasPad {
			return nil, &TokenizationError{Reason: "batch requires padding but the tokenizer defines no pad token"}
		}
		row := make([]int64, maxLen)
		mask := make([]int64, maxLen)
		copy(row, enc.TokenIDs)
		for j := range row {
			if j < len(enc.TokenIDs) {
				mask[j] = 1
			} else {
				row[j] = padID
			}
		}
		b.inputIDs[i] = row
		b.attentionMask[i] = mask
	}
	return b, nil
}
