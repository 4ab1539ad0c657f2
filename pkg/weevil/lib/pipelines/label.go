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

// Label is one classification result: a class assignment for one input text.
type Label struct {
	// Text is the human-readable class name from the model's label mapping.
	Text string `json:"text"`
	// Score is the confidence in [0, 1]: a softmax probability for
	// single-label prediction, an independent sigmoid activation for
	// multi-label prediction.
	Score float64 `json:"score"`
	// ID is the numeric class index the score was computed for.
	ID int64 `json:"id"`
	// Sentence is the index of the input text this label belongs to.
	Sentence int `json:"sentence"`
}
