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

import "math"

// Softmax converts one row of logits into a probability distribution.
// Scores are computed in float64 so downstream consumers keep full precision.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	// Subtract the max for numerical stability.
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v - maxVal))
		sum += probs[i]
	}

	if sum > 0 {
		for i := range probs {
			probs[i] /= sum
		}
	}
	return probs
}

// Sigmoid maps each logit through the logistic function independently.
func Sigmoid(logits []float32) []float64 {
	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = 1.0 / (1.0 + math.Exp(-float64(v)))
	}
	return probs
}

// Argmax returns the index of the greatest value. Ties keep the lowest index.
func Argmax(probs []float64) int64 {
	best := int64(0)
	for i, v := range probs {
		if v > probs[best] {
			best = int64(i)
		}
	}
	return best
}
