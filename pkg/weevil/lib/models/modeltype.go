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

// Package models holds the per-architecture sequence classification backends
// and the dispatch layer that routes a uniform forward-pass contract to the
// right one. The set of architectures is closed; adding one means adding a
// config struct, a classifier arm, and a case in the constructor.
package models

import "fmt"

// ModelType identifies one of the supported transformer architectures.
// Immutable once a pipeline is built.
type ModelType string

const (
	Bert       ModelType = "bert"
	Deberta    ModelType = "deberta"
	DebertaV2  ModelType = "deberta-v2"
	DistilBert ModelType = "distilbert"
	MobileBert ModelType = "mobilebert"
	Roberta    ModelType = "roberta"
	XLMRoberta ModelType = "xlm-roberta"
	Albert     ModelType = "albert"
	XLNet      ModelType = "xlnet"
	Bart       ModelType = "bart"
	Reformer   ModelType = "reformer"
	Longformer ModelType = "longformer"
	FNet       ModelType = "fnet"
)

// ModelTypes lists all supported architectures in a stable order.
func ModelTypes() []ModelType {
	return []ModelType{
		Bert, Deberta, DebertaV2, DistilBert, MobileBert,
		Roberta, XLMRoberta, Albert, XLNet, Bart,
		Reformer, Longformer, FNet,
	}
}

// ParseModelType converts the model_type string found in a HuggingFace
// config.json to a ModelType.
func ParseModelType(s string) (ModelType, error) {
	for _, mt := range ModelTypes() {
		if string(mt) == s {
			return mt, nil
		}
	}
	return "", fmt.Errorf("unsupported model type %q", s)
}
