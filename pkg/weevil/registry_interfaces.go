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

package weevil

import (
	"github.com/antflydb/weevil/pkg/weevil/lib/classification"
)

// ClassifierRegistryInterface defines the interface for classifier model registries.
// This enables testing with mock implementations.
type ClassifierRegistryInterface interface {
	// Get retrieves a classifier by model name.
	Get(modelName string) (classification.Classifier, error)
	// List returns all available model names
	List() []string
	// Close shuts down the registry and releases resources
	Close() error
}

// Ensure concrete types implement the interfaces
var _ ClassifierRegistryInterface = (*ClassifierRegistry)(nil)
