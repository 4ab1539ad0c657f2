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

import "fmt"

// ConfigMismatchError is returned when the supplied configuration's concrete
// type does not match what the requested architecture requires. Construction
// fails; there is no coercion between architecture configs.
type ConfigMismatchError struct {
	// Expected is the config type the architecture requires, e.g. "BertConfig".
	Expected string
	// Variant is the architecture that was requested.
	Variant ModelType
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("expected config kind %s for model type %s", e.Expected, e.Variant)
}

// BackendConstructionError is returned when an architecture rejects its own
// hyperparameters, e.g. a head/dimension combination that cannot be realized.
type BackendConstructionError struct {
	Variant ModelType
	Reason  string
}

func (e *BackendConstructionError) Error() string {
	return fmt.Sprintf("constructing %s classifier: %s", e.Variant, e.Reason)
}
