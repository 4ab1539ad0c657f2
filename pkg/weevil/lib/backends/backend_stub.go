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

//go:build !onnx

package backends

import "fmt"

// stubSessionFactory is used when the binary is built without the onnx tag.
// Sessions cannot be created; pipeline construction fails with a clear error.
type stubSessionFactory struct{}

// NewSessionFactory returns a factory whose CreateSession always fails,
// directing the user to rebuild with the onnx tag.
func NewSessionFactory(gpuMode GPUMode) SessionFactory {
	return stubSessionFactory{}
}

func (stubSessionFactory) CreateSession(modelPath string, opts ...SessionOption) (Session, error) {
	return nil, fmt.Errorf("ONNX Runtime support not compiled in (rebuild with -tags onnx)")
}

func (stubSessionFactory) Backend() BackendType {
	return BackendONNX
}
