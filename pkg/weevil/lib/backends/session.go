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

// Package backends provides the low-level inference session abstraction the
// model layer is built on. A Session runs tensor computations without any
// knowledge of model semantics; the per-architecture classifiers in the
// models package decide which tensors to feed it.
package backends

import "os"

// Session represents a low-level inference session that can run tensor
// computations. This is the primitive interface backends provide - it handles
// tensor I/O without knowledge of model semantics.
type Session interface {
	// Run executes the session with the given named inputs.
	// Returns named outputs as tensors.
	Run(inputs []NamedTensor) ([]NamedTensor, error)

	// InputInfo returns metadata about expected inputs.
	InputInfo() []TensorInfo

	// OutputInfo returns metadata about outputs.
	OutputInfo() []TensorInfo

	// Close releases resources associated with the session.
	Close() error
}

// NamedTensor associates a name with tensor data.
type NamedTensor struct {
	Name  string
	Shape []int64
	Data  interface{} // []float32, []int64, []int32, etc.
}

// TensorInfo describes a tensor's metadata.
type TensorInfo struct {
	Name     string
	Shape    []int64  // -1 for dynamic dimensions
	DataType DataType // float32, int64, etc.
}

// DataType represents tensor element types.
type DataType string

const (
	DataTypeFloat32 DataType = "float32"
	DataTypeFloat16 DataType = "float16"
	DataTypeInt64   DataType = "int64"
	DataTypeInt32   DataType = "int32"
	DataTypeBool    DataType = "bool"
)

// BackendType identifies a session implementation.
type BackendType string

const (
	// BackendONNX is the ONNX Runtime backend (requires the onnx build tag).
	BackendONNX BackendType = "onnx"
)

// SessionFactory creates sessions from model files.
// Each backend implements this to provide its session creation mechanism.
type SessionFactory interface {
	// CreateSession creates a session from a model file (e.g., ONNX file).
	CreateSession(modelPath string, opts ...SessionOption) (Session, error)

	// Backend returns the backend type this factory uses.
	Backend() BackendType
}

// GPUMode controls GPU acceleration for session creation.
type GPUMode string

const (
	GPUModeAuto GPUMode = "auto"
	GPUModeCuda GPUMode = "cuda"
	GPUModeCPU  GPUMode = "cpu"
)

// ShouldUseGPU resolves a GPUMode to a concrete decision.
// Auto mode enables CUDA only when CUDA devices are visible in the environment.
func ShouldUseGPU(mode GPUMode) bool {
	switch mode {
	case GPUModeCuda:
		return true
	case GPUModeCPU:
		return false
	default:
		visible := os.Getenv("CUDA_VISIBLE_DEVICES")
		return visible != "" && visible != "-1"
	}
}

// SessionOption configures session creation.
type SessionOption func(*SessionConfig)

// SessionConfig holds configuration for session creation.
type SessionConfig struct {
	// NumThreads for inference (0 = auto)
	NumThreads int

	// GPUMode controls GPU acceleration
	GPUMode GPUMode

	// GraphOptimizationLevel for ONNX (0-3)
	GraphOptimizationLevel int
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		NumThreads:             0,
		GPUMode:                GPUModeAuto,
		GraphOptimizationLevel: 3,
	}
}

// WithSessionThreads sets the number of threads.
func WithSessionThreads(n int) SessionOption {
	return func(c *SessionConfig) {
		c.NumThreads = n
	}
}

// WithSessionGPUMode sets the GPU mode.
func WithSessionGPUMode(mode GPUMode) SessionOption {
	return func(c *SessionConfig) {
		c.GPUMode = mode
	}
}

// ApplySessionOptions applies options to a config.
func ApplySessionOptions(opts ...SessionOption) *SessionConfig {
	cfg := DefaultSessionConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
