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

//go:build onnx

package backends

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXSessionFactory creates sessions backed by ONNX Runtime.
//
// Runtime Requirements:
//   - Set LD_LIBRARY_PATH before running:
//     export LD_LIBRARY_PATH=/path/to/onnxruntime/lib
//   - For CUDA: export LD_LIBRARY_PATH=/path/to/onnxruntime/lib:/usr/local/cuda/lib64
//
// Build Requirements:
//   - CGO must be enabled (CGO_ENABLED=1)
//   - built with the onnx build tag
type ONNXSessionFactory struct {
	gpuMode GPUMode

	initializedOnce sync.Once
	initErr         error
}

// NewSessionFactory returns the ONNX Runtime session factory.
func NewSessionFactory(gpuMode GPUMode) SessionFactory {
	return &ONNXSessionFactory{gpuMode: gpuMode}
}

func (f *ONNXSessionFactory) Backend() BackendType {
	return BackendONNX
}

// initONNX initializes the ONNX Runtime library once per process.
func (f *ONNXSessionFactory) initONNX() error {
	f.initializedOnce.Do(func() {
		if libPath := getOnnxLibraryPath(); libPath != "" {
			ort.SetSharedLibraryPath(filepath.Join(libPath, getOnnxLibraryName()))
		}
		if !ort.IsInitialized() {
			f.initErr = ort.InitializeEnvironment()
		}
	})
	return f.initErr
}

// CreateSession opens an ONNX model file and prepares a session around it.
// Input and output names are read from the model itself.
func (f *ONNXSessionFactory) CreateSession(modelPath string, opts ...SessionOption) (Session, error) {
	if err := f.initONNX(); err != nil {
		return nil, fmt.Errorf("initializing ONNX Runtime: %w", err)
	}

	cfg := ApplySessionOptions(opts...)

	// Get input/output info from the model
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("getting model info: %w", err)
	}

	inputNames := make([]string, len(inputs))
	inputInfo := make([]TensorInfo, len(inputs))
	for i, info := range inputs {
		inputNames[i] = info.Name
		inputInfo[i] = TensorInfo{
			Name:     info.Name,
			Shape:    info.Dimensions,
			DataType: onnxDataType(info.DataType),
		}
	}

	outputNames := make([]string, len(outputs))
	outputInfo := make([]TensorInfo, len(outputs))
	for i, info := range outputs {
		outputNames[i] = info.Name
		outputInfo[i] = TensorInfo{
			Name:     info.Name,
			Shape:    info.Dimensions,
			DataType: onnxDataType(info.DataType),
		}
	}

	// Create session options
	sessionOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}

	// Configure number of threads
	if cfg.NumThreads > 0 {
		if err := sessionOpts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			sessionOpts.Destroy()
			return nil, fmt.Errorf("setting thread count: %w", err)
		}
	}

	// Enable CUDA if requested and available
	gpuMode := cfg.GPUMode
	if gpuMode == "" || gpuMode == GPUModeAuto {
		gpuMode = f.gpuMode
	}
	if ShouldUseGPU(gpuMode) {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err == nil {
			if err := sessionOpts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
				// CUDA not available, fall back to CPU
				cudaOpts.Destroy()
			} else {
				defer cudaOpts.Destroy()
			}
		}
	}

	// Create the session
	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, sessionOpts)
	if err != nil {
		sessionOpts.Destroy()
		return nil, fmt.Errorf("creating ONNX session: %w", err)
	}

	return &onnxSession{
		session:     session,
		sessionOpts: sessionOpts,
		inputInfo:   inputInfo,
		outputInfo:  outputInfo,
	}, nil
}

// getOnnxLibraryPath returns the directory containing libonnxruntime.so from environment.
// Checks ONNXRUNTIME_ROOT first, then LD_LIBRARY_PATH.
func getOnnxLibraryPath() string {
	platform := runtime.GOOS + "-" + runtime.GOARCH

	// Check ONNXRUNTIME_ROOT (set by Makefile)
	if root := os.Getenv("ONNXRUNTIME_ROOT"); root != "" {
		// Try platform-specific path first
		platformDir := filepath.Join(root, platform, "lib")
		if _, err := os.Stat(filepath.Join(platformDir, getOnnxLibraryName())); err == nil {
			return platformDir
		}
		// Try direct lib path
		directDir := filepath.Join(root, "lib")
		if _, err := os.Stat(filepath.Join(directDir, getOnnxLibraryName())); err == nil {
			return directDir
		}
	}

	// Check LD_LIBRARY_PATH
	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		// LD_LIBRARY_PATH can have multiple paths separated by ':'
		for _, dir := range filepath.SplitList(ldPath) {
			if _, err := os.Stat(filepath.Join(dir, getOnnxLibraryName())); err == nil {
				return dir
			}
		}
	}

	return ""
}

// getOnnxLibraryName returns the platform-specific library name.
func getOnnxLibraryName() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

// onnxDataType converts ONNX data type to our DataType.
func onnxDataType(dt ort.TensorElementDataType) DataType {
	switch dt {
	case ort.TensorElementDataTypeFloat:
		return DataTypeFloat32
	case ort.TensorElementDataTypeInt64:
		return DataTypeInt64
	case ort.TensorElementDataTypeInt32:
		return DataTypeInt32
	case ort.TensorElementDataTypeBool:
		return DataTypeBool
	default:
		return DataTypeFloat32
	}
}

// onnxSession implements Session for ONNX Runtime.
type onnxSession struct {
	session     *ort.DynamicAdvancedSession
	sessionOpts *ort.SessionOptions
	inputInfo   []TensorInfo
	outputInfo  []TensorInfo
}

func (s *onnxSession) Run(inputs []NamedTensor) ([]NamedTensor, error) {
	if s.session == nil {
		return nil, fmt.Errorf("session is closed")
	}

	// Convert inputs to ONNX tensors
	ortInputs := make([]ort.Value, len(inputs))
	for i, input := range inputs {
		tensor, err := createOrtTensor(input)
		if err != nil {
			// Clean up already created tensors
			for j := 0; j < i; j++ {
				if ortInputs[j] != nil {
					ortInputs[j].Destroy()
				}
			}
			return nil, fmt.Errorf("creating input tensor %s: %w", input.Name, err)
		}
		ortInputs[i] = tensor
	}
	defer func() {
		for _, t := range ortInputs {
			if t != nil {
				t.Destroy()
			}
		}
	}()

	// Run inference
	ortOutputs := make([]ort.Value, len(s.outputInfo))
	if err := s.session.Run(ortInputs, ortOutputs); err != nil {
		return nil, fmt.Errorf("running ONNX session: %w", err)
	}
	defer func() {
		for _, t := range ortOutputs {
			if t != nil {
				t.Destroy()
			}
		}
	}()

	// Convert outputs to NamedTensors
	outputs := make([]NamedTensor, len(ortOutputs))
	for i, ortOutput := range ortOutputs {
		if ortOutput == nil {
			continue
		}
		output, err := extractOrtTensor(ortOutput, s.outputInfo[i].Name)
		if err != nil {
			return nil, fmt.Errorf("extracting output tensor %s: %w", s.outputInfo[i].Name, err)
		}
		outputs[i] = output
	}

	return outputs, nil
}

func (s *onnxSession) InputInfo() []TensorInfo {
	return s.inputInfo
}

func (s *onnxSession) OutputInfo() []TensorInfo {
	return s.outputInfo
}

func (s *onnxSession) Close() error {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.sessionOpts != nil {
		s.sessionOpts.Destroy()
		s.sessionOpts = nil
	}
	return nil
}

// createOrtTensor creates an ORT tensor from a NamedTensor.
func createOrtTensor(input NamedTensor) (ort.Value, error) {
	shape := ort.NewShape(input.Shape...)

	switch data := input.Data.(type) {
	case []float32:
		return ort.NewTensor(shape, data)
	case []int64:
		return ort.NewTensor(shape, data)
	case []int32:
		// Convert to int64 for ONNX
		int64Data := make([]int64, len(data))
		for i, v := range data {
			int64Data[i] = int64(v)
		}
		return ort.NewTensor(shape, int64Data)
	case []bool:
		return ort.NewTensor(shape, data)
	default:
		return nil, fmt.Errorf("unsupported data type: %T", data)
	}
}

// extractOrtTensor extracts a NamedTensor from an ORT tensor.
func extractOrtTensor(ortTensor ort.Value, name string) (NamedTensor, error) {
	shape := ortTensor.GetShape()

	// Try float32 first (most common)
	if floatTensor, ok := ortTensor.(*ort.Tensor[float32]); ok {
		data := floatTensor.GetData()
		dataCopy := make([]float32, len(data))
		copy(dataCopy, data)
		return NamedTensor{
			Name:  name,
			Shape: shape,
			Data:  dataCopy,
		}, nil
	}

	// Try int64
	if int64Tensor, ok := ortTensor.(*ort.Tensor[int64]); ok {
		data := int64Tensor.GetData()
		dataCopy := make([]int64, len(data))
		copy(dataCopy, data)
		return NamedTensor{
			Name:  name,
			Shape: shape,
			Data:  dataCopy,
		}, nil
	}

	// Try int32
	if int32Tensor, ok := ortTensor.(*ort.Tensor[int32]); ok {
		data := int32Tensor.GetData()
		dataCopy := make([]int32, len(data))
		copy(dataCopy, data)
		return NamedTensor{
			Name:  name,
			Shape: shape,
			Data:  dataCopy,
		}, nil
	}

	return NamedTensor{}, fmt.Errorf("unsupported tensor type")
}
