// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/antflydb/weevil/pkg/weevil"
	"github.com/antflydb/weevil/pkg/weevil/lib/backends"
	"github.com/antflydb/weevil/pkg/weevil/lib/classification"
	"github.com/antflydb/weevil/pkg/weevil/lib/models"
	"github.com/antflydb/weevil/pkg/weevil/lib/pipelines"
)

var (
	classifyModel     string
	classifyModelType string
	multiLabel        bool
	threshold         float64
	gpuMode           string
)

var classifyCmd = &cobra.Command{
	Use:   "classify [texts...]",
	Short: "Classify texts with a local model",
	Long: `Classify one or more texts with a model stored under the models directory
(or at an explicit path). By default each text gets the single label with the
highest softmax probability; with --multi-label every label whose sigmoid
activation reaches the threshold is assigned.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVar(&classifyModel, "model", "", "model name under the models directory, or a path to a model directory")
	classifyCmd.Flags().StringVar(&classifyModelType, "model-type", "", "override the architecture instead of detecting it from config.json")
	classifyCmd.Flags().BoolVar(&multiLabel, "multi-label", false, "assign every label above the threshold instead of the single best")
	classifyCmd.Flags().Float64Var(&threshold, "threshold", pipelines.DefaultMultiLabelThreshold, "sigmoid activation threshold for --multi-label")
	classifyCmd.Flags().StringVar(&gpuMode, "gpu", string(backends.GPUModeAuto), "GPU mode (auto, cuda, cpu)")
	_ = classifyCmd.MarkFlagRequired("model")
}

// resolveModelPath treats --model as a directory path when it exists on disk,
// otherwise as a name under the configured models directory.
func resolveModelPath(model string) string {
	if info, err := os.Stat(model); err == nil && info.IsDir() {
		return model
	}
	return filepath.Join(viper.GetString("models_dir"), model)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	factory := backends.NewSessionFactory(backends.GPUMode(gpuMode))

	modelPath := resolveModelPath(classifyModel)
	var (
		classifier classification.Classifier
		modelType  models.ModelType
		err        error
	)
	if classifyModelType != "" {
		modelType, err = models.ParseModelType(classifyModelType)
		if err != nil {
			return err
		}
		classifier, err = weevil.LoadClassifierWithType(modelPath, modelType, factory, logger)
	} else {
		classifier, modelType, err = weevil.LoadClassifier(modelPath, factory, logger)
	}
	if err != nil {
		return err
	}
	defer func() {
		_ = classifier.Close()
	}()

	logger.Debug("Model loaded",
		zap.String("path", modelPath),
		zap.String("model_type", string(modelType)))

	var output any
	if multiLabel {
		output, err = classifier.PredictMultilabel(ctx, args, threshold)
	} else {
		output, err = classifier.Predict(ctx, args)
	}
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
