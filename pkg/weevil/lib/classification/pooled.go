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

// Package classification provides concurrency-safe wrappers around
// sequence classification pipelines.
package classification

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/antflydb/weevil/pkg/weevil/lib/backends"
	"github.com/antflydb/weevil/pkg/weevil/lib/pipelines"
)

// Classifier is the serving surface for sequence classification.
type Classifier interface {
	// Predict assigns the single most probable label to each text.
	Predict(ctx context.Context, texts []string) ([]pipelines.Label, error)
	// PredictMultilabel assigns every label whose sigmoid activation
	// reaches threshold, one group per text.
	PredictMultilabel(ctx context.Context, texts []string, threshold float64) ([][]pipelines.Label, error)
	// Close releases all underlying sessions.
	Close() error
}

// Ensure PooledClassifier implements Classifier
var _ Classifier = (*PooledClassifier)(nil)

// PooledClassifierConfig holds configuration for creating a PooledClassifier.
type PooledClassifierConfig struct {
	// Pipeline configures each pipeline instance in the pool.
	Pipeline *pipelines.ClassificationConfig

	// PoolSize determines how many concurrent requests can be processed (0 = auto-detect from CPU count)
	PoolSize int

	// Logger for logging (nil = no logging)
	Logger *zap.Logger
}

// PooledClassifier manages multiple ClassificationPipeline instances for
// concurrent sequence classification. Each pipeline owns its own session, so
// requests never contend on a single inference context.
type PooledClassifier struct {
	pipelines    []*pipelines.ClassificationPipeline
	sem          *semaphore.Weighted
	nextPipeline atomic.Uint64
	logger       *zap.Logger
	poolSize     int
}

// NewPooledClassifier builds poolSize classification pipelines from the same
// model artifacts and serves requests over them round-robin.
func NewPooledClassifier(
	cfg PooledClassifierConfig,
	factory backends.SessionFactory,
	opts ...backends.SessionOption,
) (*PooledClassifier, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline configuration is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Auto-detect pool size from CPU count if not specified
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize > 4 {
			poolSize = 4 // Cap at 4 (sessions are memory intensive)
		}
	}

	pipelinesList := make([]*pipelines.ClassificationPipeline, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		p, err := pipelines.NewClassificationPipeline(cfg.Pipeline, factory, opts...)
		if err != nil {
			for _, built := range pipelinesList {
				_ = built.Close()
			}
			return nil, fmt.Errorf("creating pipeline %d of %d: %w", i+1, poolSize, err)
		}
		pipelinesList = append(pipelinesList, p)
	}

	logger.Info("Created classification pipeline pool",
		zap.Int("count", poolSize),
		zap.String("model_type", string(cfg.Pipeline.ModelType)))

	return &PooledClassifier{
		pipelines: pipelinesList,
		sem:       semaphore.NewWeighted(int64(poolSize)),
		logger:    logger,
		poolSize:  poolSize,
	}, nil
}

// PoolSize returns the number of pipelines in the pool.
func (p *PooledClassifier) PoolSize() int {
	return p.poolSize
}

// Predict classifies texts with single-label decoding.
// Thread-safe: uses semaphore to limit concurrent pipeline access.
func (p *PooledClassifier) Predict(ctx context.Context, texts []string) ([]pipelines.Label, error) {
	if len(texts) == 0 {
		return []pipelines.Label{}, nil
	}

	pipeline, release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	results, err := pipeline.Predict(texts)
	if err != nil {
		p.logger.Error("Prediction failed",
			zap.Int("num_texts", len(texts)),
			zap.Error(err))
		return nil, fmt.Errorf("classifying texts: %w", err)
	}
	return results, nil
}

// PredictMultilabel classifies texts with multi-label decoding.
// Thread-safe: uses semaphore to limit concurrent pipeline access.
func (p *PooledClassifier) PredictMultilabel(ctx context.Context, texts []string, threshold float64) ([][]pipelines.Label, error) {
	if len(texts) == 0 {
		return [][]pipelines.Label{}, nil
	}

	pipeline, release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	results, err := pipeline.PredictMultilabel(texts, threshold)
	if err != nil {
		p.logger.Error("Multi-label prediction failed",
			zap.Int("num_texts", len(texts)),
			zap.Error(err))
		return nil, fmt.Errorf("classifying texts: %w", err)
	}
	return results, nil
}

// acquire blocks until a pool slot is free and returns the next pipeline
// round-robin, plus the release function for the slot.
func (p *PooledClassifier) acquire(ctx context.Context) (*pipelines.ClassificationPipeline, func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("acquiring pipeline slot: %w", err)
	}

	idx := int(p.nextPipeline.Add(1) % uint64(p.poolSize))
	p.logger.Debug("Using pipeline",
		zap.Int("pipelineIndex", idx))

	return p.pipelines[idx], func() { p.sem.Release(1) }, nil
}

// Close releases every pipeline in the pool. The first error is returned but
// all pipelines are closed regardless.
func (p *PooledClassifier) Close() error {
	var firstErr error
	for i, pipeline := range p.pipelines {
		if err := pipeline.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing pipeline %d: %w", i, err)
		}
	}
	return firstErr
}
