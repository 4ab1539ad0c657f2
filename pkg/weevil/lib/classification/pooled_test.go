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

package classification

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/semaphore"

	"github.com/antflydb/weevil/pkg/weevil/lib/models"
	"github.com/antflydb/weevil/pkg/weevil/lib/pipelines"
	"github.com/antflydb/weevil/pkg/weevil/lib/tokenizers"
)

type stubEncoder struct{}

func (stubEncoder) EncodeBatch(texts []string, maxLength int, strategy tokenizers.TruncationStrategy, extraTokens int) []tokenizers.TokenizedInput {
	encoded := make([]tokenizers.TokenizedInput, len(texts))
	for i, text := range texts {
		ids := make([]int64, len(strings.Fields(text)))
		encoded[i] = tokenizers.TokenizedInput{TokenIDs: ids}
	}
	return encoded
}

func (stubEncoder) PadID() (int64, bool) { return 0, true }

// countingModel returns fixed two-class logits and counts forward passes.
type countingModel struct {
	calls  atomic.Int64
	closed atomic.Bool
}

func (m *countingModel) ForwardT(input models.ForwardInput, train bool) ([][]float32, error) {
	m.calls.Add(1)
	logits := make([][]float32, len(input.InputIDs))
	for i := range logits {
		logits[i] = []float32{-1, 1}
	}
	return logits, nil
}

func (m *countingModel) Close() error {
	m.closed.Store(true)
	return nil
}

// testPool assembles a PooledClassifier over fake pipelines, bypassing
// artifact loading.
func testPool(t *testing.T, size int) (*PooledClassifier, []*countingModel) {
	t.Helper()

	labels := map[int64]string{0: "NEGATIVE", 1: "POSITIVE"}
	pipelinesList := make([]*pipelines.ClassificationPipeline, size)
	modelsList := make([]*countingModel, size)
	for i := 0; i < size; i++ {
		modelsList[i] = &countingModel{}
		pipelinesList[i] = pipelines.NewPipelineFromComponents(stubEncoder{}, modelsList[i], labels, 128, nil)
	}

	return &PooledClassifier{
		pipelines: pipelinesList,
		sem:       semaphore.NewWeighted(int64(size)),
		logger:    zaptest.NewLogger(t),
		poolSize:  size,
	}, modelsList
}

func TestPooledClassifierConcurrentPredict(t *testing.T) {
	pool, _ := testPool(t, 2)
	ctx := context.Background()

	const goroutines = 16
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results, err := pool.Predict(ctx, []string{"some text", "other text"})
			if err == nil && len(results) != 2 {
				err = assert.AnError
			}
			errs[n] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestPooledClassifierRoundRobin(t *testing.T) {
	pool, modelsList := testPool(t, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := pool.Predict(ctx, []string{"text"})
		require.NoError(t, err)
	}

	// Sequential requests alternate between the two pipelines.
	assert.Equal(t, int64(2), modelsList[0].calls.Load())
	assert.Equal(t, int64(2), modelsList[1].calls.Load())
}

func TestPooledClassifierMultilabel(t *testing.T) {
	pool, _ := testPool(t, 1)

	groups, err := pool.PredictMultilabel(context.Background(), []string{"a", "b"}, 0.5)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	// Logits (-1, 1): only the positive class clears a 0.5 threshold.
	require.Len(t, groups[0], 1)
	assert.Equal(t, "POSITIVE", groups[0][0].Text)
}

func TestPooledClassifierEmptyInput(t *testing.T) {
	pool, modelsList := testPool(t, 1)

	results, err := pool.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	groups, err := pool.PredictMultilabel(context.Background(), nil, 0.5)
	require.NoError(t, err)
	assert.Empty(t, groups)

	assert.Zero(t, modelsList[0].calls.Load())
}

func TestPooledClassifierCancelledContext(t *testing.T) {
	pool, _ := testPool(t, 1)

	// Occupy the only slot so the next request must block on the semaphore.
	require.NoError(t, pool.sem.Acquire(context.Background(), 1))
	defer pool.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Predict(ctx, []string{"text"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPooledClassifierClose(t *testing.T) {
	pool, modelsList := testPool(t, 3)

	require.NoError(t, pool.Close())
	for i, m := range modelsList {
		assert.True(t, m.closed.Load(), "pipeline %d not closed", i)
	}
}
