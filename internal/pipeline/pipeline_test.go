package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zschroder/pred-casualties/internal/cluster"
	"github.com/zschroder/pred-casualties/internal/domain"
	"github.com/zschroder/pred-casualties/internal/observability"
	"github.com/zschroder/pred-casualties/internal/pipeline"
)

// --- mocks ---

// mockExtractor serves the configured batches in order, then blocks until
// the context is cancelled to simulate waiting on an idle topic.
type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockLoader struct {
	loaded   [][]cluster.BigDay
	failures int // number of initial calls to fail
}

func (m *mockLoader) LoadBatch(_ context.Context, bigDays []cluster.BigDay) error {
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, bigDays)
	return nil
}

type mockClusterer struct {
	err error
}

func (m *mockClusterer) Run(_ []domain.Event) (cluster.Result, error) {
	return cluster.Result{}, m.err
}

type mockCovariates struct {
	covs map[string]float64
	err  error
}

func (m *mockCovariates) ClusterCovariates(_ context.Context, _ cluster.BigDay) (map[string]float64, error) {
	return m.covs, m.err
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func testEngine() cluster.Engine {
	return cluster.NewEngine(15, 50000, 1, 0)
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	batch := makeCatalogBatch(t, 6)
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch, nil}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, testEngine(), ldr, nil, slog.Default(), newTestMetrics(), 50, 60000)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, ldr.loaded, 1)
	require.Len(t, ldr.loaded[0], 1, "six co-located events form one cluster")
	assert.Equal(t, 6, ldr.loaded[0][0].EventCount)
	assert.True(t, p.Ready())
	assert.NoError(t, p.CheckReadiness(ctx))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, blocks immediately
	ldr := &mockLoader{}

	p := pipeline.New(ext, testEngine(), ldr, nil, slog.Default(), newTestMetrics(), 50, 60000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_SkipsInvalidRecords(t *testing.T) {
	batch := makeCatalogBatch(t, 3)
	invalidCommitted := false
	batch = append(batch, domain.RawEvent{
		Value: []byte("not json"),
		Commit: func(_ context.Context) error {
			invalidCommitted = true
			return nil
		},
	})
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch, nil}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, testEngine(), ldr, nil, slog.Default(), newTestMetrics(), 50, 60000)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, 3, ldr.loaded[0][0].EventCount, "poison record excluded from catalog")
	assert.True(t, invalidCommitted, "poison record committed so the group does not wedge")
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var committed, loadedBeforeCommit bool

	ldr := &mockLoader{}
	batch := makeCatalogBatch(t, 2)
	for i := range batch {
		batch[i].Commit = func(_ context.Context) error {
			committed = true
			loadedBeforeCommit = len(ldr.loaded) > 0
			return nil
		}
	}
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch, nil}}

	p := pipeline.New(ext, testEngine(), ldr, nil, slog.Default(), newTestMetrics(), 50, 60000)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.True(t, committed)
	assert.True(t, loadedBeforeCommit, "offsets commit only after a successful publish")
	assert.Len(t, ldr.loaded, 1)
}

func TestPipeline_Run_LoadRetries(t *testing.T) {
	batch := makeCatalogBatch(t, 2)
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch, nil}}
	ldr := &mockLoader{failures: 1}

	p := pipeline.New(ext, testEngine(), ldr, nil, slog.Default(), newTestMetrics(), 50, 60000)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Len(t, ldr.loaded, 1, "publish retried after transient load failure")
	assert.True(t, p.Ready())
}

func TestPipeline_Run_EngineErrorIsFatal(t *testing.T) {
	batch := makeCatalogBatch(t, 2)
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch, nil}}
	ldr := &mockLoader{}
	engineErr := errors.New("catalog too large")

	p := pipeline.New(ext, &mockClusterer{err: engineErr}, ldr, nil,
		slog.Default(), newTestMetrics(), 50, 60000)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	assert.ErrorIs(t, err, engineErr)
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_CeilingTriggersEarlyRun(t *testing.T) {
	// Catalog ceiling of 4: the first batch alone must trigger clustering
	// without waiting for the source to go idle.
	batch := makeCatalogBatch(t, 4)
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, testEngine(), ldr, nil, slog.Default(), newTestMetrics(), 50, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, 4, ldr.loaded[0][0].EventCount)
}

func TestPipeline_Run_OversizedBatchStaysUnderCeiling(t *testing.T) {
	// One batch larger than the catalog ceiling: the pipeline must split it
	// so the engine, sharing the same ceiling, never sees an oversized
	// catalog. The overflow is ingested and clustered on the next cycle.
	eng := cluster.NewEngine(15, 50000, 1, 4)
	batch := makeCatalogBatch(t, 6)
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch, nil}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, eng, ldr, nil, slog.Default(), newTestMetrics(), 50, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx), "oversized batch must not reach the engine")
	require.Len(t, ldr.loaded, 2)
	assert.Equal(t, 4, ldr.loaded[0][0].EventCount)
	assert.Equal(t, 2, ldr.loaded[1][0].EventCount, "overflow clustered on the next cycle")
}

func TestPipeline_Status(t *testing.T) {
	batch := makeCatalogBatch(t, 3)
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch, nil}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, testEngine(), ldr, nil, slog.Default(), newTestMetrics(), 50, 60000)

	st := p.Status()
	assert.False(t, st.Ready)
	assert.Zero(t, st.RunsCompleted)
	assert.True(t, st.LastRunAt.IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	st = p.Status()
	assert.True(t, st.Ready)
	assert.Equal(t, 0, st.CatalogSize, "catalog drained by the run")
	assert.Equal(t, int64(1), st.RunsCompleted)
	assert.Equal(t, int64(1), st.ClustersPublished)
	assert.False(t, st.LastRunAt.IsZero())
}

func TestPipeline_Run_JoinsCovariates(t *testing.T) {
	batch := makeCatalogBatch(t, 3)
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch, nil}}
	ldr := &mockLoader{}
	cov := &mockCovariates{covs: map[string]float64{"cape_jkg": 2500}}

	p := pipeline.New(ext, testEngine(), ldr, cov, slog.Default(), newTestMetrics(), 50, 60000)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, 2500.0, ldr.loaded[0][0].Covariates["cape_jkg"])
}

func TestPipeline_Run_CovariateFailureDegrades(t *testing.T) {
	batch := makeCatalogBatch(t, 3)
	ext := &mockExtractor{batches: [][]domain.RawEvent{batch, nil}}
	ldr := &mockLoader{}
	cov := &mockCovariates{err: errors.New("upstream down")}

	p := pipeline.New(ext, testEngine(), ldr, cov, slog.Default(), newTestMetrics(), 50, 60000)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 1, "cluster published without covariates")
	assert.Nil(t, ldr.loaded[0][0].Covariates)
}

// --- helpers ---

// makeCatalogBatch returns n valid, co-located catalog records minutes apart,
// all inside one convective day.
func makeCatalogBatch(t *testing.T, n int) []domain.RawEvent {
	t.Helper()
	base := time.Date(2011, 4, 27, 18, 0, 0, 0, time.UTC)
	batch := make([]domain.RawEvent, n)
	for i := 0; i < n; i++ {
		rec := domain.CatalogRecord{
			ID:          fmt.Sprintf("20110427.%d", i+1),
			X:           float64(i) * 200,
			Y:           float64(i) * 50,
			Time:        base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			EF:          i % 4,
			PathLengthM: 5000,
			PathWidthM:  400,
		}
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		batch[i] = domain.RawEvent{Key: []byte(rec.ID), Value: data}
	}
	return batch
}
