// Package pipeline orchestrates the batch flow: accumulate catalog events
// from the extractor, run the clustering engine once the stream goes idle,
// join covariates, and publish the Big-Day table.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zschroder/pred-casualties/internal/cluster"
	"github.com/zschroder/pred-casualties/internal/domain"
	"github.com/zschroder/pred-casualties/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source. An empty
// batch with a nil error signals an idle source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Clusterer turns a catalog into the aggregated Big-Day table.
// cluster.Engine is the production implementation.
type Clusterer interface {
	Run(events []domain.Event) (cluster.Result, error)
}

// BatchLoader writes the Big-Day table to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, bigDays []cluster.BigDay) error
}

// CovariateProvider returns externally computed scalar covariates for one
// cluster. Implementations live in internal/adapter/covariate.
type CovariateProvider interface {
	ClusterCovariates(ctx context.Context, b cluster.BigDay) (map[string]float64, error)
}

// Pipeline drives extract-accumulate-cluster-load cycles.
type Pipeline struct {
	extractor  BatchExtractor
	engine     Clusterer
	loader     BatchLoader
	covariates CovariateProvider // nil when the join is disabled
	logger     *slog.Logger
	metrics    *observability.Metrics
	batchSize  int
	maxCatalog int

	ready   atomic.Bool
	catalog []domain.Event
	pending []domain.RawEvent // raw events awaiting offset commit
	carry   []domain.RawEvent // overflow past the catalog ceiling, ingested next cycle

	catalogSize       atomic.Int64
	runsCompleted     atomic.Int64
	clustersPublished atomic.Int64
	lastRunNanos      atomic.Int64
}

// Status is a point-in-time snapshot of pipeline progress, served on the
// operational HTTP surface.
type Status struct {
	Ready             bool      `json:"ready"`
	CatalogSize       int       `json:"catalog_size"`
	RunsCompleted     int64     `json:"runs_completed"`
	ClustersPublished int64     `json:"clusters_published"`
	LastRunAt         time.Time `json:"last_run_at,omitzero"`
}

// New creates a Pipeline with the given stages and observability.
// covariates may be nil to disable the join.
func New(e BatchExtractor, eng Clusterer, l BatchLoader, cov CovariateProvider,
	logger *slog.Logger, metrics *observability.Metrics, batchSize, maxCatalog int) *Pipeline {
	return &Pipeline{
		extractor:  e,
		engine:     eng,
		loader:     l,
		covariates: cov,
		logger:     logger,
		metrics:    metrics,
		batchSize:  batchSize,
		maxCatalog: maxCatalog,
	}
}

// CheckReadiness returns nil once at least one clustering run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no clustering run has completed yet")
	}
	return nil
}

// Ready reports whether a clustering run has completed.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Status reports pipeline progress. Safe to call concurrently with Run.
func (p *Pipeline) Status() Status {
	s := Status{
		Ready:             p.ready.Load(),
		CatalogSize:       int(p.catalogSize.Load()),
		RunsCompleted:     p.runsCompleted.Load(),
		ClustersPublished: p.clustersPublished.Load(),
	}
	if ns := p.lastRunNanos.Load(); ns != 0 {
		s.LastRunAt = time.Unix(0, ns).UTC()
	}
	return s
}

// Run executes the accumulate-cluster-publish loop until the context is
// cancelled. A clustering run fires when the source goes idle with a
// non-empty catalog, or when the catalog reaches the configured ceiling.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "max_catalog", p.maxCatalog)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		cont, err := p.step(ctx, &backoff, maxBackoff)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// step runs one extract or cluster cycle. Returns false when the pipeline
// should stop; a non-nil error is fatal (caller-bug input surfaced by the
// clustering core).
func (p *Pipeline) step(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) (bool, error) {
	rawBatch := p.carry
	p.carry = nil
	if len(rawBatch) == 0 {
		var err error
		rawBatch, err = p.extractor.ExtractBatch(ctx, p.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			p.logger.Error("extract batch failed", "error", err)
			return p.backoffOrStop(ctx, backoff, maxBackoff), nil
		}
		*backoff = 200 * time.Millisecond
	}

	if len(rawBatch) > 0 {
		// Never hand the engine more events than the distance ceiling:
		// ingest up to the ceiling and carry the overflow into the next
		// cycle, after the early run has drained the catalog.
		if room := p.maxCatalog - len(p.catalog); p.maxCatalog > 0 && len(rawBatch) > room {
			p.carry = rawBatch[room:]
			rawBatch = rawBatch[:room]
		}
		p.ingest(ctx, rawBatch)
		if len(p.catalog) < p.maxCatalog {
			return ctx.Err() == nil, nil
		}
		p.logger.Warn("catalog ceiling reached, clustering early", "events", len(p.catalog))
	} else if len(p.catalog) == 0 {
		return ctx.Err() == nil, nil
	}

	// Source idle (or ceiling hit) with a non-empty catalog: cluster it.
	if err := p.runClustering(ctx, backoff, maxBackoff); err != nil {
		return false, err
	}
	return ctx.Err() == nil, nil
}

// ingest parses a raw batch into the catalog. Records that fail
// normalization are counted, committed, and skipped; they would otherwise
// wedge the consumer group on a poison message.
func (p *Pipeline) ingest(ctx context.Context, rawBatch []domain.RawEvent) {
	for _, raw := range rawBatch {
		event, err := domain.ParseRawEvent(raw)
		if err != nil {
			p.logger.Warn("invalid catalog record, skipping",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.EventsInvalid.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		p.catalog = append(p.catalog, event)
		p.pending = append(p.pending, raw)
		p.metrics.EventsConsumed.Inc()
	}
	p.catalogSize.Store(int64(len(p.catalog)))
}

// runClustering executes one full distance-linkage-aggregate pass over the
// accumulated catalog, joins covariates, publishes the table, and commits
// the source offsets. A clustering-core error is fatal: the input is
// deterministic, so retrying cannot succeed.
func (p *Pipeline) runClustering(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) error {
	start := time.Now()
	p.metrics.CatalogSize.Observe(float64(len(p.catalog)))
	p.metrics.PairsComputed.Add(float64(cluster.Pairs(len(p.catalog))))

	res, err := p.engine.Run(p.catalog)
	if err != nil {
		if errors.Is(err, cluster.ErrCatalogTooLarge) {
			p.logger.Error("catalog exceeds distance ceiling; repartition the source",
				"events", len(p.catalog), "error", err)
		}
		return err
	}

	p.joinCovariates(ctx, res.BigDays)

	// Publish with backoff: load failures are transient broker conditions.
	for {
		err := p.loader.LoadBatch(ctx, res.BigDays)
		if err == nil {
			break
		}
		p.logger.Error("load big days failed", "error", err, "clusters", len(res.BigDays))
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			return nil
		}
	}

	for _, raw := range p.pending {
		p.commitOffset(ctx, raw)
	}

	p.metrics.RunsTotal.Inc()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.metrics.ClustersProduced.Add(float64(len(res.BigDays)))
	p.metrics.ClustersDroppedSmall.Add(float64(res.DroppedSmall))
	p.logger.Info("clustering run complete",
		"events", len(p.catalog),
		"clusters", len(res.BigDays),
		"dropped_small", res.DroppedSmall,
		"duration", time.Since(start),
	)

	p.catalog = nil
	p.pending = nil
	p.catalogSize.Store(0)
	p.runsCompleted.Add(1)
	p.clustersPublished.Add(int64(len(res.BigDays)))
	p.lastRunNanos.Store(domain.Now().UnixNano())
	p.ready.Store(true)
	return nil
}

// joinCovariates enriches each big day in place. Provider failures degrade
// gracefully: the cluster is published without covariates.
func (p *Pipeline) joinCovariates(ctx context.Context, bigDays []cluster.BigDay) {
	if p.covariates == nil {
		return
	}
	for i := range bigDays {
		covs, err := p.covariates.ClusterCovariates(ctx, bigDays[i])
		if err != nil {
			p.logger.Warn("covariate join failed", "cluster", bigDays[i].Key(), "error", err)
			continue
		}
		if len(covs) > 0 {
			bigDays[i].Covariates = covs
		}
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the pipeline should
// stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
