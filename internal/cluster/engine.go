package cluster

import "github.com/zschroder/pred-casualties/internal/domain"

// Default tuning constants. The threshold and storm speed are calibration
// constants, not inferred parameters: raising the threshold (or the speed
// divisor) only merges clusters, never splits them.
const (
	// DefaultThresholdSeconds is the dendrogram cut height, in combined
	// space-time seconds.
	DefaultThresholdSeconds = 50000.0
	// DefaultStormSpeedMS is the empirical mean storm-motion speed used to
	// convert spatial separation into travel seconds.
	DefaultStormSpeedMS = 15.0
	// DefaultMinClusterSize is the smallest outbreak retained in the
	// Big-Day table.
	DefaultMinClusterSize = 10
	// DefaultMaxEvents caps one clustering run; the condensed matrix for
	// 60k events is ~1.8 billion pairs (~14 GiB), which is the practical
	// ceiling for the brute-force engine.
	DefaultMaxEvents = 60000
)

// Engine runs the full clustering pass: pairwise distances, single-linkage
// agglomeration, threshold cut, and Big-Day aggregation. The zero value is
// not useful; use NewEngine for defaulted fields.
type Engine struct {
	StormSpeedMS     float64
	ThresholdSeconds float64
	MinClusterSize   int
	MaxEvents        int
}

// NewEngine returns an Engine with any non-positive field defaulted.
func NewEngine(stormSpeed, threshold float64, minSize, maxEvents int) Engine {
	e := Engine{
		StormSpeedMS:     stormSpeed,
		ThresholdSeconds: threshold,
		MinClusterSize:   minSize,
		MaxEvents:        maxEvents,
	}
	if e.StormSpeedMS <= 0 {
		e.StormSpeedMS = DefaultStormSpeedMS
	}
	if e.ThresholdSeconds <= 0 {
		e.ThresholdSeconds = DefaultThresholdSeconds
	}
	if e.MinClusterSize <= 0 {
		e.MinClusterSize = DefaultMinClusterSize
	}
	if e.MaxEvents <= 0 {
		e.MaxEvents = DefaultMaxEvents
	}
	return e
}

// Run clusters the catalog and returns the aggregated Big-Day table.
// An empty catalog yields an empty result.
func (e Engine) Run(events []domain.Event) (Result, error) {
	m, err := BuildMatrix(events, e.StormSpeedMS, e.MaxEvents)
	if err != nil {
		return Result{}, err
	}
	dend, err := SingleLinkage(m)
	if err != nil {
		return Result{}, err
	}
	return Aggregate(events, dend.Cut(e.ThresholdSeconds), e.MinClusterSize)
}

// Pairs returns the number of pairwise dissimilarities a catalog of n
// events requires; used for metrics and the fail-fast ceiling check.
func Pairs(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}
