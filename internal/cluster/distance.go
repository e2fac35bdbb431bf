// Package cluster implements the space-time outbreak clustering core:
// pairwise event dissimilarities, single-linkage agglomeration, and the
// aggregation of labeled events into the Big-Day table.
package cluster

import (
	"errors"
	"fmt"

	"github.com/zschroder/pred-casualties/internal/domain"
	"github.com/zschroder/pred-casualties/internal/geom"
)

// ErrCatalogTooLarge is returned when the event count would exceed the
// configured ceiling for the pairwise distance structure. The caller can
// recover by partitioning the catalog (for example, by year) and
// resubmitting.
var ErrCatalogTooLarge = errors.New("catalog exceeds pairwise distance ceiling")

// Matrix exposes pairwise event dissimilarities. The single-linkage builder
// only depends on this interface, so a spatially prefiltered or on-the-fly
// implementation can replace the condensed matrix without touching it.
type Matrix interface {
	// Len returns the number of events.
	Len() int
	// Distance returns the dissimilarity between events i and j.
	// Distance(i, i) is zero and Distance(i, j) == Distance(j, i).
	Distance(i, j int) float64
}

// CondensedMatrix stores the C(n,2) pairwise dissimilarities in a flat
// upper-triangular layout, halving the memory of a dense n x n matrix.
type CondensedMatrix struct {
	n int
	d []float64
}

// BuildMatrix computes the combined space-time dissimilarity between every
// pair of events:
//
//	d(i, j) = euclid(i, j) / stormSpeed + |t_i - t_j|
//
// with the spatial term in meters divided by the mean storm-motion speed in
// m/s, so both terms are in seconds. stormSpeed must be positive. A catalog
// larger than maxEvents is rejected with ErrCatalogTooLarge before any
// allocation. Zero or one event yields an empty matrix, not an error.
func BuildMatrix(events []domain.Event, stormSpeed float64, maxEvents int) (*CondensedMatrix, error) {
	if stormSpeed <= 0 {
		return nil, fmt.Errorf("storm motion speed must be positive, got %g", stormSpeed)
	}
	n := len(events)
	if maxEvents > 0 && n > maxEvents {
		return nil, fmt.Errorf("%w: %d events, ceiling %d", ErrCatalogTooLarge, n, maxEvents)
	}
	if n < 2 {
		return &CondensedMatrix{n: n}, nil
	}

	m := &CondensedMatrix{
		n: n,
		d: make([]float64, n*(n-1)/2),
	}
	k := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			spatial := geom.Dist(events[i].Point, events[j].Point) / stormSpeed
			temporal := events[j].Time.Sub(events[i].Time).Abs().Seconds()
			m.d[k] = spatial + temporal
			k++
		}
	}
	return m, nil
}

// Len returns the number of events.
func (m *CondensedMatrix) Len() int { return m.n }

// Distance returns the dissimilarity between events i and j.
func (m *CondensedMatrix) Distance(i, j int) float64 {
	if i == j {
		return 0
	}
	if i > j {
		i, j = j, i
	}
	return m.d[m.index(i, j)]
}

// index maps an (i, j) pair with i < j onto the condensed layout: row i
// starts after the i preceding rows of lengths n-1, n-2, ..., n-i.
func (m *CondensedMatrix) index(i, j int) int {
	return i*(2*m.n-i-1)/2 + (j - i - 1)
}
