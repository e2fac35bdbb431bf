package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zschroder/pred-casualties/internal/domain"
	"github.com/zschroder/pred-casualties/internal/geom"
)

func eventAt(id string, x, y float64, t time.Time) domain.Event {
	return domain.Event{
		ID:    id,
		Point: geom.Point{X: x, Y: y},
		Time:  t,
		Day:   domain.ConvectiveDay(t),
	}
}

func TestBuildMatrix_CombinesSpaceAndTime(t *testing.T) {
	t0 := time.Date(2011, 4, 27, 18, 0, 0, 0, time.UTC)
	events := []domain.Event{
		eventAt("a", 0, 0, t0),
		eventAt("b", 0, 150, t0),                  // 150 m at 15 m/s = 10 s
		eventAt("c", 0, 0, t0.Add(7*time.Second)), // pure temporal
	}

	m, err := BuildMatrix(events, 15, 0)
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())

	assert.InDelta(t, 10.0, m.Distance(0, 1), 1e-9)
	assert.InDelta(t, 7.0, m.Distance(0, 2), 1e-9)
	// b-c: 150 m spatial plus 7 s temporal.
	assert.InDelta(t, 17.0, m.Distance(1, 2), 1e-9)
}

func TestBuildMatrix_SymmetryAndZeroDiagonal(t *testing.T) {
	t0 := time.Date(2011, 4, 27, 18, 0, 0, 0, time.UTC)
	events := []domain.Event{
		eventAt("a", 0, 0, t0),
		eventAt("b", 300, -40, t0.Add(time.Minute)),
		eventAt("c", -9000, 2500, t0.Add(3*time.Hour)),
		eventAt("d", 75, 75, t0.Add(45*time.Second)),
	}

	m, err := BuildMatrix(events, 15, 0)
	require.NoError(t, err)

	for i := 0; i < m.Len(); i++ {
		assert.Zero(t, m.Distance(i, i))
		for j := 0; j < m.Len(); j++ {
			assert.Equal(t, m.Distance(i, j), m.Distance(j, i), "pair (%d,%d)", i, j)
			if i != j {
				assert.Positive(t, m.Distance(i, j))
			}
		}
	}
}

func TestBuildMatrix_SmallN(t *testing.T) {
	m, err := BuildMatrix(nil, 15, 0)
	require.NoError(t, err)
	assert.Zero(t, m.Len())

	one := []domain.Event{eventAt("a", 0, 0, time.Now())}
	m, err = BuildMatrix(one, 15, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestBuildMatrix_Ceiling(t *testing.T) {
	t0 := time.Date(2011, 4, 27, 18, 0, 0, 0, time.UTC)
	events := []domain.Event{
		eventAt("a", 0, 0, t0),
		eventAt("b", 1, 0, t0),
		eventAt("c", 2, 0, t0),
	}

	_, err := BuildMatrix(events, 15, 2)
	assert.ErrorIs(t, err, ErrCatalogTooLarge)

	// At the ceiling exactly the build proceeds.
	m, err := BuildMatrix(events, 15, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
}

func TestBuildMatrix_InvalidStormSpeed(t *testing.T) {
	_, err := BuildMatrix(nil, 0, 0)
	assert.Error(t, err)
	_, err = BuildMatrix(nil, -15, 0)
	assert.Error(t, err)
}

func TestCondensedIndex_CoversAllPairs(t *testing.T) {
	// Every (i, j) pair must map onto a distinct slot of the condensed
	// layout, in order.
	m := &CondensedMatrix{n: 7}
	seen := make(map[int]bool)
	expected := 0
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			k := m.index(i, j)
			assert.Equal(t, expected, k, "pair (%d,%d)", i, j)
			assert.False(t, seen[k])
			seen[k] = true
			expected++
		}
	}
	assert.Len(t, seen, Pairs(7))
}
