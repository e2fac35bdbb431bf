package cluster

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zschroder/pred-casualties/internal/domain"
	"github.com/zschroder/pred-casualties/internal/geom"
)

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(0, 0, 0, 0)
	assert.Equal(t, DefaultStormSpeedMS, e.StormSpeedMS)
	assert.Equal(t, DefaultThresholdSeconds, e.ThresholdSeconds)
	assert.Equal(t, DefaultMinClusterSize, e.MinClusterSize)
	assert.Equal(t, DefaultMaxEvents, e.MaxEvents)

	e = NewEngine(12.5, 40000, 5, 1000)
	assert.Equal(t, 12.5, e.StormSpeedMS)
	assert.Equal(t, 40000.0, e.ThresholdSeconds)
	assert.Equal(t, 5, e.MinClusterSize)
	assert.Equal(t, 1000, e.MaxEvents)
}

func TestEngine_TwoOutbreaks(t *testing.T) {
	// Two tight groups of six events each. Group A sits within a kilometre
	// and an hour; group B is 600 km away and two days later, so the
	// cross-group dissimilarity (40000 s spatial + 172800 s temporal) is
	// far above the default cut height.
	tA := time.Date(2011, 4, 27, 18, 0, 0, 0, time.UTC)
	tB := tA.Add(48 * time.Hour)

	var events []domain.Event
	for i := 0; i < 6; i++ {
		events = append(events, domain.Event{
			ID:       fmt.Sprintf("a-%d", i),
			Point:    geom.Point{X: float64(i) * 180, Y: float64(i) * 40},
			Time:     tA.Add(time.Duration(i) * 10 * time.Minute),
			Day:      domain.ConvectiveDay(tA),
			Category: i % 3,
			Energy:   1,
		})
	}
	for i := 0; i < 6; i++ {
		events = append(events, domain.Event{
			ID:       fmt.Sprintf("b-%d", i),
			Point:    geom.Point{X: 600000 + float64(i)*150, Y: float64(i) * 60},
			Time:     tB.Add(time.Duration(i) * 8 * time.Minute),
			Day:      domain.ConvectiveDay(tB),
			Category: 5 - i%2,
			Energy:   1,
		})
	}

	eng := NewEngine(15, 50000, 6, 0)
	res, err := eng.Run(events)
	require.NoError(t, err)
	require.Len(t, res.BigDays, 2)
	assert.Zero(t, res.DroppedSmall)

	a, b := res.BigDays[0], res.BigDays[1]
	assert.Equal(t, time.Date(2011, 4, 27, 0, 0, 0, 0, time.UTC), a.Day)
	assert.Equal(t, time.Date(2011, 4, 29, 0, 0, 0, 0, time.UTC), b.Day)
	assert.Equal(t, 6, a.EventCount)
	assert.Equal(t, 6, b.EventCount)
	assert.NotEqual(t, a.ClusterID, b.ClusterID)
	assert.Equal(t, 2, a.MaxCategory)
	assert.Equal(t, 5, b.MaxCategory)
}

func TestEngine_MinSizeDropsBoth(t *testing.T) {
	t0 := time.Date(2011, 4, 27, 18, 0, 0, 0, time.UTC)
	events := []domain.Event{
		eventAt("a", 0, 0, t0),
		eventAt("b", 100, 0, t0.Add(time.Minute)),
	}

	eng := NewEngine(15, 50000, 10, 0)
	res, err := eng.Run(events)
	require.NoError(t, err)
	assert.Empty(t, res.BigDays)
	assert.Equal(t, 1, res.DroppedSmall)
}

func TestEngine_EmptyCatalog(t *testing.T) {
	eng := NewEngine(0, 0, 0, 0)
	res, err := eng.Run(nil)
	require.NoError(t, err)
	assert.Empty(t, res.BigDays)
}

func TestEngine_CeilingPropagates(t *testing.T) {
	t0 := time.Date(2011, 4, 27, 18, 0, 0, 0, time.UTC)
	events := []domain.Event{
		eventAt("a", 0, 0, t0),
		eventAt("b", 100, 0, t0),
		eventAt("c", 200, 0, t0),
	}

	eng := NewEngine(15, 50000, 1, 2)
	_, err := eng.Run(events)
	assert.ErrorIs(t, err, ErrCatalogTooLarge)
}

func TestPairs(t *testing.T) {
	assert.Zero(t, Pairs(0))
	assert.Zero(t, Pairs(1))
	assert.Equal(t, 1, Pairs(2))
	assert.Equal(t, 21, Pairs(7))
	assert.Equal(t, 1799970000, Pairs(60000))
}
