package cluster

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zschroder/pred-casualties/internal/domain"
	"github.com/zschroder/pred-casualties/internal/geom"
)

// BigDay is one outbreak instance: the events sharing a (convective day,
// cluster id) compound key, with derived statistics. The numeric ClusterID
// alone is not unique: ids recur across days and a day can hold several
// clusters, so (Day, ClusterID) is the record's identity.
//
// A BigDay is immutable once emitted; the covariate join only adds entries
// to Covariates, never rewrites existing fields.
type BigDay struct {
	Day       time.Time
	ClusterID int

	Events     []domain.Event // ordered by (time, id)
	EventCount int

	CountsByCategory [6]int
	MaxCategory      int
	TotalCasualties  int
	TotalEnergy      float64

	StartTime  time.Time
	MedianTime time.Time
	EndTime    time.Time
	Duration   time.Duration

	Footprint     []geom.Point // convex hull ring over member locations
	FootprintArea float64      // m^2; zero for degenerate hulls
	Centroid      geom.Point
	Density       float64 // events per m^2; +Inf when FootprintArea is zero

	Covariates map[string]float64 // externally joined, optional

	ProcessedAt time.Time
}

// Key returns the compound key as a printable string, e.g.
// "2011-04-27/3". Used for cache keys and log fields.
func (b BigDay) Key() string {
	return fmt.Sprintf("%s/%d", b.Day.Format("2006-01-02"), b.ClusterID)
}

// Result is the output of one aggregation pass.
type Result struct {
	BigDays []BigDay
	// DroppedSmall counts clusters below the minimum size, which are
	// removed by design and reported only as a diagnostic.
	DroppedSmall int
}

// Aggregate groups labeled events by (convective day, cluster id), computes
// every derived BigDay field, and drops groups smaller than minSize. Output
// is ordered ascending by (day, cluster id); member events are ordered by
// (time, id). Both orderings are deterministic for reproducibility, not
// semantics.
func Aggregate(events []domain.Event, labels []int, minSize int) (Result, error) {
	if len(events) != len(labels) {
		return Result{}, fmt.Errorf("got %d labels for %d events", len(labels), len(events))
	}

	type key struct {
		day int64
		id  int
	}
	groups := make(map[key][]domain.Event)
	for i, e := range events {
		k := key{day: e.Day.Unix(), id: labels[i]}
		groups[k] = append(groups[k], e)
	}

	res := Result{BigDays: make([]BigDay, 0, len(groups))}
	for k, members := range groups {
		if len(members) < minSize {
			res.DroppedSmall++
			continue
		}
		res.BigDays = append(res.BigDays, summarize(k.id, members))
	}

	sort.Slice(res.BigDays, func(i, j int) bool {
		a, b := res.BigDays[i], res.BigDays[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		return a.ClusterID < b.ClusterID
	})
	return res, nil
}

// summarize computes the derived fields for one non-empty member set.
func summarize(clusterID int, members []domain.Event) BigDay {
	sort.Slice(members, func(i, j int) bool {
		if !members[i].Time.Equal(members[j].Time) {
			return members[i].Time.Before(members[j].Time)
		}
		return members[i].ID < members[j].ID
	})

	b := BigDay{
		Day:        members[0].Day,
		ClusterID:  clusterID,
		Events:     members,
		EventCount: len(members),
		StartTime:  members[0].Time,
		EndTime:    members[len(members)-1].Time,
	}
	b.Duration = b.EndTime.Sub(b.StartTime)
	b.MedianTime = medianTime(members)

	pts := make([]geom.Point, len(members))
	for i, e := range members {
		pts[i] = e.Point
		b.CountsByCategory[e.Category]++
		if e.Category > b.MaxCategory {
			b.MaxCategory = e.Category
		}
		b.TotalCasualties += e.Casualties
		b.TotalEnergy += e.Energy
	}

	b.Footprint = geom.ConvexHull(pts)
	b.FootprintArea = geom.Area(b.Footprint)
	b.Centroid = geom.Centroid(b.Footprint)
	if b.FootprintArea == 0 {
		// Degenerate footprint: density is undefined, reported as +Inf
		// rather than a zero-division artifact.
		b.Density = math.Inf(1)
	} else {
		b.Density = float64(b.EventCount) / b.FootprintArea
	}

	b.ProcessedAt = domain.Now()
	return b
}

// medianTime returns the median of the members' timestamps; for an even
// count, the midpoint of the two middle timestamps.
func medianTime(members []domain.Event) time.Time {
	n := len(members)
	if n%2 == 1 {
		return members[n/2].Time
	}
	lo := members[n/2-1].Time
	hi := members[n/2].Time
	return lo.Add(hi.Sub(lo) / 2)
}
