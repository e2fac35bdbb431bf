package domain

import (
	"context"
	"time"

	"github.com/zschroder/pred-casualties/internal/geom"
)

// WidthConvention records how the source catalog measured path width.
// The SPC switched from average width to maximum width in 1994, so the
// convention is a property of the record's vintage, supplied by the ingester.
type WidthConvention string

const (
	WidthAverage WidthConvention = "average"
	WidthMaximum WidthConvention = "maximum"
)

// CatalogRecord is the flat JSON structure produced by the ingestion service,
// one per tornado touchdown.
type CatalogRecord struct {
	ID              string  `json:"id"`
	X               float64 `json:"x_m"` // projected planar meters
	Y               float64 `json:"y_m"`
	Time            string  `json:"time"` // RFC 3339, normalized zone
	EF              int     `json:"ef"`   // 0-5, or -9 for unrated
	PathLengthM     float64 `json:"path_length_m"`
	PathWidthM      float64 `json:"path_width_m"`
	WidthConvention string  `json:"width_convention"` // "average" or "maximum"
	Injuries        int     `json:"injuries"`
	Fatalities      int     `json:"fatalities"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Event is the normalized in-memory representation of one tornado after
// parsing. Immutable once built; clustering and aggregation only read it.
type Event struct {
	ID         string     `json:"id"`
	Point      geom.Point `json:"point"` // projected planar meters
	Time       time.Time  `json:"time"`
	Day        time.Time  `json:"day"`      // convective day, midnight in the normalized zone
	Category   int        `json:"category"` // EF rating 0-5, never negative after parsing
	PathLength float64    `json:"path_length_m"`
	PathWidth  float64    `json:"path_width_m"` // convention-corrected
	Casualties int        `json:"casualties"`   // injuries + fatalities
	Energy     float64    `json:"energy_j"`     // dissipated energy, Joules-equivalent
}

// PathArea returns the damage path area in square meters.
func (e Event) PathArea() float64 {
	return e.PathLength * e.PathWidth
}
