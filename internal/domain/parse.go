package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/zschroder/pred-casualties/internal/geom"
)

const (
	// unratedSentinel is the SPC magnitude value for tornadoes that were
	// never assigned an EF rating.
	unratedSentinel = -9

	// longTrackMeters is the path length above which an unrated tornado is
	// resolved to EF1 instead of EF0. Long tracks are very rarely produced
	// by EF0 tornadoes in the rated record.
	longTrackMeters = 8000.0

	// minPathDimension floors zero or missing path length/width, in meters.
	// A zero path area would force zero dissipated energy and destabilize
	// area weighting downstream.
	minPathDimension = 1.0

	// maxWidthCorrection scales a maximum path width down to an estimated
	// average width, treating the damage path as elliptical.
	maxWidthCorrection = math.Pi / 4
)

// ParseRawEvent deserializes a RawEvent's value into a normalized Event.
// It resolves unrated tornadoes, floors degenerate path dimensions, applies
// the width-convention correction, derives the convective day, and annotates
// dissipated energy.
func ParseRawEvent(raw RawEvent) (Event, error) {
	var rec CatalogRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Event{}, fmt.Errorf("parse raw event: %w", err)
	}
	return NormalizeRecord(rec)
}

// NormalizeRecord converts a wire record into a normalized Event.
func NormalizeRecord(rec CatalogRecord) (Event, error) {
	if rec.ID == "" {
		return Event{}, fmt.Errorf("record missing id")
	}

	t, err := time.Parse(time.RFC3339, rec.Time)
	if err != nil {
		return Event{}, fmt.Errorf("record %s: parse time: %w", rec.ID, err)
	}

	if rec.Injuries < 0 || rec.Fatalities < 0 {
		return Event{}, fmt.Errorf("record %s: negative casualty count", rec.ID)
	}

	length := math.Max(rec.PathLengthM, minPathDimension)
	width := math.Max(rec.PathWidthM, minPathDimension)

	category, err := resolveCategory(rec.EF, length)
	if err != nil {
		return Event{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}

	switch WidthConvention(rec.WidthConvention) {
	case WidthAverage, "":
		// Width is already an average; nothing to correct.
	case WidthMaximum:
		width *= maxWidthCorrection
	default:
		return Event{}, fmt.Errorf("record %s: unknown width convention %q", rec.ID, rec.WidthConvention)
	}

	energy, err := EnergyDissipation(category, length*width)
	if err != nil {
		return Event{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}

	return Event{
		ID:         rec.ID,
		Point:      geom.Point{X: rec.X, Y: rec.Y},
		Time:       t,
		Day:        ConvectiveDay(t),
		Category:   category,
		PathLength: length,
		PathWidth:  width,
		Casualties: rec.Injuries + rec.Fatalities,
		Energy:     energy,
	}, nil
}

// resolveCategory maps the wire EF field to a 0-5 rating, resolving the
// unrated sentinel from path length.
func resolveCategory(ef int, lengthM float64) (int, error) {
	if ef == unratedSentinel {
		if lengthM >= longTrackMeters {
			return 1, nil
		}
		return 0, nil
	}
	if ef < 0 || ef > 5 {
		return 0, fmt.Errorf("ef rating %d out of range", ef)
	}
	return ef, nil
}
