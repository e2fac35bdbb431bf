// Command gencatalog generates a deterministic synthetic tornado catalog
// fixture plus the Big-Day table the pipeline should produce from it. It
// uses the actual domain and cluster packages so the expected output matches
// real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/gencatalog \
//	  -catalog-out data/mock/tornado_catalog.json \
//	  -bigday-out data/mock/big_days.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	kafkaadapter "github.com/zschroder/pred-casualties/internal/adapter/kafka"
	"github.com/zschroder/pred-casualties/internal/cluster"
	"github.com/zschroder/pred-casualties/internal/domain"
	"github.com/zschroder/pred-casualties/internal/geom"
)

// Outbreak centers across the US plains, spaced days and hundreds of
// kilometers apart so each seeds exactly one cluster at default calibration.
var outbreakCenters = []struct {
	lat, lon float64
	start    time.Time
}{
	{35.3, -97.5, time.Date(2011, time.April, 27, 18, 0, 0, 0, time.UTC)},
	{33.6, -86.8, time.Date(2011, time.May, 2, 17, 30, 0, 0, time.UTC)},
	{38.9, -95.2, time.Date(2011, time.May, 10, 20, 0, 0, 0, time.UTC)},
	{41.5, -93.6, time.Date(2011, time.May, 24, 19, 0, 0, 0, time.UTC)},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	catalogOut := flag.String("catalog-out", "", "output path for the catalog JSON fixture")
	bigdayOut := flag.String("bigday-out", "", "output path for the expected Big-Day JSON fixture")
	perOutbreak := flag.Int("events-per-outbreak", 25, "events generated per outbreak")
	noise := flag.Int("noise-events", 12, "isolated events that must not form clusters")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if *catalogOut == "" || *bigdayOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -catalog-out, -bigday-out")
	}

	// Fixed clock for reproducible ProcessedAt stamps in the expected table.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2011, time.June, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))
	proj := geom.NewLambertAzimuthalEqualArea(39, -96)

	var records []domain.CatalogRecord
	for i, c := range outbreakCenters {
		for j := 0; j < *perOutbreak; j++ {
			records = append(records, synthRecord(rng, proj,
				fmt.Sprintf("ob%d-%03d", i, j),
				c.lat, c.lon, c.start,
				0.6,          // degrees of spatial scatter
				4*time.Hour)) // temporal scatter
		}
	}
	// Isolated events: far from every center in time, so each is a
	// singleton cluster and falls below the minimum size.
	for j := 0; j < *noise; j++ {
		center := outbreakCenters[j%len(outbreakCenters)]
		records = append(records, synthRecord(rng, proj,
			fmt.Sprintf("noise-%03d", j),
			center.lat+3, center.lon-4, center.start.AddDate(0, 0, 5+j),
			0.2, time.Hour))
	}

	events := make([]domain.Event, 0, len(records))
	for _, rec := range records {
		e, err := domain.NormalizeRecord(rec)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", rec.ID, err)
		}
		events = append(events, e)
	}

	engine := cluster.NewEngine(0, 0, 0, 0) // all defaults
	res, err := engine.Run(events)
	if err != nil {
		return fmt.Errorf("cluster synthetic catalog: %w", err)
	}

	table := make([]kafkaadapter.BigDayRecord, len(res.BigDays))
	for i, b := range res.BigDays {
		table[i] = kafkaadapter.MarshalBigDay(b)
	}

	if err := writeJSON(*catalogOut, records); err != nil {
		return err
	}
	if err := writeJSON(*bigdayOut, table); err != nil {
		return err
	}

	log.Printf("catalog: %d events, big days: %d (dropped %d small clusters)",
		len(records), len(res.BigDays), res.DroppedSmall)
	return nil
}

// synthRecord draws one event scattered around an outbreak center.
func synthRecord(rng *rand.Rand, proj geom.Projection, id string,
	lat, lon float64, start time.Time, scatterDeg float64, scatterDur time.Duration) domain.CatalogRecord {

	p := proj.Forward(
		lat+rng.NormFloat64()*scatterDeg,
		lon+rng.NormFloat64()*scatterDeg,
	)
	t := start.Add(time.Duration(rng.Int63n(int64(scatterDur))))

	ef := rng.Intn(6)
	if rng.Intn(20) == 0 {
		ef = -9 // unrated, resolved at parse time
	}

	return domain.CatalogRecord{
		ID:              id,
		X:               p.X,
		Y:               p.Y,
		Time:            t.Format(time.RFC3339),
		EF:              ef,
		PathLengthM:     500 + rng.Float64()*30000,
		PathWidthM:      20 + rng.Float64()*800,
		WidthConvention: string(domain.WidthMaximum),
		Injuries:        rng.Intn(20),
		Fatalities:      rng.Intn(3),
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
