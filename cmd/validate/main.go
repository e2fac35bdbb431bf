// Command validate performs end-to-end integrity checks over a catalog
// fixture and its Big-Day fixture: it re-runs the clustering core on the
// catalog and verifies that the stored table matches, and that every stored
// cluster honors the pipeline's invariants (minimum size, energy totals,
// footprint consistency, ordering).
//
// Usage:
//
//	go run ./cmd/validate \
//	  -catalog data/mock/tornado_catalog.json \
//	  -bigday data/mock/big_days.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	kafkaadapter "github.com/zschroder/pred-casualties/internal/adapter/kafka"
	"github.com/zschroder/pred-casualties/internal/cluster"
	"github.com/zschroder/pred-casualties/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	catalogPath := flag.String("catalog", "", "path to catalog JSON fixture")
	bigdayPath := flag.String("bigday", "", "path to Big-Day JSON fixture")
	minSize := flag.Int("min-cluster-size", cluster.DefaultMinClusterSize, "minimum retained cluster size")
	flag.Parse()

	if *catalogPath == "" || *bigdayPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*catalogPath, *bigdayPath, *minSize); code != 0 {
		os.Exit(code)
	}
}

func run(catalogPath, bigdayPath string, minSize int) int {
	// Fixed clock matching gencatalog for ProcessedAt reproducibility.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2011, time.June, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	var records []domain.CatalogRecord
	if err := readJSON(catalogPath, &records); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	var stored []kafkaadapter.BigDayRecord
	if err := readJSON(bigdayPath, &stored); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	events := make([]domain.Event, 0, len(records))
	parse := &phase{name: "catalog normalization"}
	for _, rec := range records {
		e, err := domain.NormalizeRecord(rec)
		if err != nil {
			parse.errorf("record %s: %v", rec.ID, err)
			continue
		}
		if e.Category < 0 || e.Category > 5 {
			parse.errorf("record %s: category %d out of range", rec.ID, e.Category)
		}
		if e.PathArea() <= 0 {
			parse.errorf("record %s: non-positive path area", rec.ID)
		}
		if e.Energy <= 0 {
			parse.errorf("record %s: non-positive energy %g", rec.ID, e.Energy)
		}
		events = append(events, e)
	}

	engine := cluster.NewEngine(0, 0, minSize, 0)
	res, err := engine.Run(events)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clustering failed: %v\n", err)
		return 1
	}

	recompute := &phase{name: "recomputed table"}
	checkTable(recompute, stored, res)

	invariants := &phase{name: "big-day invariants"}
	checkInvariants(invariants, stored, minSize)

	exit := 0
	for _, p := range []*phase{parse, recompute, invariants} {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		exit = 1
		fmt.Printf("FAIL  %s (%d errors)\n", p.name, len(p.errors))
		for _, e := range p.errors {
			fmt.Printf("      %s\n", e)
		}
	}
	return exit
}

// checkTable compares the stored fixture against a fresh clustering run.
func checkTable(p *phase, stored []kafkaadapter.BigDayRecord, res cluster.Result) {
	if len(stored) != len(res.BigDays) {
		p.errorf("stored %d big days, recomputed %d", len(stored), len(res.BigDays))
		return
	}
	for i, b := range res.BigDays {
		s := stored[i]
		want := kafkaadapter.MarshalBigDay(b)
		if s.Day != want.Day || s.ClusterID != want.ClusterID {
			p.errorf("row %d: key %s/%d, recomputed %s/%d", i, s.Day, s.ClusterID, want.Day, want.ClusterID)
			continue
		}
		if s.EventCount != want.EventCount {
			p.errorf("%s/%d: event count %d, recomputed %d", s.Day, s.ClusterID, s.EventCount, want.EventCount)
		}
		if !closeEnough(s.TotalEnergyJ, want.TotalEnergyJ) {
			p.errorf("%s/%d: total energy %g, recomputed %g", s.Day, s.ClusterID, s.TotalEnergyJ, want.TotalEnergyJ)
		}
		if !closeEnough(s.FootprintAreaM2, want.FootprintAreaM2) {
			p.errorf("%s/%d: footprint area %g, recomputed %g", s.Day, s.ClusterID, s.FootprintAreaM2, want.FootprintAreaM2)
		}
	}
}

// checkInvariants verifies the properties every emitted big day must hold
// regardless of input.
func checkInvariants(p *phase, stored []kafkaadapter.BigDayRecord, minSize int) {
	for i, s := range stored {
		if s.EventCount < minSize {
			p.errorf("%s/%d: event count %d below minimum %d", s.Day, s.ClusterID, s.EventCount, minSize)
		}
		if len(s.EventIDs) != s.EventCount {
			p.errorf("%s/%d: %d event ids for count %d", s.Day, s.ClusterID, len(s.EventIDs), s.EventCount)
		}
		var catTotal int
		for _, c := range s.CountsByCategory {
			catTotal += c
		}
		if catTotal != s.EventCount {
			p.errorf("%s/%d: category counts sum to %d, want %d", s.Day, s.ClusterID, catTotal, s.EventCount)
		}
		if s.EndTime.Before(s.StartTime) {
			p.errorf("%s/%d: end before start", s.Day, s.ClusterID)
		}
		if s.MedianTime.Before(s.StartTime) || s.MedianTime.After(s.EndTime) {
			p.errorf("%s/%d: median outside [start, end]", s.Day, s.ClusterID)
		}
		if s.DensityDefined == (s.Density == nil) {
			p.errorf("%s/%d: density_defined inconsistent with density field", s.Day, s.ClusterID)
		}
		if s.FootprintAreaM2 == 0 && s.DensityDefined {
			p.errorf("%s/%d: zero-area footprint with defined density", s.Day, s.ClusterID)
		}
		if i > 0 {
			prev := stored[i-1]
			if s.Day < prev.Day || (s.Day == prev.Day && s.ClusterID <= prev.ClusterID) {
				p.errorf("row %d: table not ordered by (day, cluster id)", i)
			}
		}
	}
}

func closeEnough(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= 1e-9*scale
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
