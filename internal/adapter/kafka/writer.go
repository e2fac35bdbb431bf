package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/zschroder/pred-casualties/internal/cluster"
	"github.com/zschroder/pred-casualties/internal/config"
	"github.com/zschroder/pred-casualties/internal/geom"
)

// Writer publishes Big-Day records to the sink topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes the Big-Day table in a single
// WriteMessages call for efficiency.
func (w *Writer) LoadBatch(ctx context.Context, bigDays []cluster.BigDay) error {
	if len(bigDays) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(bigDays))
	for i := range bigDays {
		msg, err := serializeToMessage(bigDays[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// BigDayRecord is the wire form of a cluster.BigDay. Density is a pointer
// because an undefined density (degenerate footprint) is +Inf in memory,
// which JSON cannot carry; it serializes as null with DensityDefined false.
type BigDayRecord struct {
	Day              string             `json:"day"` // convective day, YYYY-MM-DD
	ClusterID        int                `json:"cluster_id"`
	EventCount       int                `json:"event_count"`
	EventIDs         []string           `json:"event_ids"`
	CountsByCategory [6]int             `json:"counts_by_category"`
	MaxCategory      int                `json:"max_category"`
	TotalCasualties  int                `json:"total_casualties"`
	TotalEnergyJ     float64            `json:"total_energy_j"`
	StartTime        time.Time          `json:"start_time"`
	MedianTime       time.Time          `json:"median_time"`
	EndTime          time.Time          `json:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds"`
	Footprint        []geom.Point       `json:"footprint"`
	FootprintAreaM2  float64            `json:"footprint_area_m2"`
	Centroid         geom.Point         `json:"centroid"`
	Density          *float64           `json:"density"` // events per m^2
	DensityDefined   bool               `json:"density_defined"`
	Covariates       map[string]float64 `json:"covariates,omitempty"`
	ProcessedAt      time.Time          `json:"processed_at"`
}

// MarshalBigDay converts a BigDay to its wire form. Exported for the
// validate command, which round-trips fixture files through the same codec.
func MarshalBigDay(b cluster.BigDay) BigDayRecord {
	rec := BigDayRecord{
		Day:              b.Day.Format("2006-01-02"),
		ClusterID:        b.ClusterID,
		EventCount:       b.EventCount,
		CountsByCategory: b.CountsByCategory,
		MaxCategory:      b.MaxCategory,
		TotalCasualties:  b.TotalCasualties,
		TotalEnergyJ:     b.TotalEnergy,
		StartTime:        b.StartTime,
		MedianTime:       b.MedianTime,
		EndTime:          b.EndTime,
		DurationSeconds:  b.Duration.Seconds(),
		Footprint:        b.Footprint,
		FootprintAreaM2:  b.FootprintArea,
		Centroid:         b.Centroid,
		Covariates:       b.Covariates,
		ProcessedAt:      b.ProcessedAt,
	}
	rec.EventIDs = make([]string, len(b.Events))
	for i, e := range b.Events {
		rec.EventIDs[i] = e.ID
	}
	if b.FootprintArea > 0 {
		d := b.Density
		rec.Density = &d
		rec.DensityDefined = true
	}
	return rec
}

// serializeToMessage marshals a BigDay into a Kafka message keyed by the
// compound (day, cluster id) key.
func serializeToMessage(b cluster.BigDay) (kafkago.Message, error) {
	data, err := json.Marshal(MarshalBigDay(b))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize big day %s: %w", b.Key(), err)
	}
	return kafkago.Message{
		Key:   []byte(b.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "day", Value: []byte(b.Day.Format("2006-01-02"))},
			{Key: "event_count", Value: []byte(strconv.Itoa(b.EventCount))},
			{Key: "processed_at", Value: []byte(b.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
