// Package kafka publishes monthly weather averages to a Kafka topic so
// downstream consumers can follow each ingestion run.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/transit-weather-etl/internal/config"
	"github.com/couchcryptid/transit-weather-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces monthly averages to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	runID  string
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic. runID is
// stamped on every message so consumers can group one run's output.
func NewWriter(cfg *config.Config, runID string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, runID: runID, clock: clockwork.NewRealClock(), logger: logger}
}

// Publish serializes and publishes a batch of monthly rows in a single
// WriteMessages call. Rows of one node share a key and so a partition.
func (w *Writer) Publish(ctx context.Context, rows []domain.MonthlyAverage) error {
	if len(rows) == 0 {
		return nil
	}
	publishedAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i], w.runID, publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish monthly averages: %w", err)
	}
	w.logger.Debug("monthly averages published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a MonthlyAverage into a Kafka message keyed by node.
func serializeToMessage(row domain.MonthlyAverage, runID string, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize monthly average: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(row.NodeID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "month", Value: []byte(fmt.Sprintf("%02d", row.Month))},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
