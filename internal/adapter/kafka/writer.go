// Package kafka publishes the run summary for downstream collaborators that
// prefer a push signal over polling the latest CSV. Publishing is
// feature-flagged: with no brokers configured the pipeline runs without it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/geoandina/rainfall-etl/internal/domain"
)

// Writer produces run summaries to a Kafka topic.
// It implements pipeline.SummaryPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a producer for the summary topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSummary serializes and publishes one run summary, keyed by the data
// date so replays of the same day compact naturally.
func (w *Writer) PublishSummary(ctx context.Context, s domain.RunSummary) error {
	msg, err := summaryMessage(s)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func summaryMessage(s domain.RunSummary) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.DataDate),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "processed_at", Value: []byte(s.ProcessedAt)},
		},
	}, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}
