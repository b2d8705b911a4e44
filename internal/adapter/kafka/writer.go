// Package kafka publishes newly cached flood peak events to a topic so
// downstream consumers (alerting, dashboards) hear about new crests without
// polling the cache file. The sink is optional and best-effort.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hondrospj/bivalve-flooding-finaltest/internal/domain"
)

// Writer produces peak events to a Kafka topic.
// It implements pipeline.EventSink.
type Writer struct {
	writer *kafkago.Writer
	site   string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic. The site
// identifies the gauge the events belong to and becomes the message key, so
// one topic can carry many stations with per-station ordering.
func NewWriter(brokers []string, topic, site string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, site: site, logger: logger}
}

// PublishPeaks serializes and publishes the events in a single WriteMessages
// call.
func (w *Writer) PublishPeaks(ctx context.Context, events []domain.PeakEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(w.site, events[i])
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

// serializeToMessage marshals a PeakEvent into a Kafka message keyed by site.
func serializeToMessage(site string, event domain.PeakEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize peak event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(site),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "tier", Value: []byte(event.Tier)},
			{Key: "peak_time", Value: []byte(event.Time.UTC().Format(time.RFC3339))},
			{Key: "value", Value: []byte(strconv.FormatFloat(event.Value, 'f', -1, 64))},
		},
	}, nil
}
