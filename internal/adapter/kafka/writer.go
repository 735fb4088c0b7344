// Package kafka publishes synthesized storm tracks to a Kafka topic
// for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-track-viewer/internal/config"
	"github.com/couchcryptid/storm-track-viewer/internal/domain"
	"github.com/couchcryptid/storm-track-viewer/internal/observability"
)

// Writer produces track features to the configured topic.
// It implements workflow.TrackPublisher.
type Writer struct {
	writer  *kafkago.Writer
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the tracks topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTracksTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, clock: clockwork.NewRealClock(), metrics: metrics, logger: logger}
}

// SetClock swaps the time source used for the published_at header.
// Tests inject a fake for deterministic output.
func (w *Writer) SetClock(c clockwork.Clock) {
	if c == nil {
		w.clock = clockwork.NewRealClock()
		return
	}
	w.clock = c
}

// PublishTracks serializes and publishes track features in a single
// WriteMessages call for efficiency.
func (w *Writer) PublishTracks(ctx context.Context, dataset string, year int, tracks []domain.Feature) error {
	if len(tracks) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(tracks))
	for i := range tracks {
		msg, err := serializeToMessage(tracks[i], dataset, year, w.clock.Now())
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write track messages: %w", err)
	}
	w.metrics.TracksPublished.Add(float64(len(tracks)))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a track feature into a Kafka message
// keyed by storm id.
func serializeToMessage(track domain.Feature, dataset string, year int, now time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(track)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize track %q: %w", track.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(track.StringProp(domain.PropStormID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset", Value: []byte(dataset)},
			{Key: "year", Value: []byte(strconv.Itoa(year))},
			{Key: "published_at", Value: []byte(now.Format(time.RFC3339))},
		},
	}, nil
}
