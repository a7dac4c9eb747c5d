package trip

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// EventTripStarted is the event_type attribute of trip messages.
const EventTripStarted = "trip_started"

// Publisher sends one message and waits for the server acknowledgement.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// TopicPublisher adapts a Pub/Sub publisher to Publisher.
type TopicPublisher struct {
	publisher *pubsub.Publisher
}

// NewTopicPublisher returns a publisher for topic on client.
func NewTopicPublisher(client *pubsub.Client, topic string) *TopicPublisher {
	return &TopicPublisher{publisher: client.Publisher(topic)}
}

// Publish implements Publisher.
func (p *TopicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	return result.Get(ctx)
}

// Stop flushes pending messages.
func (p *TopicPublisher) Stop() {
	p.publisher.Stop()
}

// PubSubRecorder publishes trips for the history worker.
type PubSubRecorder struct {
	publisher Publisher
	logger    zerolog.Logger
}

// NewPubSubRecorder creates a recorder that publishes to publisher.
func NewPubSubRecorder(publisher Publisher, logger zerolog.Logger) *PubSubRecorder {
	return &PubSubRecorder{publisher: publisher, logger: logger}
}

// Record publishes t as a JSON message.
func (r *PubSubRecorder) Record(ctx context.Context, t Trip) error {
	if err := t.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling trip: %w", err)
	}

	id, err := r.publisher.Publish(ctx, data, map[string]string{
		"event_type": EventTripStarted,
		"user_id":    t.UserID,
	})
	if err != nil {
		return fmt.Errorf("publishing trip %s: %w", t.ID, err)
	}

	r.logger.Debug().
		Str("trip_id", t.ID).
		Str("message_id", id).
		Msg("trip published")
	return nil
}

// Decode parses a trip message body.
func Decode(data []byte) (Trip, error) {
	var t Trip
	if err := json.Unmarshal(data, &t); err != nil {
		return Trip{}, fmt.Errorf("decoding trip: %w", err)
	}
	return t, t.Validate()
}
