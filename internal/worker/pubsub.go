package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/trip"
)

// Job types carried in JobMessage.JobType.
const (
	JobDelayRefresh = "delay_refresh"
	JobHealthCheck  = "health_check"
)

// JobMessage represents a scheduled job message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Outcome tells the subscriber what to do with a message.
type Outcome int

const (
	Ack Outcome = iota
	Nack
)

// Processor handles one message body. It does not depend on Pub/Sub.
type Processor struct {
	trips      trip.Recorder
	refreshJob *RefreshJob
	logger     zerolog.Logger
}

// ProcessorConfig holds configuration for a Processor.
type ProcessorConfig struct {
	// Trips stores started trips (required for trip events).
	Trips trip.Recorder

	// RefreshJob runs delay refreshes (required for refresh and health jobs).
	RefreshJob *RefreshJob

	Logger zerolog.Logger
}

// NewProcessor creates a new message processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		trips:      cfg.Trips,
		refreshJob: cfg.RefreshJob,
		logger:     cfg.Logger,
	}
}

// Process handles a message and returns whether to ack it.
func (p *Processor) Process(ctx context.Context, data []byte, attrs map[string]string) Outcome {
	startTime := time.Now()

	if attrs["event_type"] == trip.EventTripStarted {
		return p.processTrip(ctx, data)
	}

	var job JobMessage
	if err := json.Unmarshal(data, &job); err != nil {
		p.logger.Error().Err(err).Msg("failed to parse message")
		return Nack
	}

	var err error
	switch job.JobType {
	case JobDelayRefresh:
		err = p.handleDelayRefresh(ctx)
	case JobHealthCheck:
		err = p.handleHealthCheck(ctx)
	default:
		p.logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		return Ack // Ack unknown messages to prevent redelivery
	}

	if err != nil {
		p.logger.Error().Err(err).Str("job_type", job.JobType).Msg("job failed")
		return Nack
	}

	p.logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return Ack
}

func (p *Processor) processTrip(ctx context.Context, data []byte) Outcome {
	t, err := trip.Decode(data)
	if err != nil {
		// Redelivery cannot fix a malformed trip.
		p.logger.Error().Err(err).Msg("dropping invalid trip message")
		return Ack
	}
	if p.trips == nil {
		p.logger.Error().Str("trip_id", t.ID).Msg("no trip repository configured")
		return Nack
	}

	if err := p.trips.Record(ctx, t); err != nil {
		p.logger.Error().Err(err).Str("trip_id", t.ID).Msg("failed to store trip")
		return Nack
	}

	logger := p.logger.Info().
		Str("trip_id", t.ID).
		Str("user_id", t.UserID).
		Str("parking_id", t.ParkingID)
	if t.SavedMinutes != nil {
		logger = logger.Int("saved_minutes", *t.SavedMinutes)
	}
	logger.Msg("trip stored")
	return Ack
}

func (p *Processor) handleDelayRefresh(ctx context.Context) error {
	if p.refreshJob == nil {
		return fmt.Errorf("delay refresh: no refresh job configured")
	}

	result := p.refreshJob.Run(ctx)

	// Consider it successful if at least half the points succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return nil
}

func (p *Processor) handleHealthCheck(ctx context.Context) error {
	if p.refreshJob == nil {
		return fmt.Errorf("health check: no refresh job configured")
	}
	p.logger.Debug().Msg("running health check")

	// Refresh a single point to verify store and estimator connectivity.
	healthCheckJob := NewRefreshJob(RefreshJobConfig{
		Config: RefreshConfig{
			Targets: []RefreshTarget{{
				Name:     "health-check",
				Priority: 1,
				Points:   []geo.Coordinate{{Lat: 48.13743, Lon: 11.57549}},
			}},
			RadiusMeters: 300,
			Concurrency:  1,
			Timeout:      10 * time.Second,
		},
		Logger:    p.logger,
		Spots:     p.refreshJob.spots,
		Estimator: p.refreshJob.estimator,
	})

	result := healthCheckJob.Run(ctx)
	if result.Failed > 0 || len(result.Errors) > 0 {
		return fmt.Errorf("health check failed: %d errors", len(result.Errors))
	}

	p.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	h.logger.Debug().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Msg("received pubsub message")

	if h.processor.Process(ctx, msg.Data, msg.Attributes) == Nack {
		msg.Nack()
		return
	}
	msg.Ack()
}
