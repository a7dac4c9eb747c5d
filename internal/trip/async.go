package trip

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AsyncConfig holds configuration for an AsyncRecorder.
type AsyncConfig struct {
	// Recorder does the actual work (required).
	Recorder Recorder

	// Timeout bounds each background call (default: 10 seconds).
	Timeout time.Duration

	// Logger for failures.
	Logger zerolog.Logger
}

// AsyncRecorder runs Record in the background. Callers never block on or see
// the outcome; failures are logged.
type AsyncRecorder struct {
	next    Recorder
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewAsyncRecorder creates a fire-and-forget recorder.
func NewAsyncRecorder(cfg AsyncConfig) *AsyncRecorder {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &AsyncRecorder{
		next:    cfg.Recorder,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// Record schedules t for recording and returns nil immediately.
// The background call is detached from ctx cancellation but keeps its values.
func (a *AsyncRecorder) Record(ctx context.Context, t Trip) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		start := time.Now()
		if err := a.next.Record(bgCtx, t); err != nil {
			a.logger.Error().Err(err).
				Str("trip_id", t.ID).
				Str("parking_id", t.ParkingID).
				Dur("duration", time.Since(start)).
				Msg("failed to record trip")
			return
		}
		a.logger.Debug().
			Str("trip_id", t.ID).
			Dur("duration", time.Since(start)).
			Msg("trip recorded")
	}()
	return nil
}

// Wait blocks until all scheduled recordings finished or ctx is done.
func (a *AsyncRecorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
