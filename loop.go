package sse

import (
	"context"
	"iter"

	"github.com/google/uuid"
)

// States of a stream, as they appear in logs.
const (
	stateIdle      = "idle"
	stateAcquiring = "acquiring"
	stateStreaming = "streaming"
)

// consumer receives the events of one connection attempt. It reports whether
// the stream should go on and, optionally, an error that failed the attempt.
type consumer func(attempt int, events iter.Seq[Event]) (bool, error)

// loop drives the stream: it makes one connection attempt at a time, hands its
// events to consume and then reconnects with the ID of the last event seen.
// The next attempt is made only after consume returned, so two connections
// are never read from at the same time.
//
// loop returns nil when consume stops the stream, and an error when the
// context is done or the Client stops by itself.
func (c *Client) loop(ctx context.Context, consume consumer) error {
	cfg, err := c.withDefaults()
	if err != nil {
		return err
	}

	log := cfg.Logger.With().Str("stream", uuid.NewString()).Str("url", cfg.URL).Logger()
	pace := cfg.Backoff.newPacer()
	lastEventID := cfg.LastEventID

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		alog := log.With().Int("attempt", attempt).Logger()
		alog.Debug().
			Str("state", stateIdle).
			Bool("resume", lastEventID.IsSet()).
			Str("last_event_id", lastEventID.String()).
			Msg("connecting")

		events, attemptErr := cfg.attempt(ctx, alog, lastEventID)
		tracked, tracker := trackLastEventID(events, lastEventID)
		cont, consumeErr := consume(attempt, tracked)
		// The attempt is over once consume returns, even if it didn't drain the events.
		tracker.resolve()
		<-tracker.Done()

		lastEventID = tracker.LastEventID()
		if !cont {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, err := range [...]error{attemptErr(), consumeErr} {
			if err == nil {
				continue
			}
			alog.Warn().Err(err).Int("events", tracker.count).Msg("connection attempt failed")
			if stop := cfg.OnError(err); stop != nil {
				alog.Error().Err(stop).Msg("stream stopped")
				return stop
			}
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			alog.Error().Int("max_attempts", cfg.MaxAttempts).Msg("stream stopped")
			return ErrAttemptsExhausted
		}

		delay := pace.next(tracker.count > 0, tracker.retry)
		if cfg.OnReconnect != nil {
			cfg.OnReconnect(attempt+1, lastEventID, delay)
		}
		alog.Info().
			Int("events", tracker.count).
			Str("last_event_id", lastEventID.String()).
			Dur("delay", delay).
			Msg("reconnecting")

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}
