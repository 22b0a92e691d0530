package sse

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// SendFunc sends a single request and returns its response. The request
// carries the context given to the Client, which must be honored.
type SendFunc func(*http.Request) (*http.Response, error)

// The Client struct is used to consume an event stream without gaps.
// It repeatedly connects to the same URL: every time a connection ends,
// successfully or not, it reconnects using the ID of the last event received,
// so the server can resume the stream.
//
// A Client is safe for concurrent use, as long as its fields are not modified.
// Each call to Events, Start or Run drives its own, independent stream.
type Client struct {
	// The absolute URL of the event stream.
	URL string
	// Sends the requests. Defaults to http.DefaultClient.Do.
	Send SendFunc
	// Decodes responses into events. Defaults to a StreamDecoder
	// that uses DefaultValidator.
	Decoder Decoder
	// The ID the first connection resumes from. If unset,
	// the stream starts from wherever the server chooses.
	LastEventID EventID
	// Additional headers sent with every request.
	Header http.Header
	// Called for every failed connection attempt. Defaults to ReconnectOnError.
	OnError ErrorHandler
	// Paces reconnections. The zero value reconnects immediately.
	Backoff Backoff
	// The maximum number of connection attempts. Zero means no limit.
	MaxAttempts int
	// A callback executed before every reconnection, with the number of the
	// upcoming attempt, the ID it resumes from and the delay before it starts.
	OnReconnect func(attempt int, lastEventID EventID, delay time.Duration)
	// Logs the stream's lifecycle. Logging is disabled if nil.
	Logger *zerolog.Logger
}

// DefaultClient holds the values used for unset Client fields.
var DefaultClient = &Client{
	Send:    http.DefaultClient.Do,
	Decoder: &StreamDecoder{ResponseValidator: DefaultValidator},
	OnError: ReconnectOnError,
}

func (c *Client) withDefaults() (Client, error) {
	cfg := *c

	u, err := url.Parse(cfg.URL)
	if err != nil || !u.IsAbs() {
		return cfg, fmt.Errorf("go-sse-resume: invalid stream URL %q", cfg.URL)
	}
	if cfg.Send == nil {
		cfg.Send = DefaultClient.Send
	}
	if cfg.Decoder == nil {
		cfg.Decoder = DefaultClient.Decoder
	}
	if cfg.OnError == nil {
		cfg.OnError = DefaultClient.OnError
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}

	return cfg, nil
}

// Events returns the stream's events, across all connections, in the order
// they were received. The sequence is unbounded: it ends only when the
// iteration is stopped, the context is done, or the Client stops because of
// OnError or MaxAttempts. Stopping the iteration closes the current connection.
//
// The returned function reports why the sequence ended. It returns nil if the
// iteration was stopped by the caller. The sequence can be iterated only once.
func (c *Client) Events(ctx context.Context) (iter.Seq[Event], func() error) {
	var err error

	events := func(yield func(Event) bool) {
		err = c.loop(ctx, func(_ int, events iter.Seq[Event]) (bool, error) {
			for ev := range events {
				if !yield(ev) {
					return false, nil
				}
			}
			return true, nil
		})
	}

	return events, func() error { return err }
}

// EventHandler is a callback that gets called for every event received.
// Returning an error ends the current connection; the error is passed
// to the Client's ErrorHandler.
type EventHandler func(Event) error

// Start consumes the stream, calling fn for every event. It blocks until the
// context is done, in which case it returns the context's error, or the
// Client stops because of OnError or MaxAttempts.
func (c *Client) Start(ctx context.Context, fn EventHandler) error {
	return c.loop(ctx, func(_ int, events iter.Seq[Event]) (bool, error) {
		for ev := range events {
			if err := fn(ev); err != nil {
				return true, err
			}
		}
		return true, nil
	})
}

// Handler consumes the events of a single connection and produces a result
// from them. The events must not be used after the Handler returns: the
// connection is considered finished at that point.
type Handler[T any] func(ctx context.Context, events iter.Seq[Event]) (T, error)

// Run consumes the stream one connection at a time. The handler is called
// once per connection attempt, and its results are yielded in attempt order.
// A handler error is yielded for its attempt and the stream continues; stop
// the iteration to stop the stream.
//
// If the Client stops by itself, the reason is yielded last, with the
// zero value of T.
func Run[T any](ctx context.Context, c *Client, h Handler[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		err := c.loop(ctx, func(_ int, events iter.Seq[Event]) (bool, error) {
			return yield(h(ctx, events)), nil
		})
		if err != nil {
			var zero T
			yield(zero, err)
		}
	}
}
