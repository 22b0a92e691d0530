// Package config holds the configuration of the sseloop command and turns it
// into clients and servers.
package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	sse "github.com/tmaxmax/go-sse-resume"
	"github.com/tmaxmax/go-sse-resume/internal/logging"
	"github.com/tmaxmax/go-sse-resume/internal/ssetest"
)

// Config is the configuration of every sseloop command.
type Config struct {
	Stream  StreamConfig   `mapstructure:"stream"`
	Backoff BackoffConfig  `mapstructure:"backoff"`
	Log     logging.Config `mapstructure:"log"`
	Serve   ServeConfig    `mapstructure:"serve"`
}

// StreamConfig configures the stream consumed by "sseloop stream".
type StreamConfig struct {
	URL         string `mapstructure:"url"`
	LastEventID string `mapstructure:"last_event_id"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	// Stop when the server rejects the request with a permanent 4xx status
	// or answers 204 No Content.
	StopOnClientError bool              `mapstructure:"stop_on_client_error"`
	MaxEventSize      int               `mapstructure:"max_event_size"`
	Header            map[string]string `mapstructure:"header"`
}

// BackoffConfig paces the reconnections of "sseloop stream".
type BackoffConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	Jitter          float64       `mapstructure:"jitter"`
}

// ServeConfig configures the demo stream served by "sseloop serve".
type ServeConfig struct {
	Listen    string        `mapstructure:"listen"`
	Path      string        `mapstructure:"path"`
	Events    int           `mapstructure:"events"`
	Batch     int           `mapstructure:"batch"`
	FailAfter int           `mapstructure:"fail_after"`
	Interval  time.Duration `mapstructure:"interval"`
	Retry     time.Duration `mapstructure:"retry"`
}

// NewDefaultConfig returns the configuration used when nothing is set.
func NewDefaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			MaxEventSize: 64 * 1024,
		},
		Backoff: BackoffConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
			Multiplier:      1.5,
			Jitter:          0.2,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Serve: ServeConfig{
			Listen:   ":8080",
			Path:     "/events",
			Batch:    10,
			Interval: time.Second,
		},
	}
}

// Validate checks the settings that don't depend on the command being run.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if c.Stream.MaxAttempts < 0 {
		return fmt.Errorf("stream.max_attempts must not be negative (got: %d)", c.Stream.MaxAttempts)
	}
	if c.Backoff.Jitter < 0 || c.Backoff.Jitter > 1 {
		return fmt.Errorf("backoff.jitter must be between 0 and 1 (got: %g)", c.Backoff.Jitter)
	}
	return nil
}

// Client creates the client that consumes the configured stream.
func (c *Config) Client(logger *zerolog.Logger) (*sse.Client, error) {
	if c.Stream.URL == "" {
		return nil, fmt.Errorf("stream.url is required")
	}

	var lastEventID sse.EventID
	if err := lastEventID.UnmarshalText([]byte(c.Stream.LastEventID)); err != nil {
		return nil, fmt.Errorf("stream.last_event_id: %w", err)
	}

	header := make(http.Header, len(c.Stream.Header))
	for k, v := range c.Stream.Header {
		header.Set(k, v)
	}

	onError := sse.ReconnectOnError
	if c.Stream.StopOnClientError {
		onError = sse.StopOnClientError
	}

	return &sse.Client{
		URL: c.Stream.URL,
		Decoder: &sse.StreamDecoder{
			ResponseValidator: sse.DefaultValidator,
			MaxEventSize:      c.Stream.MaxEventSize,
		},
		LastEventID: lastEventID,
		Header:      header,
		OnError:     onError,
		Backoff: sse.Backoff{
			InitialInterval: c.Backoff.InitialInterval,
			MaxInterval:     c.Backoff.MaxInterval,
			Multiplier:      c.Backoff.Multiplier,
			Jitter:          c.Backoff.Jitter,
		},
		MaxAttempts: c.Stream.MaxAttempts,
		Logger:      logger,
	}, nil
}

// Server creates the demo stream server.
func (c *Config) Server() *ssetest.Server {
	return &ssetest.Server{
		Events:    c.Serve.Events,
		Batch:     c.Serve.Batch,
		FailAfter: c.Serve.FailAfter,
		Interval:  c.Serve.Interval,
		Retry:     c.Serve.Retry,
	}
}
