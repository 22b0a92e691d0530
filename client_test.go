package sse_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sse "github.com/tmaxmax/go-sse-resume"
	"github.com/tmaxmax/go-sse-resume/internal/ssetest"
)

func serve(t *testing.T, s *ssetest.Server) string {
	t.Helper()

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	return ts.URL
}

func take(t *testing.T, events iter.Seq[sse.Event], n int) []string {
	t.Helper()

	var data []string
	if n == 0 {
		return data
	}
	for ev := range events {
		data = append(data, ev.Data)
		if len(data) == n {
			break
		}
	}
	return data
}

func dataRange(from, to int) []string {
	var data []string
	for i := from; i <= to; i++ {
		data = append(data, fmt.Sprintf("SSE-%d", i))
	}
	return data
}

func textResponse(req *http.Request, body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestClient_Events(t *testing.T) {
	t.Parallel()

	s := &ssetest.Server{Events: 9, Batch: 3}
	c := &sse.Client{URL: serve(t, s)}

	events, errf := c.Events(context.Background())

	assert.Equal(t, dataRange(1, 9), take(t, events, 9))
	require.NoError(t, errf())
	assert.Equal(t, []string{"", "3", "6"}, s.Requests())
}

func TestClient_Events_ResumeFromGivenID(t *testing.T) {
	t.Parallel()

	s := &ssetest.Server{Batch: 42}
	c := &sse.Client{URL: serve(t, s), LastEventID: sse.MustEventID("10")}

	events, errf := c.Events(context.Background())

	got := take(t, events, 43)
	require.NoError(t, errf())
	assert.Equal(t, dataRange(11, 52), got[:42])
	assert.Equal(t, "SSE-53", got[42])
	assert.Equal(t, []string{"10", "52"}, s.Requests())
}

func TestClient_Events_PartialFailures(t *testing.T) {
	t.Parallel()

	s := &ssetest.Server{Events: 6, FailAfter: 2}

	var (
		mu     sync.Mutex
		failed []error
	)
	c := &sse.Client{
		URL: serve(t, s),
		OnError: func(err error) error {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, err)
			return nil
		},
	}

	events, errf := c.Events(context.Background())

	assert.Equal(t, dataRange(1, 6), take(t, events, 6))
	require.NoError(t, errf())
	assert.Equal(t, []string{"", "2", "4"}, s.Requests())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failed, 2)
	for _, err := range failed {
		var connErr *sse.ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, "reading response body failed", connErr.Reason)
	}
}

func TestClient_Events_IDNeverRegresses(t *testing.T) {
	t.Parallel()

	var headers []string
	bodies := []string{
		"id: 1\ndata: a\n\n",
		"data: b\n\n",
		": no events\n",
		"id: 2\ndata: c\n\n",
	}

	c := &sse.Client{
		URL: "http://localhost/stream",
		Send: func(req *http.Request) (*http.Response, error) {
			headers = append(headers, req.Header.Get("Last-Event-ID"))
			body := bodies[0]
			bodies = bodies[1:]
			return textResponse(req, body), nil
		},
	}

	events, errf := c.Events(context.Background())

	assert.Equal(t, []string{"a", "b", "c"}, take(t, events, 3))
	require.NoError(t, errf())
	assert.Equal(t, []string{"", "1", "1", "1"}, headers)
}

func TestClient_Events_SingleConnection(t *testing.T) {
	t.Parallel()

	s := &ssetest.Server{Events: 20, Batch: 1}
	url := serve(t, s)

	var (
		mu      sync.Mutex
		open    int
		maxOpen int
	)
	c := &sse.Client{
		URL: url,
		Send: func(req *http.Request) (*http.Response, error) {
			res, err := http.DefaultClient.Do(req)
			if err != nil {
				return nil, err
			}

			mu.Lock()
			open++
			maxOpen = max(maxOpen, open)
			mu.Unlock()

			res.Body = &onClose{ReadCloser: res.Body, fn: func() {
				mu.Lock()
				open--
				mu.Unlock()
			}}
			return res, nil
		},
	}

	events, errf := c.Events(context.Background())

	assert.Equal(t, dataRange(1, 20), take(t, events, 20))
	require.NoError(t, errf())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxOpen)
	assert.Zero(t, open)
}

type onClose struct {
	io.ReadCloser
	fn   func()
	once sync.Once
}

func (o *onClose) Close() error {
	o.once.Do(o.fn)
	return o.ReadCloser.Close()
}

func TestClient_Events_InvalidLastEventID(t *testing.T) {
	t.Parallel()

	t.Run("Reconnect", func(t *testing.T) {
		t.Parallel()

		s := &ssetest.Server{}
		c := &sse.Client{URL: serve(t, s), LastEventID: sse.MustEventID("bogus"), MaxAttempts: 3}

		events, errf := c.Events(context.Background())

		assert.Empty(t, take(t, events, 1))
		require.ErrorIs(t, errf(), sse.ErrAttemptsExhausted)
		assert.Equal(t, []string{"bogus", "bogus", "bogus"}, s.Requests())
	})

	t.Run("Stop on client error", func(t *testing.T) {
		t.Parallel()

		s := &ssetest.Server{}
		c := &sse.Client{URL: serve(t, s), LastEventID: sse.MustEventID("bogus"), OnError: sse.StopOnClientError}

		events, errf := c.Events(context.Background())

		assert.Empty(t, take(t, events, 1))

		var statusErr *sse.StatusError
		require.ErrorAs(t, errf(), &statusErr)
		assert.Equal(t, http.StatusBadRequest, statusErr.Code)
		assert.Equal(t, []string{"bogus"}, s.Requests())
	})

	t.Run("Stop on no content", func(t *testing.T) {
		t.Parallel()

		s := &ssetest.Server{Events: 2}
		c := &sse.Client{URL: serve(t, s), OnError: sse.StopOnClientError}

		events, errf := c.Events(context.Background())

		assert.Equal(t, dataRange(1, 2), take(t, events, 3))

		var statusErr *sse.StatusError
		require.ErrorAs(t, errf(), &statusErr)
		assert.Equal(t, http.StatusNoContent, statusErr.Code)
		assert.Equal(t, []string{"", "2"}, s.Requests())
	})
}

func TestClient_Events_Cancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	c := &sse.Client{
		URL: "http://localhost/stream",
		Send: func(req *http.Request) (*http.Response, error) {
			attempts++
			<-req.Context().Done()
			return nil, req.Context().Err()
		},
		OnError: func(err error) error {
			t.Errorf("unexpected error passed to handler: %v", err)
			return nil
		},
	}

	events, errf := c.Events(ctx)

	assert.Empty(t, take(t, events, 1))
	require.ErrorIs(t, errf(), context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
}

func TestClient_Events_InvalidURL(t *testing.T) {
	t.Parallel()

	c := &sse.Client{URL: "not a url"}

	events, errf := c.Events(context.Background())

	assert.Empty(t, take(t, events, 1))
	require.Error(t, errf())
}

func TestClient_Start(t *testing.T) {
	t.Parallel()

	s := &ssetest.Server{Events: 5}
	handlerErr := errors.New("handler failed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		received   []string
		failed     []error
		failedOnce bool
	)
	c := &sse.Client{
		URL: serve(t, s),
		OnError: func(err error) error {
			failed = append(failed, err)
			return nil
		},
	}

	err := c.Start(ctx, func(ev sse.Event) error {
		received = append(received, ev.Data)
		if ev.Data == "SSE-2" && !failedOnce {
			failedOnce = true
			return handlerErr
		}
		if ev.Data == "SSE-5" {
			cancel()
		}
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, dataRange(1, 5), received)
	assert.Equal(t, []error{handlerErr}, failed)
	assert.Equal(t, []string{"", "2"}, s.Requests())
}

func TestClient_Start_StopOnError(t *testing.T) {
	t.Parallel()

	s := &ssetest.Server{Events: 3, FailAfter: 1}
	c := &sse.Client{URL: serve(t, s), OnError: sse.StopOnError}

	var received []string
	err := c.Start(context.Background(), func(ev sse.Event) error {
		received = append(received, ev.Data)
		return nil
	})

	var connErr *sse.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, []string{"SSE-1"}, received)
}

func TestRun(t *testing.T) {
	t.Parallel()

	count := func(_ context.Context, events iter.Seq[sse.Event]) (int, error) {
		n := 0
		for range events {
			n++
		}
		return n, nil
	}

	t.Run("Per connection", func(t *testing.T) {
		t.Parallel()

		c := &sse.Client{URL: serve(t, &ssetest.Server{Events: 6, Batch: 2})}

		var results []int
		for n, err := range sse.Run(context.Background(), c, count) {
			require.NoError(t, err)
			results = append(results, n)
			if len(results) == 3 {
				break
			}
		}
		assert.Equal(t, []int{2, 2, 2}, results)
	})

	t.Run("Attempts exhausted", func(t *testing.T) {
		t.Parallel()

		c := &sse.Client{URL: serve(t, &ssetest.Server{Events: 2}), MaxAttempts: 2}

		var (
			results []int
			errs    []error
		)
		for n, err := range sse.Run(context.Background(), c, count) {
			results = append(results, n)
			errs = append(errs, err)
		}
		assert.Equal(t, []int{2, 0, 0}, results)
		assert.Equal(t, []error{nil, nil, sse.ErrAttemptsExhausted}, errs)
	})

	t.Run("Handler error", func(t *testing.T) {
		t.Parallel()

		handlerErr := errors.New("bad batch")
		c := &sse.Client{URL: serve(t, &ssetest.Server{Batch: 1})}

		for _, err := range sse.Run(context.Background(), c, func(context.Context, iter.Seq[sse.Event]) (struct{}, error) {
			return struct{}{}, handlerErr
		}) {
			require.ErrorIs(t, err, handlerErr)
			break
		}
	})
}

func TestClient_Backoff(t *testing.T) {
	t.Parallel()

	type reconnect struct {
		attempt int
		id      string
		delay   time.Duration
	}

	var reconnects []reconnect
	c := &sse.Client{
		URL:         "http://localhost/stream",
		LastEventID: sse.MustEventID("7"),
		Send: func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
		Backoff:     sse.Backoff{InitialInterval: 5 * time.Millisecond, MaxInterval: 20 * time.Millisecond, Multiplier: 2},
		MaxAttempts: 4,
		OnReconnect: func(attempt int, lastEventID sse.EventID, delay time.Duration) {
			reconnects = append(reconnects, reconnect{attempt, lastEventID.String(), delay})
		},
	}

	events, errf := c.Events(context.Background())

	assert.Empty(t, take(t, events, 1))
	require.ErrorIs(t, errf(), sse.ErrAttemptsExhausted)
	assert.Equal(t, []reconnect{
		{2, "7", 5 * time.Millisecond},
		{3, "7", 10 * time.Millisecond},
		{4, "7", 20 * time.Millisecond},
	}, reconnects)
}

func TestClient_ServerRetry(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	c := &sse.Client{
		URL:     serve(t, &ssetest.Server{Batch: 1, Retry: 10 * time.Millisecond}),
		Backoff: sse.Backoff{InitialInterval: time.Millisecond},
		OnReconnect: func(_ int, _ sse.EventID, delay time.Duration) {
			delays = append(delays, delay)
		},
	}

	events, errf := c.Events(context.Background())

	assert.Equal(t, dataRange(1, 2), take(t, events, 2))
	require.NoError(t, errf())
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, delays)
}

func TestClient_Logger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	c := &sse.Client{
		URL:         serve(t, &ssetest.Server{Events: 2, FailAfter: 1}),
		MaxAttempts: 5,
		Logger:      &logger,
	}

	events, errf := c.Events(context.Background())

	assert.Equal(t, dataRange(1, 2), take(t, events, 2))
	require.NoError(t, errf())

	out := buf.String()
	assert.Contains(t, out, `"message":"connection attempt failed"`)
	assert.Contains(t, out, `"message":"reconnecting"`)
	assert.Contains(t, out, `"last_event_id":"1"`)
	assert.Contains(t, out, `"stream":`)
}
