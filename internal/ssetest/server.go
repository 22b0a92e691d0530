// Package ssetest provides an event stream server that supports resumption,
// for testing and demonstrating clients.
package ssetest

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	sse "github.com/tmaxmax/go-sse-resume"
)

// Server is an http.Handler that serves a numbered event stream. Event n has
// ID n and the data "SSE-n", and the stream starts at event 1. A request with
// a Last-Event-ID header resumes after that event; a header that isn't a
// non-negative integer is rejected with 400 Bad Request.
//
// Once all events were sent, requests are answered with 204 No Content,
// which sse.StopOnClientError treats as the end of the stream.
type Server struct {
	// The number of events in the stream. Zero means unbounded.
	Events int
	// The maximum number of events sent on a single connection before it is
	// closed. Zero means no limit.
	Batch int
	// If positive, the connection is aborted in the middle of the event that
	// follows the first FailAfter events of each connection.
	FailAfter int
	// The time to wait before sending each event.
	Interval time.Duration
	// If positive, the first event of each connection tells the client
	// to use this reconnection time.
	Retry time.Duration

	mu       sync.Mutex
	requests []string
}

// Requests returns the Last-Event-ID headers received so far, in order.
// Requests without the header are recorded as empty strings.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.requests...)
}

func (s *Server) record(lastEventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, lastEventID)
}

// Event returns the n-th event of the stream.
func Event(n int) sse.Event {
	return sse.Event{
		ID:   sse.MustEventID(strconv.Itoa(n)),
		Data: fmt.Sprintf("SSE-%d", n),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lastEventID := r.Header.Get("Last-Event-ID")
	s.record(lastEventID)

	next := 1
	if lastEventID != "" {
		n, err := strconv.ParseUint(lastEventID, 10, 31)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid Last-Event-ID %q", lastEventID), http.StatusBadRequest)
			return
		}
		next = int(n) + 1
	}

	if s.Events > 0 && next > s.Events {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for sent := 0; s.Events == 0 || next <= s.Events; sent, next = sent+1, next+1 {
		if s.Batch > 0 && sent == s.Batch {
			return
		}
		if s.Interval > 0 {
			select {
			case <-time.After(s.Interval):
			case <-r.Context().Done():
				return
			}
		}

		ev := Event(next)
		if sent == 0 {
			ev.Retry = s.Retry
		}

		if s.FailAfter > 0 && sent == s.FailAfter {
			_ = writePartialEvent(w, ev)
			flusher.Flush()
			panic(http.ErrAbortHandler)
		}

		if _, err := WriteEvent(w, ev); err != nil {
			return
		}
		flusher.Flush()
	}
}
