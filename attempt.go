package sse

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"github.com/rs/zerolog"
)

var errNoResponse = errors.New("no response")

func (c *Client) newRequest(ctx context.Context, lastEventID EventID) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, http.NoBody)
	if err != nil {
		return nil, err
	}

	for h, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(h, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if id, ok := lastEventID.header(); ok {
		req.Header.Set("Last-Event-ID", id)
	}

	return req, nil
}

// attempt makes a single connection to the stream, resuming from lastEventID.
// The request is sent when the returned sequence is first iterated.
//
// Failures are never propagated through the sequence: it just ends, without
// any events if the connection couldn't be established. The returned function
// reports the failure, as a *ConnectionError, after the sequence ended.
func (c *Client) attempt(ctx context.Context, log zerolog.Logger, lastEventID EventID) (iter.Seq[Event], func() error) {
	var err error

	events := func(yield func(Event) bool) {
		req, rerr := c.newRequest(ctx, lastEventID)
		if rerr != nil {
			err = &ConnectionError{Reason: "unable to create request", Err: rerr}
			return
		}

		log.Debug().Str("state", stateAcquiring).Msg("sending request")

		res, serr := c.Send(req)
		if serr != nil {
			if res != nil && res.Body != nil {
				_ = res.Body.Close()
			}
			err = &ConnectionError{Req: req, Reason: "unable to execute request", Err: serr}
			return
		}
		if res == nil {
			err = &ConnectionError{Req: req, Reason: "unable to execute request", Err: errNoResponse}
			return
		}
		if res.Body == nil {
			res.Body = http.NoBody
		}

		decoded, derr := c.Decoder.Decode(res)
		if derr != nil {
			err = &ConnectionError{Req: req, Reason: "response validation failed", Err: derr}
			return
		}

		log.Debug().Str("state", stateStreaming).Msg("receiving events")

		for ev, rerr := range decoded {
			if rerr != nil {
				err = &ConnectionError{Req: req, Reason: "reading response body failed", Err: rerr}
				return
			}
			if !yield(ev) {
				return
			}
		}
	}

	return events, func() error { return err }
}
