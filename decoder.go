package sse

import (
	"fmt"
	"iter"
	"net/http"
	"strings"
	"unicode"
)

// A Decoder turns a response into a lazy sequence of events.
//
// If Decode returns a nil error, the response body is owned by the returned
// sequence: it is closed once the sequence is exhausted or the iteration is
// stopped. The sequence must be iterated exactly once. If Decode fails, it
// closes the body itself.
type Decoder interface {
	Decode(*http.Response) (iter.Seq2[Event, error], error)
}

// DecoderFunc is an adapter to use ordinary functions as a Decoder.
type DecoderFunc func(*http.Response) (iter.Seq2[Event, error], error)

// Decode calls f(res).
func (f DecoderFunc) Decode(res *http.Response) (iter.Seq2[Event, error], error) {
	return f(res)
}

// The ResponseValidator type defines the type of the function
// that checks whether server responses are valid, before starting
// to read events from them.
type ResponseValidator func(*http.Response) error

func contentType(header string) string {
	cts := strings.FieldsFunc(header, func(r rune) bool {
		return unicode.IsSpace(r) || r == ';' || r == ','
	})
	if len(cts) == 0 {
		return ""
	}
	return strings.ToLower(cts[0])
}

// DefaultValidator is the default response validation function. It checks the
// response's status code to be 200 OK, returning a *StatusError otherwise, and
// the content type to be text/event-stream, returning an error that wraps
// ErrUnexpectedContentType otherwise.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html#sse-processing-model.
var DefaultValidator ResponseValidator = func(r *http.Response) error {
	if r.StatusCode != http.StatusOK {
		return &StatusError{Code: r.StatusCode}
	}
	cts := r.Header.Get("Content-Type")
	if expected := "text/event-stream"; contentType(cts) != expected {
		return fmt.Errorf("%w: expected %q, received %q", ErrUnexpectedContentType, expected, cts)
	}
	return nil
}

// NoopValidator is a response validator function that treats all responses as valid.
var NoopValidator ResponseValidator = func(_ *http.Response) error {
	return nil
}

// StreamDecoder is the default Decoder. It validates the response and then
// parses the body as an event stream.
type StreamDecoder struct {
	// Checks the response before reading events. Defaults to DefaultValidator.
	ResponseValidator ResponseValidator
	// See ReadConfig.MaxEventSize.
	MaxEventSize int
}

// Decode implements Decoder.
func (d *StreamDecoder) Decode(res *http.Response) (iter.Seq2[Event, error], error) {
	validate := d.ResponseValidator
	if validate == nil {
		validate = DefaultValidator
	}
	if err := validate(res); err != nil {
		_ = res.Body.Close()
		return nil, err
	}

	events := read(res.Body, d.MaxEventSize)

	return func(yield func(Event, error) bool) {
		defer res.Body.Close()

		for ev, err := range events {
			if !yield(ev, err) {
				return
			}
		}
	}, nil
}
