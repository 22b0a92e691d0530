package sse

import (
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/tmaxmax/go-sse-resume/internal/parser"
)

// The Event struct represents an event sent to the client by a server.
type Event struct {
	// The ID the server assigned to this event. It is set only if the event
	// had an id field.
	ID EventID
	// The event's type. It is empty if the event is unnamed.
	Type string
	// The event's payload.
	Data string
	// The reconnection time requested by the server with this event,
	// or zero if the event had no valid retry field.
	Retry time.Duration
}

// String returns the event's data.
func (e Event) String() string {
	return e.Data
}

// ErrUnexpectedEOF is yielded when an event stream ends in the middle of an event.
// The incomplete event is discarded.
var ErrUnexpectedEOF = parser.ErrUnexpectedEOF

// ReadConfig is used to configure how Read behaves.
type ReadConfig struct {
	// MaxEventSize is the maximum expected length of a single line of the
	// stream. Longer lines result in an error.
	//
	// By default this limit is 64KB.
	MaxEventSize int
}

// Read parses an event stream and yields all incoming events. On the first
// error iteration stops: the error is yielded together with a zero Event.
// Reaching EOF after a complete event is not an error.
//
// Read doesn't handle reconnection. Use a Client for that.
func Read(r io.Reader, cfg *ReadConfig) iter.Seq2[Event, error] {
	maxEventSize := 0
	if cfg != nil {
		maxEventSize = cfg.MaxEventSize
	}

	return read(r, maxEventSize)
}

func isRetryValue(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}

func read(r io.Reader, maxEventSize int) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		p := parser.New(r)
		if maxEventSize > 0 {
			p.Buffer(nil, maxEventSize)
		}

		var (
			ev    Event
			data  strings.Builder
			dirty bool
		)

		for f := (parser.Field{}); p.Next(&f); {
			switch f.Name {
			case parser.FieldNameData:
				data.WriteString(f.Value)
				data.WriteByte('\n')
				dirty = true
			case parser.FieldNameEvent:
				ev.Type = f.Value
				dirty = true
			case parser.FieldNameID:
				// IDs that contain the null byte must be ignored:
				// https://html.spec.whatwg.org/multipage/server-sent-events.html#event-stream-interpretation
				if strings.IndexByte(f.Value, 0) != -1 {
					break
				}
				ev.ID = EventID{value: f.Value, set: true}
				dirty = true
			case parser.FieldNameRetry:
				if !isRetryValue(f.Value) {
					break
				}
				n, err := strconv.ParseInt(f.Value, 10, 64)
				if err != nil {
					break
				}
				ev.Retry = time.Duration(n) * time.Millisecond
				dirty = true
			default:
				if !dirty {
					continue
				}
				if s := data.String(); s != "" {
					ev.Data = s[:len(s)-1]
				}
				if !yield(ev, nil) {
					return
				}
				ev, dirty = Event{}, false
				data.Reset()
			}
		}

		err := p.Err()
		if err == nil && dirty {
			err = ErrUnexpectedEOF
		}
		if err != nil {
			yield(Event{}, err)
		}
	}
}
