package sse

import (
	"errors"
	"fmt"
	"strings"
)

// The EventID struct represents an optional event ID. The zero value is an
// absent ID. IDs must be passed around as values, not as pointers.
type EventID struct {
	value string
	set   bool
}

// NewEventID creates a set EventID. A valid ID must not contain newlines or
// NUL characters: servers can't send such IDs, so they can't be resumed from.
func NewEventID(value string) (EventID, error) {
	if strings.ContainsAny(value, "\r\n\x00") {
		return EventID{}, fmt.Errorf("input is not a valid event ID: %q", value)
	}
	return EventID{value: value, set: true}, nil
}

// MustEventID is the same as NewEventID, but it panics if the input isn't a valid ID.
func MustEventID(value string) EventID {
	id, err := NewEventID(value)
	if err != nil {
		panic(err)
	}
	return id
}

// IsSet returns true if the receiver holds an ID.
func (i EventID) IsSet() bool {
	return i.set
}

// String returns the ID's value. The value may be an empty string,
// make sure to check if the ID is set before using the value.
func (i EventID) String() string {
	return i.value
}

// header returns the Last-Event-ID header value to send for this ID.
// A set but empty ID is not sent, as a browser's EventSource would do.
func (i EventID) header() (string, bool) {
	return i.value, i.set && i.value != ""
}

// UnmarshalText sets the ID's value to the given text. Empty text leaves the ID unset.
// If the input is invalid, the previous value is discarded.
func (i *EventID) UnmarshalText(data []byte) error {
	*i = EventID{}

	if len(data) == 0 {
		return nil
	}

	id, err := NewEventID(string(data))
	if err != nil {
		return err
	}

	*i = id

	return nil
}

// ErrIDUnset is returned when calling MarshalText for an unset ID.
var ErrIDUnset = errors.New("tried to marshal to text an unset ID")

// MarshalText returns a copy of the ID's value if it is set.
func (i EventID) MarshalText() ([]byte, error) {
	if i.IsSet() {
		return []byte(i.String()), nil
	}

	return nil, ErrIDUnset
}
