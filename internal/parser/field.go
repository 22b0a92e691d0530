package parser

import "bytes"

// FieldName is the name of a recognized event stream field.
type FieldName string

// A Field is a single parsed line of an event. A Field with an empty Name marks
// the end of an event (see EventEnd).
type Field struct {
	Name  FieldName
	Value string
}

// Recognized field names. Fields with any other name are ignored.
const (
	FieldNameData  = FieldName("data")
	FieldNameEvent = FieldName("event")
	FieldNameRetry = FieldName("retry")
	FieldNameID    = FieldName("id")
)

// EventEnd is not an actual field. It is returned when a blank line is parsed,
// meaning that the fields before it form a single event.
var EventEnd = Field{}

// IsEventEnd reports whether f marks the end of an event.
func (f Field) IsEventEnd() bool {
	return f.Name == EventEnd.Name
}

func fieldName(b []byte) (FieldName, bool) {
	switch FieldName(b) {
	case FieldNameData:
		return FieldNameData, true
	case FieldNameEvent:
		return FieldNameEvent, true
	case FieldNameRetry:
		return FieldNameRetry, true
	case FieldNameID:
		return FieldNameID, true
	default:
		return "", false
	}
}

// parseLine splits a non-blank line without its line ending into a field.
// Comments and unknown fields are reported as not ok.
func parseLine(line []byte) (Field, bool) {
	name, value, found := bytes.Cut(line, []byte{':'})
	if len(name) == 0 {
		// Lines starting with a colon are comments.
		return Field{}, false
	}
	n, ok := fieldName(name)
	if !ok {
		return Field{}, false
	}
	if found && len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return Field{Name: n, Value: string(value)}, true
}
