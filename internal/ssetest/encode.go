package ssetest

import (
	"io"
	"strconv"

	sse "github.com/tmaxmax/go-sse-resume"
	"github.com/tmaxmax/go-sse-resume/internal/parser"
)

type countWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countWriter) field(name parser.FieldName, value string) {
	c.write(string(name))
	c.write(": ")
	c.write(value)
	c.write("\n")
}

func (c *countWriter) write(s string) {
	if c.err != nil {
		return
	}
	n, err := io.WriteString(c.w, s)
	c.n += int64(n)
	c.err = err
}

// WriteEvent writes the wire representation of ev to w, terminated by a blank
// line. Multiline data is split into multiple data fields; empty data is
// omitted.
func WriteEvent(w io.Writer, ev sse.Event) (int64, error) {
	cw := &countWriter{w: w}
	writeFields(cw, ev)
	cw.write("\n")
	return cw.n, cw.err
}

// writePartialEvent writes the fields of ev without the terminating blank line.
func writePartialEvent(w io.Writer, ev sse.Event) error {
	cw := &countWriter{w: w}
	writeFields(cw, ev)
	return cw.err
}

func writeFields(cw *countWriter, ev sse.Event) {
	if ev.ID.IsSet() {
		cw.field(parser.FieldNameID, ev.ID.String())
	}
	if ev.Type != "" {
		cw.field(parser.FieldNameEvent, ev.Type)
	}
	if ev.Retry > 0 {
		cw.field(parser.FieldNameRetry, strconv.FormatInt(ev.Retry.Milliseconds(), 10))
	}

	data := []byte(ev.Data)
	for len(data) > 0 {
		index, length := parser.NewlineIndex(data)
		cw.field(parser.FieldNameData, string(data[:index]))
		data = data[index+length:]
	}
}
