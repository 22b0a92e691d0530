// Package parser tokenizes an event stream into fields, following
// https://html.spec.whatwg.org/multipage/server-sent-events.html#event-stream-interpretation.
package parser

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrUnexpectedEOF is returned when the input ends in the middle of a line.
var ErrUnexpectedEOF = errors.New("go-sse-resume: unexpected end of input")

var bom = []byte("\xEF\xBB\xBF")

// Parser extracts fields from a reader. Reading is buffered using a bufio.Scanner,
// so the default maximum line length is bufio.MaxScanTokenSize.
// A leading UTF-8 BOM is removed.
type Parser struct {
	sc      *bufio.Scanner
	err     error
	started bool
	// The previous line ended with a lone CR.
	afterCR bool
}

// New returns a Parser that extracts fields from r.
func New(r io.Reader) *Parser {
	sc := bufio.NewScanner(r)
	sc.Split(splitLines)

	return &Parser{sc: sc}
}

// Buffer sets the initial buffer and the maximum line size of the parser.
// It must be called before the first call to Next.
func (p *Parser) Buffer(buf []byte, maxSize int) {
	p.sc.Buffer(buf, maxSize)
}

// Next parses the next field into f. Blank lines are reported as EventEnd,
// comments and unknown fields are skipped. It returns false when the input is
// exhausted or an error occurred.
func (p *Parser) Next(f *Field) bool {
	for p.sc.Scan() {
		line := p.sc.Bytes()
		if !p.started {
			line = bytes.TrimPrefix(line, bom)
			p.started = true
		}
		if p.afterCR && len(line) == 1 && line[0] == '\n' {
			// The second half of a CRLF that was split across reads.
			p.afterCR = false
			continue
		}
		p.afterCR = len(line) > 0 && line[len(line)-1] == '\r'

		content, terminated := trimNewline(line)
		if !terminated {
			p.err = ErrUnexpectedEOF
			return false
		}
		if len(content) == 0 {
			*f = EventEnd
			return true
		}
		if field, ok := parseLine(content); ok {
			*f = field
			return true
		}
	}

	return false
}

// Err returns the error that stopped parsing. It is nil if the input ended
// cleanly after a complete line.
func (p *Parser) Err() error {
	if err := p.sc.Err(); err != nil {
		return err
	}
	return p.err
}
