package parser

func isNewlineChar(b byte) bool {
	return b == '\n' || b == '\r'
}

// NewlineIndex returns the index of the first newline sequence (\n, \r, or \r\n)
// in s together with the sequence's length. If s contains no newline, index is
// len(s) and length is 0.
func NewlineIndex(s []byte) (index, length int) {
	for l := len(s); index < l; index++ {
		b := s[index]
		if !isNewlineChar(b) {
			continue
		}
		length = 1
		if b == '\r' && index < l-1 && s[index+1] == '\n' {
			length = 2
		}
		break
	}
	return
}

// splitLines is a bufio.SplitFunc that yields single lines of an event stream,
// including their line ending. A trailing line with no ending is returned only
// at EOF, so the caller can tell it was not terminated.
//
// A CR at the end of the buffer ends the line right away, so the LF of a CRLF
// split across reads comes back as a token of its own; Parser drops it.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}

	index, length := NewlineIndex(data)
	if length == 0 {
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}

	advance = index + length
	return advance, data[:advance], nil
}

// trimNewline removes the line ending from line and reports whether it had one.
func trimNewline(line []byte) ([]byte, bool) {
	l := len(line)
	if l == 0 || !isNewlineChar(line[l-1]) {
		return line, false
	}
	if line[l-1] == '\n' && l > 1 && line[l-2] == '\r' {
		return line[:l-2], true
	}
	return line[:l-1], true
}
