package bufreader

import "errors"

var ErrLineTooLong = errors.New("bufreader: line too long")

const defaultMaxLine = 4096

// LineSource reassembles CRLF-terminated lines out of arbitrary-sized
// chunks of a byte stream. It never blocks: when no complete line is
// buffered, Next returns ok=false and the caller feeds more data once
// it has some.
type LineSource struct {
	b    []byte
	r, w int
	max  int
}

func NewLineSource() *LineSource {
	return NewLineSourceSize(defaultMaxLine)
}

func NewLineSourceSize(max int) *LineSource {
	if max <= 0 {
		panic("max must be >0")
	}
	return &LineSource{b: make([]byte, 0, 512), max: max}
}

// Feed appends a chunk read from the transport.
func (s *LineSource) Feed(p []byte) {
	if s.r != 0 {
		// compact before growing
		copy(s.b, s.b[s.r:s.w])
		s.w -= s.r
		s.r = 0
		s.b = s.b[:s.w]
	}
	s.b = append(s.b, p...)
	s.w = len(s.b)
}

// Next returns the next complete line without its terminator.
// LF alone is accepted as terminator too; some servers are sloppy.
// Returned slice is valid until the next Feed call.
func (s *LineSource) Next() (line []byte, ok bool, err error) {
	for i := s.r; i < s.w; i++ {
		if s.b[i] != '\n' {
			continue
		}
		e := i
		if e > s.r && s.b[e-1] == '\r' {
			e--
		}
		if e-s.r > s.max {
			return nil, false, ErrLineTooLong
		}
		line = s.b[s.r:e]
		s.r = i + 1
		return line, true, nil
	}
	if s.w-s.r > s.max {
		return nil, false, ErrLineTooLong
	}
	return nil, false, nil
}

// Buffered reports amount of bytes pending without a terminator yet.
func (s *LineSource) Buffered() int {
	return s.w - s.r
}

// Reset drops all buffered data. used on connection teardown.
func (s *LineSource) Reset() {
	s.r = 0
	s.w = 0
	s.b = s.b[:0]
}
