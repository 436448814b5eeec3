package nntp

import (
	"fmt"
	"time"
)

// command encoding is pure formatting: no I/O happens here.
// every command is CRLF-terminated; AUTHINFO PASS payload never
// reaches logs.

const maskedPass = "AUTHINFO pass *****"

func encodeLine(format string, args ...interface{}) []byte {
	b := make([]byte, 0, 64)
	b = fmt.Appendf(b, format, args...)
	return append(b, '\r', '\n')
}

func encodeCmd(format string, args ...interface{}) (cmd []byte, logStr string) {
	cmd = encodeLine(format, args...)
	logStr = string(cmd[:len(cmd)-2])
	return
}

func encodeAuthPass(pass string) (cmd []byte, logStr string) {
	cmd = encodeLine("AUTHINFO pass %s", pass)
	return cmd, maskedPass
}

// encodeNewGroups renders `NEWGROUPS yymmdd hhmmss` in server-naive
// local form; old servers predate the GMT argument.
func encodeNewGroups(t time.Time) (cmd []byte, logStr string) {
	t = t.UTC()
	Y, M, D := t.Date()
	h, m, s := t.Clock()
	return encodeCmd("NEWGROUPS %02d%02d%02d %02d%02d%02d GMT",
		Y%100, int(M), D, h, m, s)
}

// dotStuffBody converts an article body into its on-wire form:
// CRLF line endings, leading dots doubled, terminating `.` line
// appended. Input may use LF or CRLF endings; a missing final newline
// is tolerated.
func dotStuffBody(body []byte) []byte {
	// worst case: every line starts with '.' and uses bare LF
	out := make([]byte, 0, len(body)+len(body)/8+8)

	s := 0
	flush := func(line []byte) {
		if len(line) > 0 && line[0] == '.' {
			out = append(out, '.')
		}
		out = append(out, line...)
		out = append(out, '\r', '\n')
	}
	for i := 0; i < len(body); i++ {
		if body[i] != '\n' {
			continue
		}
		e := i
		if e > s && body[e-1] == '\r' {
			e--
		}
		flush(body[s:e])
		s = i + 1
	}
	if s < len(body) {
		flush(body[s:])
	}
	out = append(out, '.', '\r', '\n')
	return out
}

// dotUnstuffLine undoes receiving-side dot escaping for one line.
// Returns nil,true when line is the end-of-body marker.
func dotUnstuffLine(line []byte) (out []byte, end bool) {
	if len(line) == 1 && line[0] == '.' {
		return nil, true
	}
	if len(line) > 0 && line[0] == '.' {
		return line[1:], false
	}
	return line, false
}
