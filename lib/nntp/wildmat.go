package nntp

import (
	"bytes"
	"regexp"
	"unicode/utf8"
)

func ValidWildmat(x []byte) bool {
	/*
	 * {RFC 3977}
	 * wildmat = wildmat-pattern *("," ["!"] wildmat-pattern)
	 * wildmat-pattern = 1*wildmat-item
	 * wildmat-item = wildmat-exact / wildmat-wild
	 * wildmat-exact = %x22-29 / %x2B / %x2D-3E / %x40-5A / %x5E-7E /
	 *   UTF8-non-ascii ; exclude ! * , ? [ \ ]
	 * wildmat-wild = "*" / "?"
	 */
	const (
		sStartPattern = iota
		sInsidePattern
		sNegate
	)
	hasunicode := false
	s := sStartPattern
	for _, c := range x {
		if c >= 0x80 {
			hasunicode = true
		}
		if (c >= 0x22 && c <= 0x29) || c == 0x2B ||
			(c >= 0x2D && c <= 0x3E) || (c >= 0x40 && c <= 0x5A) ||
			(c >= 0x5E && c <= 0x7E) || c >= 0x80 /* wildmat-exact */ ||
			c == '*' || c == '?' /* wildmat-wild */ {
			s = sInsidePattern
			continue
		}
		// '!' only allowed in front of pattern
		if c == '!' && s == sStartPattern {
			s = sNegate
			continue
		}
		if c == ',' && s == sInsidePattern {
			s = sStartPattern // next char must be start of new pattern or '!'
			continue
		}
		return false
	}
	// cannot end with ',' or '!'
	return s == sInsidePattern && (!hasunicode || utf8.Valid(x))
}

type wildmatPiece struct {
	re     *regexp.Regexp
	result bool
}

// Wildmat is a compiled wildmat, used for client-side matching when
// the server can't do the pattern work itself.
type Wildmat []wildmatPiece

// CompileWildmat translates a valid wildmat into anchored regexps,
// one per comma-separated piece.
func CompileWildmat(x []byte) (w Wildmat) {
	b := bytes.NewBuffer(make([]byte, 0, 2+2*len(x)))

	result := true

	b.WriteByte('^')
	for _, c := range x {
		if (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') {
			b.WriteByte(c)
			continue
		}
		if c == '?' {
			// matches exactly one character, maybe multi-octet
			b.WriteByte('.')
			continue
		}
		if c == '*' {
			b.WriteByte('.')
			b.WriteByte('*')
			continue
		}
		if c == ',' {
			b.WriteByte('$')
			w = append(w, wildmatPiece{
				re:     regexp.MustCompile(b.String()),
				result: result,
			})
			b.Reset()
			b.WriteByte('^')
			result = true
			continue
		}
		if c == '!' {
			result = false
			continue
		}
		// punct, escape for regexp
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	b.WriteByte('$')
	w = append(w, wildmatPiece{
		re:     regexp.MustCompile(b.String()),
		result: result,
	})
	return
}

func (w Wildmat) CheckString(s string) (result bool) {
	for i := range w {
		// later pieces override earlier ones
		if w[i].re.MatchString(s) {
			result = w[i].result
		}
	}
	return
}
