package nntp

import (
	"unsafe"
)

func unsafeBytesToStr(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

func unsafeStrToBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func isNumberSlice(x []byte) bool {
	if len(x) == 0 {
		return false
	}
	for _, c := range x {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func stoi64(x []byte) (n uint64) {
	for _, c := range x {
		n = n*10 + uint64(c-'0')
	}
	return
}

func ToUpperASCII(b []byte) {
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
}

// parseKeyword uppercases and returns length of initial keyword in b.
func parseKeyword(b []byte) int {
	i := 0
	l := len(b)
	for {
		if i >= l {
			return i
		}
		c := b[i]
		if c == ' ' || c == '\t' {
			return i
		}
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
		i++
	}
}

func ValidGroupSlice(s []byte) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if !((c >= 0x22 && c <= 0x29) || c == 0x2B ||
			(c >= 0x2D && c <= 0x3E) || (c >= 0x40 && c <= 0x5A) ||
			(c >= 0x5E && c <= 0x7E) || c >= 0x80) {
			return false
		}
	}
	return true
}
