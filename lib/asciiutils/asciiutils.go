package asciiutils

// EqualFoldString is basically strcasecmp.
func EqualFoldString(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ac, bc := a[i], b[i]
		if ac == bc {
			continue
		}
		if ac > bc {
			// ensure ac < bc
			ac, bc = bc, ac
		}
		if ac >= 'A' && ac <= 'Z' && ac+'a'-'A' == bc {
			continue
		}
		return false
	}
	return true
}

// StartsWithFoldString checks if b starts with s in case-insensitive way.
func StartsWithFoldString(b, s string) bool {
	if len(b) < len(s) {
		return false
	}
	return EqualFoldString(b[:len(s)], s)
}

func UntilString(s string, c byte) string {
	i := 0
	for ; i < len(s) && s[i] != c; i++ {
	}
	return s[:i]
}

// IterateFields calls f for every whitespace-separated field of s.
func IterateFields(s string, f func(string)) (n int) {
	i := 0
	for {
		// skip space
		for ; i < len(s) && (s[i] == ' ' || s[i] == '\t'); i++ {
		}
		// reached the end?
		if i >= len(s) {
			return
		}
		is := i
		// skip to space or end
		for ; i < len(s) && s[i] != ' ' && s[i] != '\t'; i++ {
		}

		f(s[is:i])
		n++
	}
}

func TrimWSString(b string) string {
	x, y := 0, len(b)
	for x != len(b) && (b[x] == ' ' || b[x] == '\t') {
		x++
	}
	for y != x && (b[y-1] == ' ' || b[y-1] == '\t') {
		y--
	}
	return b[x:y]
}

func TrimWSBytes(b []byte) []byte {
	x, y := 0, len(b)
	for x != len(b) && (b[x] == ' ' || b[x] == '\t') {
		x++
	}
	for y != x && (b[y-1] == ' ' || b[y-1] == '\t') {
		y--
	}
	return b[x:y]
}

// NOTE ASCII space (32) is neither printable character nor control character
func IsPrintableASCIIStr(s string, e byte) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 32 || c >= 127 || c == e {
			return false
		}
	}
	return true
}

func ToLowerString(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
