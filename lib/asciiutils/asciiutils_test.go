package asciiutils

import (
	"testing"
)

func TestEqualFoldString(t *testing.T) {
	if !EqualFoldString("Message-ID", "message-id") {
		t.Fatal("fold compare failed")
	}
	if EqualFoldString("abc", "abd") || EqualFoldString("abc", "abcd") {
		t.Fatal("false positive")
	}
}

func TestStartsWithFoldString(t *testing.T) {
	if !StartsWithFoldString("AUTHINFO user joe", "authinfo") {
		t.Fatal("prefix fold failed")
	}
	if StartsWithFoldString("AUTH", "authinfo") {
		t.Fatal("short string matched longer prefix")
	}
}

func TestTrimWS(t *testing.T) {
	if TrimWSString(" \t x y \t") != "x y" {
		t.Fatal("TrimWSString")
	}
	if string(TrimWSBytes([]byte("\t\t"))) != "" {
		t.Fatal("TrimWSBytes all-space")
	}
}

func TestIterateFields(t *testing.T) {
	var got []string
	n := IterateFields("  one \t two  three ", func(f string) {
		got = append(got, f)
	})
	if n != 3 || got[0] != "one" || got[2] != "three" {
		t.Fatalf("n=%d got=%v", n, got)
	}
}

func TestToLowerString(t *testing.T) {
	s := "already lower"
	if ToLowerString(s) != s {
		t.Fatal("lower-only string changed")
	}
	if ToLowerString("MiXeD-42") != "mixed-42" {
		t.Fatal("mixed case")
	}
}
