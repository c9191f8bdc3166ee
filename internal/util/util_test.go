package util

import (
	"strings"
	"testing"
)

func TestValidE164(t *testing.T) {
	cases := map[string]bool{
		"+61412345678":      true,
		"+1234567890":       true,
		"+123456789012345":  true,
		"+1234567890123456": false,
		"+123456789":        false,
		"61412345678":       false,
		"+61 412 345 678":   false,
		"(07) 5611 7044":    false,
		"":                  false,
	}
	for in, want := range cases {
		if got := ValidE164(in); got != want {
			t.Fatalf("ValidE164(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewIDPrefix(t *testing.T) {
	a := NewID("sms")
	b := NewID("sms")
	if !strings.HasPrefix(a, "sms_") {
		t.Fatalf("expected sms_ prefix, got %q", a)
	}
	if a == b {
		t.Fatalf("expected unique ids, got %q twice", a)
	}
}
