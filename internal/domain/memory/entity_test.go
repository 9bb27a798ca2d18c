package memory

import (
	"strings"
	"testing"
)

func TestFingerprintStable(t *testing.T) {
	content := "suspicious payload from 10.0.0.5"
	first := Fingerprint(content)
	for i := 0; i < 10; i++ {
		if got := Fingerprint(content); got != first {
			t.Fatalf("fingerprint changed between calls: %s != %s", got, first)
		}
	}
}

func TestFingerprintNormalization(t *testing.T) {
	base := Fingerprint("Suspicious Payload from 10.0.0.5")
	variants := []string{
		"suspicious payload from 10.0.0.5",
		"  Suspicious   Payload\tfrom\n10.0.0.5  ",
		"SUSPICIOUS PAYLOAD FROM 10.0.0.5",
	}
	for _, v := range variants {
		if got := Fingerprint(v); got != base {
			t.Errorf("variant %q produced different fingerprint", v)
		}
	}

	if Fingerprint("something else entirely") == base {
		t.Error("different content produced the same fingerprint")
	}
}

func TestExcerptTruncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	if got := Excerpt(long); len(got) != excerptLen {
		t.Fatalf("excerpt length = %d, want %d", len(got), excerptLen)
	}
	if got := Excerpt("  short  "); got != "short" {
		t.Fatalf("excerpt = %q, want %q", got, "short")
	}
}
