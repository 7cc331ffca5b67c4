package random

import (
	"strings"
	"testing"
)

func TestJoinCodeFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := JoinCode(6)
		if len(code) != 6 {
			t.Fatalf("JoinCode length = %d, want 6", len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(joinCodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		seen[code] = struct{}{}
	}
	// Not a uniqueness guarantee, just a sanity check that the generator
	// is not stuck.
	if len(seen) < 100 {
		t.Fatalf("only %d distinct codes out of 200", len(seen))
	}
}

func TestJoinCodeAvoidsAmbiguousRunes(t *testing.T) {
	for _, r := range "0O1I" {
		if strings.ContainsRune(joinCodeAlphabet, r) {
			t.Errorf("alphabet contains ambiguous rune %q", r)
		}
	}
}

func TestRandStringLength(t *testing.T) {
	if got := len(RandString(64)); got != 64 {
		t.Fatalf("RandString(64) length = %d", got)
	}
	if RandString(0) != "" {
		t.Fatal("RandString(0) should be empty")
	}
}
