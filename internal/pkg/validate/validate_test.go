package validate

import "testing"

func TestRequired(t *testing.T) {
	if Required("  \t") {
		t.Fatalf("blank value must not pass")
	}
	if !Required(" x ") {
		t.Fatalf("non-blank value must pass")
	}
}

func TestMaxRunesCountsRunesNotBytes(t *testing.T) {
	if !MaxRunes("привет", 6) {
		t.Fatalf("six cyrillic runes must fit a limit of 6")
	}
	if MaxRunes("привет!", 6) {
		t.Fatalf("seven runes must not fit a limit of 6")
	}
	if MaxRunes(string([]byte{0xff, 0xfe}), 10) {
		t.Fatalf("invalid utf-8 must be rejected")
	}
}
