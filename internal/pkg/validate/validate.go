package validate

import (
	"strings"
	"unicode/utf8"
)

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxRunes reports whether value is valid UTF-8 of at most limit runes.
func MaxRunes(value string, limit int) bool {
	return utf8.ValidString(value) && utf8.RuneCountInString(value) <= limit
}
