package httpapi

import "strings"

const maxInputRunes = 10000

// SanitizeInput normalizes caller-supplied text: angle brackets are
// stripped (the admin UI renders titles verbatim), surrounding whitespace
// trimmed, and the result truncated to 10000 characters.
func SanitizeInput(input string) string {
	cleaned := strings.NewReplacer("<", "", ">", "").Replace(input)
	cleaned = strings.TrimSpace(cleaned)

	runes := []rune(cleaned)
	if len(runes) > maxInputRunes {
		cleaned = string(runes[:maxInputRunes])
	}
	return cleaned
}
