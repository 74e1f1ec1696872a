package acquire

import "strings"

const fallbackStem = "media"

func isHostileRune(r rune) bool {
	switch r {
	case '/', '\\', ':', '*', '?', '"', '\'', '<', '>', '|', '\x00':
		return true
	}
	return r < 0x20
}

// SanitizeStem turns a display title into a file-name stem: path-hostile characters become
// underscores, whitespace runs collapse to single spaces, and the result is truncated to at
// most maxLen runes. An empty result falls back to a generic stem.
func SanitizeStem(title string, maxLen int) string {
	var b strings.Builder
	for _, r := range title {
		if isHostileRune(r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	stem := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(stem); maxLen > 0 && len(runes) > maxLen {
		stem = string(runes[:maxLen])
	}
	stem = strings.TrimSpace(stem)
	if stem == "" || strings.Trim(stem, "._") == "" {
		return fallbackStem
	}
	return stem
}
