package property

import (
	"strings"
	"unicode"
)

// Slugify lowercases s and joins runs of letters and digits with hyphens.
// Arabic letters are kept as is.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		if unicode.Is(unicode.Mn, r) {
			// Arabic diacritics
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
