package emit

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var apostrophes = strings.NewReplacer("'", "", "’", "")

// Slugify turns a display name into a file-safe slug made only of [a-z0-9-]:
// accents are stripped, apostrophes dropped and every other character becomes
// a dash. Runs of dashes collapse and leading or trailing dashes are trimmed.
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		folded = strings.TrimSpace(name)
	}
	folded = cases.Lower(language.Und).String(folded)
	s := apostrophes.Replace(folded)

	var sb strings.Builder
	dash := false
	for _, r := range s {
		if !isSlugAlnum(r) {
			if !dash && sb.Len() > 0 {
				sb.WriteRune('-')
			}
			dash = true
			continue
		}
		dash = false
		sb.WriteRune(r)
	}
	return strings.TrimRight(sb.String(), "-")
}

func isSlugAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
