package pdf

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// replacements covers characters that do not decompose into ASCII.
var replacements = strings.NewReplacer(
	"‘", "'", "’", "'", "“", `"`, "”", `"`,
	"–", "-", "—", "-", "…", "...", "•", "-",
	"\u00a0", " ", "ß", "ss", "æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE", "ø", "o", "Ø", "O",
	"ł", "l", "Ł", "L", "đ", "d", "Đ", "D",
	"þ", "th", "Þ", "TH", "ð", "d", "ı", "i",
	"€", "EUR", "£", "GBP", "¥", "JPY", "°", " deg",
	"×", "x", "→", "->", "½", "1/2", "¼", "1/4",
)

// ToASCII folds s into printable ASCII: typographic punctuation and a few
// ligatures are replaced, accents are stripped (é -> e), and anything left
// outside ASCII is dropped. Tabs become spaces; newlines are kept.
func ToASCII(s string) string {
	s = replacements.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t':
			b.WriteByte(' ')
		case r == '\n' || (r >= 0x20 && r < 0x7f):
			b.WriteRune(r)
		}
	}
	return b.String()
}
