package generator

import (
	"regexp"
	"strings"
)

var (
	typography = strings.NewReplacer(
		"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'",
		"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u201f", `"`,
		"\u2013", "-", "\u2014", "-", "\u2212", "-",
		"\u2026", "...",
		"\u00a0", " ",
		"**", "", "__", "",
	)
	bulletRE   = regexp.MustCompile(`^(\s*)(?:[*\x{2022}\x{25CF}\x{25AA}+])\s+`)
	starEmRE   = regexp.MustCompile(`\*(\S[^*\n]*?)\*`)
	underEmRE  = regexp.MustCompile(`(^|[\s(])_(\S[^_\n]*?)_`)
	blankRunRE = regexp.MustCompile(`\n{3,}`)
)

// Sanitize strips residual Markdown emphasis, code fences and typographic
// punctuation the model was told not to emit, and normalizes bullets to "-".
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = typography.Replace(s)

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "```") {
			continue
		}
		ln = bulletRE.ReplaceAllString(ln, "$1- ")
		ln = starEmRE.ReplaceAllString(ln, "$1")
		ln = underEmRE.ReplaceAllString(ln, "$1$2")
		ln = strings.TrimRight(ln, " \t")
		out = append(out, ln)
	}
	s = strings.Join(out, "\n")
	s = blankRunRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
