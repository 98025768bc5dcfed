package pdf

import "strings"

// Wrap breaks text into lines no wider than maxWidth according to measure.
// Words are packed greedily; a word wider than maxWidth on its own is split
// character by character. Explicit newlines are honoured and blank lines
// are returned as empty strings.
func Wrap(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, w := range words {
			candidate := w
			if line != "" {
				candidate = line + " " + w
			}
			if measure(candidate) <= maxWidth {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			if measure(w) <= maxWidth {
				line = w
				continue
			}
			pieces := splitWord(w, maxWidth, measure)
			lines = append(lines, pieces[:len(pieces)-1]...)
			line = pieces[len(pieces)-1]
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitWord hard-splits w into chunks that each fit maxWidth. A single
// character wider than maxWidth still gets its own chunk.
func splitWord(w string, maxWidth float64, measure func(string) float64) []string {
	var out []string
	cur := ""
	for _, r := range w {
		next := cur + string(r)
		if cur != "" && measure(next) > maxWidth {
			out = append(out, cur)
			next = string(r)
		}
		cur = next
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
