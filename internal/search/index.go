// Package search is an immutable in-memory keyword index over catalog
// destinations, safe for concurrent use.
//
// A document's score is the Jaccard similarity of the query and document
// token sets plus a bonus for query tokens that hit the title:
//
//	score = |Q ∩ D| / |Q ∪ D| + TitleWeight * |Q ∩ T| / |Q|
//
// Tokens are lower-cased and accent-folded, so "krakow" finds "Kraków". A
// query token also matches any document token it prefixes ("lis" finds
// "lisbon") unless prefix matching is turned off. Ties rank by id.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TitleWeight scales the title bonus.
const TitleWeight = 0.5

const defaultK = 10

// Doc is one searchable item. Title is what the item is called (a city
// name); Text is everything else it should be found by.
type Doc struct {
	ID    string
	Title string
	Text  string
}

// Result is a ranked document id.
type Result struct {
	ID    string
	Score float64
}

// Index ranks documents against a free-text query.
type Index interface {
	TopK(query string, k int) []Result
}

// Option configures New.
type Option func(*options)

type options struct {
	stop   map[string]struct{}
	prefix bool
}

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(o *options) {
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w == "" {
				continue
			}
			if o.stop == nil {
				o.stop = make(map[string]struct{}, len(words))
			}
			o.stop[w] = struct{}{}
		}
	}
}

// WithPrefixMatch toggles prefix matching of query tokens (default on).
func WithPrefixMatch(on bool) Option {
	return func(o *options) { o.prefix = on }
}

// entry keeps tokens sorted so prefix lookups are a binary search.
type entry struct {
	id    string
	all   []string
	title []string
}

type index struct {
	opts    options
	entries []entry
}

// New indexes docs. Docs without an id or without any tokens are skipped.
func New(docs []Doc, opts ...Option) Index {
	o := options{prefix: true}
	for _, fn := range opts {
		fn(&o)
	}
	idx := &index{opts: o}
	for _, d := range docs {
		title := tokenSet(d.Title, o.stop)
		all := tokenSet(d.Title+" "+d.Text, o.stop)
		if d.ID == "" || len(all) == 0 {
			continue
		}
		idx.entries = append(idx.entries, entry{id: d.ID, all: sortedKeys(all), title: sortedKeys(title)})
	}
	return idx
}

// TopK returns up to k matches, best first; k <= 0 means 10. Nil when
// nothing matches.
func (x *index) TopK(query string, k int) []Result {
	q := sortedKeys(tokenSet(query, x.opts.stop))
	if len(q) == 0 || len(x.entries) == 0 {
		return nil
	}
	if k <= 0 {
		k = defaultK
	}

	var out []Result
	for _, e := range x.entries {
		hits := x.matches(q, e.all)
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(q)+len(e.all)-hits)
		score += TitleWeight * float64(x.matches(q, e.title)) / float64(len(q))
		out = append(out, Result{ID: e.id, Score: score})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].ID < out[b].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// matches counts query tokens present in (or prefixing a token of) sorted.
func (x *index) matches(q, sorted []string) int {
	n := 0
	for _, t := range q {
		i := sort.SearchStrings(sorted, t)
		if i == len(sorted) {
			continue
		}
		if sorted[i] == t || (x.opts.prefix && strings.HasPrefix(sorted[i], t)) {
			n++
		}
	}
	return n
}

var (
	wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)
	fold   = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

func tokenSet(s string, stop map[string]struct{}) map[string]struct{} {
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	out := make(map[string]struct{})
	for _, w := range wordRE.FindAllString(strings.ToLower(s), -1) {
		if _, skip := stop[w]; !skip {
			out[w] = struct{}{}
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
