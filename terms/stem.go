package terms

import (
	"strings"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"
	"github.com/blevesearch/snowballstem/spanish"
)

// Stems reduces each space-delimited word across fields to its English
// and Spanish Snowball stem, deduplicated, so a query for "crawling"
// can match an indexed "crawler" and a query for "servidores" can
// match "servidor". Both stemmers run over every word since a document
// store mixing languages has no per-document language tag to pick one.
func Stems(fields ...string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, field := range fields {
		for _, word := range strings.Fields(strings.ToLower(field)) {
			add(stemWith(word, english.Stem))
			add(stemWith(word, spanish.Stem))
		}
	}
	return out
}

func stemWith(word string, stem func(*snowballstem.Env) bool) string {
	env := snowballstem.NewEnv(word)
	stem(env)
	return env.Current()
}
