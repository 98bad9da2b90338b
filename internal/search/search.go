// Package search provides a simple, deterministic keyword scorer over
// catalog documents. It is intentionally small and dependency-free:
//
//   - No logging in the library (callers decide how/what to log)
//   - Unicode-aware tokenization with stop-word removal
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|, with a small boost when
// the raw query appears verbatim in the document title or content. This is
// a placeholder for real retrieval; it exists so replies can cite the
// merchant's own catalog text.
package search

import (
	"regexp"
	"sort"
	"strings"

	"github.com/storechat/widget-backend/internal/domain"
)

// Match is a scored document reference.
type Match struct {
	Doc   domain.Document
	Score float64
}

// wordRE extracts letter/digit runs; everything else is a separator.
var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// stopwords are dropped from both query and document token sets.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"do": {}, "does": {}, "what": {}, "which": {}, "how": {}, "can": {}, "you": {}, "i": {},
}

// Tokenize lowercases s and returns its non-stopword token set.
func Tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range wordRE.FindAllString(strings.ToLower(s), -1) {
		if _, stop := stopwords[t]; stop {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}

// Score computes the Jaccard similarity between two token sets.
func Score(q, d map[string]struct{}) float64 {
	if len(q) == 0 || len(d) == 0 {
		return 0
	}
	inter := 0
	for t := range q {
		if _, ok := d[t]; ok {
			inter++
		}
	}
	union := len(q) + len(d) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// TopDocuments ranks docs against query and returns up to k matches with a
// positive score, best first. Ties break on document ID so the order is
// stable across runs.
func TopDocuments(docs []domain.Document, query string, k int) []Match {
	if k <= 0 || len(docs) == 0 {
		return nil
	}
	q := Tokenize(query)
	lowerQuery := strings.ToLower(strings.TrimSpace(query))

	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		d := Tokenize(doc.Title + " " + doc.Content)
		s := Score(q, d)
		// Verbatim substring hits outrank pure token overlap.
		if lowerQuery != "" {
			if strings.Contains(strings.ToLower(doc.Title), lowerQuery) {
				s += 0.25
			} else if strings.Contains(strings.ToLower(doc.Content), lowerQuery) {
				s += 0.10
			}
		}
		if s > 0 {
			matches = append(matches, Match{Doc: doc, Score: s})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Doc.ID < matches[j].Doc.ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
