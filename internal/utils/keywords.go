package utils

import (
	"sort"
	"strings"
	"unicode"
)

// English stopwords plus filler words that dominate short feedback text.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "my": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"our": {}, "she": {}, "so": {}, "that": {}, "the": {}, "their": {},
	"there": {}, "they": {}, "this": {}, "to": {}, "too": {}, "very": {},
	"was": {}, "we": {}, "were": {}, "with": {}, "you": {}, "your": {},
	"really": {}, "just": {}, "also": {}, "would": {}, "could": {},
	"should": {}, "about": {}, "more": {}, "some": {}, "than": {},
}

// KeywordCount is a word and how many feedback items it appeared in.
type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// TopKeywords tokenizes the given texts and returns the limit most frequent
// words, stopwords and words shorter than three characters excluded. A word
// counts at most once per text so a single rambling comment cannot dominate.
// Ties break alphabetically to keep the output stable.
func TopKeywords(texts []string, limit int) []KeywordCount {
	if limit <= 0 {
		return nil
	}

	freq := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, word := range tokenize(text) {
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			freq[word]++
		}
	}

	counts := make([]KeywordCount, 0, len(freq))
	for word, n := range freq {
		counts = append(counts, KeywordCount{Word: word, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})

	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	words := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 3 {
			continue
		}
		if _, skip := stopwords[field]; skip {
			continue
		}
		words = append(words, field)
	}
	return words
}
