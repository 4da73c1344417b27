package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKeywords(t *testing.T) {
	texts := []string{
		"The homework was too hard",
		"Homework took forever, homework everywhere",
		"Lectures were great but the homework was hard",
		"Great lectures!",
	}

	keywords := TopKeywords(texts, 3)
	assert.Len(t, keywords, 3)
	assert.Equal(t, KeywordCount{Word: "homework", Count: 3}, keywords[0])

	// "homework" appears three times in one text but still counts once for it
	for _, kw := range keywords {
		assert.LessOrEqual(t, kw.Count, len(texts))
	}
}

func TestTopKeywords_FiltersStopwordsAndShortWords(t *testing.T) {
	keywords := TopKeywords([]string{"it was so so ok and very very good"}, 10)

	for _, kw := range keywords {
		assert.NotContains(t, []string{"it", "was", "so", "ok", "and", "very"}, kw.Word)
	}
	assert.Equal(t, []KeywordCount{{Word: "good", Count: 1}}, keywords)
}

func TestTopKeywords_StableOrdering(t *testing.T) {
	texts := []string{"alpha beta", "beta alpha"}

	keywords := TopKeywords(texts, 10)
	assert.Equal(t, []KeywordCount{
		{Word: "alpha", Count: 2},
		{Word: "beta", Count: 2},
	}, keywords)
}

func TestTopKeywords_Empty(t *testing.T) {
	assert.Empty(t, TopKeywords(nil, 5))
	assert.Empty(t, TopKeywords([]string{""}, 5))
	assert.Nil(t, TopKeywords([]string{"useful feedback"}, 0))
}
