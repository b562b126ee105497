package analyze

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentenceOf(words int) string {
	return strings.TrimSpace(strings.Repeat("palabra ", words)) + "."
}

func TestProfileShortDocument(t *testing.T) {
	// 250 words in 25 sentences of 10 words each.
	var b strings.Builder
	for range 25 {
		b.WriteString(sentenceOf(10))
		b.WriteString(" ")
	}

	a := Profile(strings.TrimSpace(b.String()))

	assert.Equal(t, 250, a.WordCount)
	assert.Equal(t, DifficultyEasy, a.Difficulty)
	assert.Equal(t, 5, a.SuggestedQuestions, "short documents floor at the minimum")
	assert.Equal(t, "Básico", a.ReadingLevel)
	assert.Contains(t, a.Summary, "250 palabras")
}

func TestProfileDifficultyBuckets(t *testing.T) {
	tests := []struct {
		words      int
		difficulty Difficulty
		questions  int
	}{
		{100, DifficultyEasy, 5},
		{499, DifficultyEasy, 5},
		{500, DifficultyMedium, 5},
		{1500, DifficultyMedium, 7},
		{2000, DifficultyMedium, 10},
		{2001, DifficultyHard, 10},
		{10000, DifficultyHard, 20},
	}
	for _, tt := range tests {
		text := strings.TrimSpace(strings.Repeat("dato ", tt.words))
		a := Profile(text)
		assert.Equal(t, tt.words, a.WordCount)
		assert.Equal(t, tt.difficulty, a.Difficulty, "words=%d", tt.words)
		assert.Equal(t, tt.questions, a.SuggestedQuestions, "words=%d", tt.words)
	}
}

func TestProfileSentenceCount(t *testing.T) {
	a := Profile("Primera oración. ¡Segunda oración! ¿Tercera?")
	// Three terminator runs plus the empty tail segment.
	assert.Equal(t, 4, a.SentenceCount)
	assert.Equal(t, 1, a.KeyConcepts)

	a = Profile("sin puntuación alguna")
	assert.Equal(t, 1, a.SentenceCount)
}

func TestProfileEmptyText(t *testing.T) {
	a := Profile("")
	assert.Equal(t, 0, a.WordCount)
	assert.Equal(t, DifficultyEasy, a.Difficulty)
	assert.Equal(t, 5, a.SuggestedQuestions)
}

func TestReadingLevel(t *testing.T) {
	assert.Equal(t, "Básico", ReadingLevel(140, 10))     // 14 per sentence
	assert.Equal(t, "Intermedio", ReadingLevel(150, 10)) // 15
	assert.Equal(t, "Intermedio", ReadingLevel(199, 10)) // 19.9
	assert.Equal(t, "Avanzado", ReadingLevel(200, 10))   // 20
	assert.Equal(t, "Básico", ReadingLevel(0, 0))
}

func TestKeywordsFrequencyRanking(t *testing.T) {
	text := "fotosíntesis fotosíntesis fotosíntesis clorofila clorofila energía " +
		"el la de que para como energía luminosa"

	got := Keywords(text, 3)
	require.Equal(t, []string{"fotosíntesis", "clorofila", "energía"}, got)
}

func TestKeywordsFiltersShortAndStopWords(t *testing.T) {
	got := Keywords("casa casa casa también también sobre mucho proceso", 10)
	// "casa" has four letters, the rest are stop words.
	assert.Equal(t, []string{"proceso"}, got)
}

func TestKeywordsStripsPunctuation(t *testing.T) {
	got := Keywords("mitocondria, mitocondria. ¡mitocondria!", 5)
	assert.Equal(t, []string{"mitocondria"}, got)
}

func TestKeywordsTieBreakIsFirstSeen(t *testing.T) {
	got := Keywords("primera segunda primera segunda tercera tercera", 3)
	assert.Equal(t, []string{"primera", "segunda", "tercera"}, got)
}

func TestKeywordsLimit(t *testing.T) {
	got := Keywords("alpha1 bravo2 charlie delta3 echo45 foxtrot golfx1", 2)
	assert.Len(t, got, 2)
}
