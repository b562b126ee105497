// Package analyze profiles extracted document text to suggest quiz
// parameters: size-based difficulty, a question count derived from
// length, reading level, and frequency-ranked keywords.
package analyze

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Difficulty buckets a document by word count.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

const (
	easyWordLimit = 500
	hardWordLimit = 2000

	minQuestions     = 5
	maxQuestions     = 20
	wordsPerQuestion = 200
)

// Analysis is the content profile for a document.
type Analysis struct {
	WordCount          int        `json:"wordCount"`
	SentenceCount      int        `json:"sentenceCount"`
	Difficulty         Difficulty `json:"difficulty"`
	SuggestedQuestions int        `json:"suggestedQuestionCount"`
	KeyConcepts        int        `json:"keyConceptsCount"`
	ReadingLevel       string     `json:"readingLevel"`
	Summary            string     `json:"summary"`
}

// Profile computes the content profile for text. It is purely lexical:
// no network calls, deterministic for a given input.
func Profile(text string) Analysis {
	words := len(strings.Fields(text))
	sentences := countSentences(text)

	difficulty := DifficultyMedium
	if words < easyWordLimit {
		difficulty = DifficultyEasy
	}
	if words > hardWordLimit {
		difficulty = DifficultyHard
	}

	suggested := words / wordsPerQuestion
	if suggested < minQuestions {
		suggested = minQuestions
	}
	if suggested > maxQuestions {
		suggested = maxQuestions
	}

	return Analysis{
		WordCount:          words,
		SentenceCount:      sentences,
		Difficulty:         difficulty,
		SuggestedQuestions: suggested,
		KeyConcepts:        sentences / 3,
		ReadingLevel:       ReadingLevel(words, sentences),
		Summary:            fmt.Sprintf("Documento de %d palabras, nivel %s", words, difficulty),
	}
}

// ReadingLevel estimates the reading level from average sentence length.
func ReadingLevel(wordCount, sentenceCount int) string {
	if sentenceCount == 0 {
		return "Básico"
	}
	avg := float64(wordCount) / float64(sentenceCount)
	switch {
	case avg < 15:
		return "Básico"
	case avg < 20:
		return "Intermedio"
	default:
		return "Avanzado"
	}
}

// countSentences counts segments delimited by runs of sentence
// terminators. Trailing punctuation yields a final empty segment, which
// is counted; this keeps the ratio used by ReadingLevel stable for
// texts that end mid-sentence versus on punctuation.
func countSentences(text string) int {
	count := 1
	inRun := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inRun {
				count++
				inRun = true
			}
		default:
			inRun = false
		}
	}
	return count
}

// spanishStopWords are high-frequency words excluded from keyword
// ranking.
var spanishStopWords = map[string]struct{}{
	"el": {}, "la": {}, "de": {}, "que": {}, "y": {}, "a": {}, "en": {},
	"un": {}, "ser": {}, "se": {}, "no": {}, "haber": {}, "por": {},
	"con": {}, "su": {}, "para": {}, "como": {}, "estar": {}, "tener": {},
	"le": {}, "lo": {}, "todo": {}, "pero": {}, "más": {}, "hacer": {},
	"o": {}, "poder": {}, "decir": {}, "este": {}, "ir": {}, "otro": {},
	"ese": {}, "si": {}, "me": {}, "ya": {}, "ver": {}, "porque": {},
	"dar": {}, "cuando": {}, "él": {}, "muy": {}, "sin": {}, "vez": {},
	"mucho": {}, "saber": {}, "qué": {}, "sobre": {}, "mi": {},
	"alguno": {}, "mismo": {}, "yo": {}, "también": {}, "hasta": {},
	"año": {}, "dos": {}, "querer": {}, "entre": {}, "así": {},
	"primero": {},
}

// Keywords returns up to limit words ranked by frequency, skipping stop
// words and words of four characters or fewer. Ties keep first-seen
// order.
func Keywords(text string, limit int) []string {
	if limit <= 0 {
		limit = 10
	}

	type entry struct {
		word  string
		count int
		first int
	}
	freq := make(map[string]*entry)
	var order []*entry

	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, raw)
		if len([]rune(word)) <= 4 {
			continue
		}
		if _, stop := spanishStopWords[word]; stop {
			continue
		}
		if e, ok := freq[word]; ok {
			e.count++
			continue
		}
		e := &entry{word: word, count: 1, first: len(order)}
		freq[word] = e
		order = append(order, e)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	if len(order) > limit {
		order = order[:limit]
	}
	out := make([]string, len(order))
	for i, e := range order {
		out[i] = e.word
	}
	return out
}
