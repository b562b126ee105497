package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"spaces collapse", "a  b\t\tc", "a b c"},
		{"newline runs collapse", "a\n\n\nb", "a\nb"},
		{"mixed run with newline keeps newline", "a \n\t b", "a\nb"},
		{"carriage returns count as newlines", "a\r\nb", "a\nb"},
		{"trims both ends", "  hola mundo \n", "hola mundo"},
		{"whitespace only", " \n\t ", ""},
		{"already normal", "a b\nc", "a b\nc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"a  b\n\nc\td",
		"página uno\n\n\npágina dos",
		"\r\n x \r\n",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func collect(text string, maxChars int) []string {
	var out []string
	for c := range Chunks(text, maxChars) {
		out = append(out, c)
	}
	return out
}

func TestChunksCoversAllTokens(t *testing.T) {
	text := strings.Repeat("palabra corta y otra mas larga ", 40)
	chunks := collect(text, 100)
	require.NotEmpty(t, chunks)

	joined := strings.Join(chunks, " ")
	assert.Equal(t, strings.Fields(text), strings.Fields(joined))

	// Every chunk except possibly the last fills most of the budget.
	for i, c := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, len(c), 100, "chunk %d", i)
	}
}

func TestChunksRestartable(t *testing.T) {
	text := strings.Repeat("uno dos tres cuatro ", 50)
	seq := Chunks(text, 64)

	var first, second []string
	for c := range seq {
		first = append(first, c)
	}
	for c := range seq {
		second = append(second, c)
	}
	assert.Equal(t, first, second)
}

func TestChunksShortText(t *testing.T) {
	chunks := collect("solo unas palabras", 2000)
	assert.Equal(t, []string{"solo unas palabras"}, chunks)
}

func TestChunksEmpty(t *testing.T) {
	assert.Empty(t, collect("", 100))
	assert.Empty(t, collect("   \n  ", 100))
}

func TestChunksOversizedToken(t *testing.T) {
	long := strings.Repeat("x", 500)
	chunks := collect("a "+long+" b", 100)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a "+long, chunks[0])
	assert.Equal(t, "b", chunks[1])
}

func TestChunksDefaultBudget(t *testing.T) {
	text := strings.Repeat("palabra ", 1000) // ~8000 chars
	chunks := collect(text, 0)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, len(c), DefaultChunkSize)
	}
}
