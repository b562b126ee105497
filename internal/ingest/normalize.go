package ingest

import (
	"iter"
	"strings"
	"unicode"
)

// Normalize collapses whitespace in extracted text: runs of whitespace
// become a single space, except runs containing a newline, which become a
// single newline. Leading and trailing whitespace is trimmed. Pure and
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	inRun := false
	runHasNewline := false

	flush := func() {
		if !inRun {
			return
		}
		if b.Len() > 0 { // drop leading whitespace
			if runHasNewline {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		inRun = false
		runHasNewline = false
	}

	for _, r := range raw {
		if unicode.IsSpace(r) {
			inRun = true
			if r == '\n' || r == '\r' {
				runHasNewline = true
			}
			continue
		}
		flush()
		b.WriteRune(r)
	}
	// A trailing whitespace run is dropped.

	return b.String()
}

// DefaultChunkSize is the chunk budget used when a consumer does not
// specify one.
const DefaultChunkSize = 2000

// Chunks splits text into bounded segments for size-limited consumers.
// Whitespace-delimited tokens are accumulated greedily; a chunk is emitted
// once it reaches maxChars, so a chunk may overshoot the budget by the
// length of its final token. The final partial chunk is kept. The returned
// sequence is lazy and restartable: ranging over it twice yields the same
// chunks.
func Chunks(text string, maxChars int) iter.Seq[string] {
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}
	return func(yield func(string) bool) {
		var b strings.Builder
		for _, word := range strings.Fields(text) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(word)
			if b.Len() >= maxChars {
				if !yield(b.String()) {
					return
				}
				b.Reset()
			}
		}
		if b.Len() > 0 {
			yield(b.String())
		}
	}
}
