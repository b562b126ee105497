package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/text2quiz/text2quiz/internal/progress"
)

func TestDetectSource(t *testing.T) {
	tests := []struct {
		input string
		want  SourceType
	}{
		{"https://example.com/articulo", SourceURL},
		{"http://example.com", SourceURL},
		{"apuntes.pdf", SourcePDF},
		{"Apuntes.PDF", SourcePDF},
		{"foto.jpg", SourceImage},
		{"diagrama.PNG", SourceImage},
		{"notas.txt", SourceText},
		{"README.md", SourceText},
		{"sin-extension", SourceText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSource(tt.input), tt.input)
	}
}

func TestPipelineErrorFormatting(t *testing.T) {
	inner := errors.New("boom")
	err := &PipelineError{Stage: "extract", Message: "failed to extract text", Err: inner}
	assert.Equal(t, "[extract] failed to extract text: boom", err.Error())
	assert.ErrorIs(t, err, inner)

	noCause := &PipelineError{Stage: "generate", Message: "too short"}
	assert.Equal(t, "[generate] too short", noCause.Error())
}

func TestTitleFromText(t *testing.T) {
	assert.Equal(t, "La célula", titleFromText("La célula\nmás contenido", 80))
	assert.Equal(t, "Sin título", titleFromText("   \n", 80))

	long := strings.Repeat("a", 100)
	got := titleFromText(long, 80)
	assert.Equal(t, long[:80]+"...", got)
}

func TestReadTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notas.txt")
	require.NoError(t, os.WriteFile(path, []byte("  Historia de Roma\n\nRoma   fue fundada.\n"), 0644))

	src, err := readTextFile(path)
	require.NoError(t, err)

	assert.Equal(t, SourceText, src.Type)
	assert.Equal(t, "Historia de Roma\nRoma fue fundada.", src.Result.Text)
	assert.Equal(t, 6, src.Result.WordCount)
	assert.Equal(t, "Historia de Roma", src.Title)
}

func TestReadTextFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vacio.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n\t\n"), 0644))

	_, err := readTextFile(path)
	assert.ErrorContains(t, err, "no text")
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorContains(t, validateFile(dir), "is a directory")
	assert.ErrorContains(t, validateFile(filepath.Join(dir, "nope.txt")), "cannot access")
}

func TestRunExtractOnlyTextFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "apuntes.txt")
	output := filepath.Join(dir, "texto.txt")
	require.NoError(t, os.WriteFile(input, []byte("La fotosíntesis es el proceso.\nLas plantas producen oxígeno.\n"), 0644))

	var events []progress.Event
	err := Run(context.Background(), Options{
		Input:       input,
		Output:      output,
		ExtractOnly: true,
		OnProgress:  func(e progress.Event) { events = append(events, e) },
	})
	require.NoError(t, err)

	saved, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "La fotosíntesis es el proceso.\nLas plantas producen oxígeno.", string(saved))

	require.NotEmpty(t, events)
	assert.Equal(t, progress.StageExtract, events[0].Stage)
	last := events[len(events)-1]
	assert.Equal(t, progress.StageComplete, last.Stage)
	assert.Equal(t, 9, last.Words)
}

func TestRunRejectsMissingInput(t *testing.T) {
	err := Run(context.Background(), Options{Input: "no-existe.txt", ExtractOnly: true})

	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "extract", perr.Stage)
}

func TestRunRejectsShortInput(t *testing.T) {
	input := filepath.Join(t.TempDir(), "corto.txt")
	require.NoError(t, os.WriteFile(input, []byte("muy poco texto"), 0644))

	err := Run(context.Background(), Options{Input: input})

	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "extract", perr.Stage)
	assert.Contains(t, perr.Message, "too short")
}
