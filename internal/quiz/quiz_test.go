package quiz

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/text2quiz/text2quiz/internal/analyze"
)

func validQuiz() *Quiz {
	return &Quiz{
		Title:      "La fotosíntesis",
		Difficulty: "medium",
		Questions: []Question{
			{
				Text:          "¿Dónde ocurre la fotosíntesis?",
				Type:          TypeMultipleChoice,
				CorrectAnswer: "En los cloroplastos",
				Options:       []string{"En los cloroplastos", "En el núcleo", "En las mitocondrias", "En los ribosomas"},
				Explanation:   "Los cloroplastos contienen la clorofila.",
			},
			{
				Text:          "La fotosíntesis produce oxígeno.",
				Type:          TypeTrueFalse,
				CorrectAnswer: "Verdadero",
				Options:       []string{"Verdadero", "Falso"},
				Explanation:   "El oxígeno es un subproducto de la fase luminosa.",
			},
		},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(validQuiz()))
}

func TestValidateRejectsBadQuizzes(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Quiz)
		wantMsg string
	}{
		{"no title", func(q *Quiz) { q.Title = "  " }, "no title"},
		{"no questions", func(q *Quiz) { q.Questions = nil }, "no questions"},
		{"empty text", func(q *Quiz) { q.Questions[0].Text = "" }, "empty text"},
		{"no answer", func(q *Quiz) { q.Questions[1].CorrectAnswer = "" }, "no correct answer"},
		{"mc with 3 options", func(q *Quiz) { q.Questions[0].Options = q.Questions[0].Options[:3] }, "requires 4 options"},
		{"tf with 4 options", func(q *Quiz) {
			q.Questions[1].Options = []string{"a", "b", "c", "d"}
		}, "requires 2 options"},
		{"unknown type", func(q *Quiz) { q.Questions[0].Type = "essay" }, "invalid type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuiz()
			tt.mutate(q)
			err := Validate(q)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.json")
	original := validQuiz()

	require.NoError(t, Save(original, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestLoadRejectsInvalidQuiz(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.json")
	q := validQuiz()
	q.Questions[0].Options = q.Questions[0].Options[:2]
	require.NoError(t, Save(q, path))

	_, err := Load(path)
	assert.ErrorContains(t, err, "requires 4 options")
}

func TestParseQuizRawJSON(t *testing.T) {
	raw := `{
		"title": "Historia de Roma",
		"difficulty": "easy",
		"questions": [
			{
				"question_text": "Roma fue fundada en el año 753 a.C.",
				"question_type": "true_false",
				"correct_answer": "Verdadero",
				"options": ["Verdadero", "Falso"],
				"explanation": "Según la tradición."
			}
		]
	}`
	q, err := parseQuiz(raw)
	require.NoError(t, err)
	assert.Equal(t, "Historia de Roma", q.Title)
	require.Len(t, q.Questions, 1)
	assert.Equal(t, TypeTrueFalse, q.Questions[0].Type)
}

func TestParseQuizStripsMarkdownFences(t *testing.T) {
	fenced := "```json\n{\"title\":\"T\",\"difficulty\":\"easy\",\"questions\":[{\"question_text\":\"¿Sí?\",\"question_type\":\"true_false\",\"correct_answer\":\"Verdadero\",\"options\":[\"Verdadero\",\"Falso\"],\"explanation\":\"x\"}]}\n```"
	q, err := parseQuiz(fenced)
	require.NoError(t, err)
	assert.Equal(t, "T", q.Title)
}

func TestParseQuizExtractsEmbeddedObject(t *testing.T) {
	wrapped := "Aquí está el quiz solicitado:\n{\"title\":\"T\",\"difficulty\":\"easy\",\"questions\":[{\"question_text\":\"q\",\"question_type\":\"true_false\",\"correct_answer\":\"Falso\",\"options\":[\"Verdadero\",\"Falso\"],\"explanation\":\"e\"}]}\nEspero que sea útil."
	q, err := parseQuiz(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "T", q.Title)
}

func TestParseQuizRejectsGarbage(t *testing.T) {
	_, err := parseQuiz("lo siento, no puedo generar el quiz")
	assert.Error(t, err)

	_, err = parseQuiz("")
	assert.Error(t, err)
}

func TestGenerateOptionsDefaults(t *testing.T) {
	o := GenerateOptions{}.withDefaults()
	assert.Equal(t, 10, o.NumQuestions)
	assert.Equal(t, analyze.DifficultyMedium, o.Difficulty)
	assert.Equal(t, "español", o.Language)

	o = GenerateOptions{NumQuestions: 7, Difficulty: analyze.DifficultyHard, Language: "english"}.withDefaults()
	assert.Equal(t, 7, o.NumQuestions)
	assert.Equal(t, analyze.DifficultyHard, o.Difficulty)
	assert.Equal(t, "english", o.Language)
}

func TestBuildUserPromptTruncatesLongText(t *testing.T) {
	long := strings.Repeat("contenido educativo extenso ", 400) // ~11k chars
	prompt := buildUserPrompt(long, GenerateOptions{}.withDefaults())

	assert.Contains(t, prompt, " ...")
	assert.Less(t, len(prompt), len(long))
	assert.Contains(t, prompt, "exactamente 10 preguntas")
	assert.Contains(t, prompt, "nivel medium")
}

func TestBuildUserPromptKeepsShortText(t *testing.T) {
	prompt := buildUserPrompt("texto corto", GenerateOptions{NumQuestions: 5, Language: "español"}.withDefaults())
	assert.Contains(t, prompt, "texto corto")
	assert.NotContains(t, prompt, "texto corto ...")
	assert.Contains(t, prompt, "en español")
}
