package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewIssues(t *testing.T, q *Quiz, target int) []ReviewIssue {
	t.Helper()
	var issues []ReviewIssue
	issues = append(issues, checkQuestionCount(q, target)...)
	issues = append(issues, checkAnswers(q)...)
	issues = append(issues, checkDuplicates(q)...)
	return issues
}

func TestReviewChecksCleanQuiz(t *testing.T) {
	assert.Empty(t, reviewIssues(t, validQuiz(), 2))
}

func TestCheckQuestionCount(t *testing.T) {
	q := validQuiz() // 2 questions
	assert.Empty(t, checkQuestionCount(q, 2))
	assert.Empty(t, checkQuestionCount(q, 3), "within tolerance of one")

	issues := checkQuestionCount(q, 10)
	require.Len(t, issues, 1)
	assert.Equal(t, "question_count", issues[0].Category)
	assert.Equal(t, "error", issues[0].Severity)
}

func TestCheckAnswersDetectsMissingOption(t *testing.T) {
	q := validQuiz()
	q.Questions[0].CorrectAnswer = "En el aparato de Golgi"

	issues := checkAnswers(q)
	require.Len(t, issues, 1)
	assert.Equal(t, "answers", issues[0].Category)
	assert.Contains(t, issues[0].Message, "Golgi")
}

func TestCheckAnswersIgnoresCaseAndSpacing(t *testing.T) {
	q := validQuiz()
	q.Questions[1].CorrectAnswer = "  verdadero "
	assert.Empty(t, checkAnswers(q))
}

func TestCheckDuplicateQuestions(t *testing.T) {
	q := validQuiz()
	q.Questions[1].Text = q.Questions[0].Text

	issues := checkDuplicates(q)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "same text")
}

func TestCheckDuplicateOptions(t *testing.T) {
	q := validQuiz()
	q.Questions[0].Options = []string{"a", "b", "A", "c"}

	issues := checkDuplicates(q)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "duplicate options")
}
