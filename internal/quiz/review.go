package quiz

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// ReviewResult holds the outcome of a quiz review pass.
type ReviewResult struct {
	Approved bool
	Issues   []ReviewIssue
	Revised  *Quiz // nil if Approved
}

// ReviewIssue describes a quality problem found in the quiz.
type ReviewIssue struct {
	Category string // "question_count", "answers", "duplicates", "grounding"
	Message  string
	Severity string // "error" or "warning"
}

// Reviewer validates and optionally revises generated quizzes.
type Reviewer struct {
	model string
}

// NewReviewer creates a reviewer that uses the same model as quiz
// generation.
func NewReviewer(model string) *Reviewer {
	return &Reviewer{model: model}
}

// Review runs fast heuristic checks first, then a single LLM revision
// pass only when the heuristics found errors (not mere warnings).
func (r *Reviewer) Review(ctx context.Context, q *Quiz, content string, opts GenerateOptions) (*ReviewResult, error) {
	opts = opts.withDefaults()

	var issues []ReviewIssue
	issues = append(issues, checkQuestionCount(q, opts.NumQuestions)...)
	issues = append(issues, checkAnswers(q)...)
	issues = append(issues, checkDuplicates(q)...)

	hasErrors := false
	for _, issue := range issues {
		if issue.Severity == "error" {
			hasErrors = true
			break
		}
	}

	if !hasErrors {
		return &ReviewResult{
			Approved: true,
			Issues:   issues, // may contain warnings
		}, nil
	}

	gen := NewClaudeGenerator(r.model)
	reviewPrompt := buildReviewPrompt(q, content, issues)
	revised, err := gen.Generate(ctx, reviewPrompt, opts)
	if err != nil {
		// LLM revision failed, return heuristic issues as-is
		return &ReviewResult{
			Approved: false,
			Issues:   issues,
		}, nil
	}

	return &ReviewResult{
		Approved: false,
		Issues:   issues,
		Revised:  revised,
	}, nil
}

func checkQuestionCount(q *Quiz, target int) []ReviewIssue {
	actual := len(q.Questions)
	tolerance := math.Max(float64(target)*0.2, 1)

	if math.Abs(float64(actual-target)) > tolerance {
		return []ReviewIssue{{
			Category: "question_count",
			Message:  fmt.Sprintf("Quiz has %d questions, target is %d (±20%% tolerance)", actual, target),
			Severity: "error",
		}}
	}
	return nil
}

// checkAnswers verifies that every correct answer appears among its
// question's options.
func checkAnswers(q *Quiz) []ReviewIssue {
	var issues []ReviewIssue
	for i, question := range q.Questions {
		found := false
		for _, opt := range question.Options {
			if strings.EqualFold(strings.TrimSpace(opt), strings.TrimSpace(question.CorrectAnswer)) {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, ReviewIssue{
				Category: "answers",
				Message:  fmt.Sprintf("Question %d: correct answer %q is not one of the options", i+1, question.CorrectAnswer),
				Severity: "error",
			})
		}
	}
	return issues
}

func checkDuplicates(q *Quiz) []ReviewIssue {
	var issues []ReviewIssue

	seen := map[string]int{}
	for i, question := range q.Questions {
		key := strings.ToLower(strings.TrimSpace(question.Text))
		if prev, dup := seen[key]; dup {
			issues = append(issues, ReviewIssue{
				Category: "duplicates",
				Message:  fmt.Sprintf("Questions %d and %d have the same text", prev+1, i+1),
				Severity: "error",
			})
			continue
		}
		seen[key] = i

		opts := map[string]bool{}
		for _, opt := range question.Options {
			key := strings.ToLower(strings.TrimSpace(opt))
			if opts[key] {
				issues = append(issues, ReviewIssue{
					Category: "duplicates",
					Message:  fmt.Sprintf("Question %d has duplicate options", i+1),
					Severity: "error",
				})
				break
			}
			opts[key] = true
		}
	}
	return issues
}

func buildReviewPrompt(q *Quiz, content string, issues []ReviewIssue) string {
	var issueList strings.Builder
	for _, issue := range issues {
		issueList.WriteString(fmt.Sprintf("- [%s] %s: %s\n", issue.Severity, issue.Category, issue.Message))
	}

	return fmt.Sprintf(`El siguiente quiz tiene problemas de calidad que deben corregirse.

PROBLEMAS ENCONTRADOS:
%s
INSTRUCCIONES:
1. Corrige TODOS los problemas listados
2. Mantén el mismo tema y nivel de dificultad
3. La respuesta correcta de cada pregunta debe aparecer entre sus opciones
4. Elimina preguntas u opciones duplicadas y reemplázalas por otras basadas en el material

MATERIAL DE REFERENCIA:
%s`,
		issueList.String(),
		content,
	)
}
