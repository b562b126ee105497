package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/text2quiz/text2quiz/internal/analyze"
)

const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
)

type Quiz struct {
	Title      string     `json:"title"`
	Difficulty string     `json:"difficulty"`
	Questions  []Question `json:"questions"`
}

type Question struct {
	Text          string   `json:"question_text"`
	Type          string   `json:"question_type"`
	CorrectAnswer string   `json:"correct_answer"`
	Options       []string `json:"options"`
	Explanation   string   `json:"explanation"`
}

type GenerateOptions struct {
	NumQuestions int
	Difficulty   analyze.Difficulty
	Language     string
}

func (o GenerateOptions) withDefaults() GenerateOptions {
	if o.NumQuestions <= 0 {
		o.NumQuestions = 10
	}
	if o.Difficulty == "" {
		o.Difficulty = analyze.DifficultyMedium
	}
	if o.Language == "" {
		o.Language = "español"
	}
	return o
}

type Generator interface {
	Generate(ctx context.Context, content string, opts GenerateOptions) (*Quiz, error)
}

// Validate checks the structural rules for a generated quiz: a title,
// at least one question, and the option-count contract per question
// type.
func Validate(q *Quiz) error {
	if q == nil {
		return fmt.Errorf("quiz is nil")
	}
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("quiz has no title")
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("quiz has no questions")
	}
	for i, question := range q.Questions {
		if strings.TrimSpace(question.Text) == "" {
			return fmt.Errorf("question %d has empty text", i)
		}
		if strings.TrimSpace(question.CorrectAnswer) == "" {
			return fmt.Errorf("question %d has no correct answer", i)
		}
		switch question.Type {
		case TypeMultipleChoice:
			if len(question.Options) != 4 {
				return fmt.Errorf("question %d: multiple choice requires 4 options, got %d", i, len(question.Options))
			}
		case TypeTrueFalse:
			if len(question.Options) != 2 {
				return fmt.Errorf("question %d: true/false requires 2 options, got %d", i, len(question.Options))
			}
		default:
			return fmt.Errorf("question %d has invalid type %q (must be %s or %s)", i, question.Type, TypeMultipleChoice, TypeTrueFalse)
		}
	}
	return nil
}

func Save(q *Quiz, path string) error {
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write quiz to %s: %w", path, err)
	}
	return nil
}

func Load(path string) (*Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quiz from %s: %w", path, err)
	}
	var q Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parse quiz from %s: %w", path, err)
	}
	if err := Validate(&q); err != nil {
		return nil, fmt.Errorf("quiz %s: %w", path, err)
	}
	return &q, nil
}
