package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/text2quiz/text2quiz/internal/analyze"
	"github.com/text2quiz/text2quiz/internal/ingest"
	"github.com/text2quiz/text2quiz/internal/progress"
	"github.com/text2quiz/text2quiz/internal/quiz"
)

// minSourceWords is the smallest document worth generating questions
// from.
const minSourceWords = 50

type Options struct {
	Input         string
	Output        string
	Questions     int    // 0 = derive from the content profile
	Difficulty    string // empty = derive from the content profile
	Language      string
	OCRLanguage   string
	ScanThreshold int
	Model         string
	ExtractOnly   bool
	Review        bool
	Verbose       bool
	OnProgress    progress.Callback
	Logger        *slog.Logger
}

type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes the full document-to-quiz pipeline: resolve and extract
// the source, profile it, generate a quiz, and write the result.
func Run(ctx context.Context, opts Options) error {
	pipelineStart := time.Now()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report := opts.OnProgress
	if report == nil {
		report = progress.NopCallback
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	// Stage 1: extraction
	stageStart := time.Now()
	report(progress.NewEvent(progress.StageExtract, "Extracting text...", 0, pipelineStart))

	ing := ingest.NewPipeline(ingest.Config{
		ScanThreshold: opts.ScanThreshold,
		OCRLanguage:   opts.OCRLanguage,
	}, log)
	ing.OnOCRPage = func(page, total int, frac float64) {
		e := progress.NewEvent(progress.StageOCR,
			fmt.Sprintf("Running OCR on page %d/%d...", page, total), frac, pipelineStart)
		e.PageNum = page
		e.PageTotal = total
		report(e)
	}

	src, err := resolveSource(ctx, opts.Input, ing)
	if err != nil {
		return &PipelineError{Stage: "extract", Message: "failed to extract text", Err: err}
	}

	if opts.Verbose {
		fmt.Printf("    Title: %s\n", src.Title)
		fmt.Printf("    Source type: %s\n", src.Type)
		fmt.Printf("    Pages: %d, words: %d\n", src.Result.PageCount, src.Result.WordCount)
		fmt.Printf("    Extract time: %s\n", time.Since(stageStart).Round(time.Millisecond))
	}

	if opts.ExtractOnly {
		if opts.Output == "" {
			fmt.Println(src.Result.Text)
		} else if err := os.WriteFile(opts.Output, []byte(src.Result.Text), 0644); err != nil {
			return &PipelineError{Stage: "extract", Message: "failed to save extracted text", Err: err}
		}
		e := progress.NewEvent(progress.StageComplete,
			fmt.Sprintf("Extracted %d words", src.Result.WordCount), 1, pipelineStart)
		e.OutputFile = opts.Output
		e.Words = src.Result.WordCount
		report(e)
		return nil
	}

	if src.Result.WordCount < minSourceWords {
		return &PipelineError{
			Stage:   "extract",
			Message: fmt.Sprintf("input too short (%d words): need at least %d words to generate a meaningful quiz", src.Result.WordCount, minSourceWords),
		}
	}

	// Stage 2: profiling
	stageStart = time.Now()
	report(progress.NewEvent(progress.StageAnalyze, "Profiling content...", 0.4, pipelineStart))

	profile := analyze.Profile(src.Result.Text)

	numQuestions := opts.Questions
	if numQuestions <= 0 {
		numQuestions = profile.SuggestedQuestions
	}
	difficulty := analyze.Difficulty(opts.Difficulty)
	if difficulty == "" {
		difficulty = profile.Difficulty
	}

	if opts.Verbose {
		fmt.Printf("    Difficulty: %s, reading level: %s\n", profile.Difficulty, profile.ReadingLevel)
		fmt.Printf("    Questions: %d (suggested %d)\n", numQuestions, profile.SuggestedQuestions)
		fmt.Printf("    Analyze time: %s\n", time.Since(stageStart).Round(time.Millisecond))
	}

	// Stage 3: generation
	stageStart = time.Now()
	report(progress.NewEvent(progress.StageGenerate,
		fmt.Sprintf("Generating %d questions...", numQuestions), 0.5, pipelineStart))

	gen := quiz.NewClaudeGenerator(opts.Model)
	genOpts := quiz.GenerateOptions{
		NumQuestions: numQuestions,
		Difficulty:   difficulty,
		Language:     opts.Language,
	}
	q, err := gen.Generate(ctx, src.Result.Text, genOpts)
	if err != nil {
		return &PipelineError{Stage: "generate", Message: "failed to generate quiz", Err: err}
	}

	if opts.Review {
		result, err := quiz.NewReviewer(opts.Model).Review(ctx, q, src.Result.Text, genOpts)
		if err == nil {
			if result.Revised != nil {
				q = result.Revised
			}
			if opts.Verbose {
				for _, issue := range result.Issues {
					fmt.Printf("    Review [%s] %s: %s\n", issue.Severity, issue.Category, issue.Message)
				}
			}
		}
	}

	if err := quiz.Validate(q); err != nil {
		return &PipelineError{Stage: "generate", Message: "generated quiz failed validation", Err: err}
	}

	if opts.Verbose {
		fmt.Printf("    Generate time: %s\n", time.Since(stageStart).Round(time.Millisecond))
	}

	// Stage 4: save
	output := opts.Output
	if output == "" {
		output = "quiz.json"
	}
	if err := quiz.Save(q, output); err != nil {
		return &PipelineError{Stage: "save", Message: "failed to save quiz", Err: err}
	}

	e := progress.NewEvent(progress.StageComplete, "Quiz generated", 1, pipelineStart)
	e.OutputFile = output
	e.Questions = len(q.Questions)
	e.Words = src.Result.WordCount
	report(e)

	if opts.Verbose {
		fmt.Printf("    Total pipeline time: %s\n", time.Since(pipelineStart).Round(time.Millisecond))
	}

	return nil
}
