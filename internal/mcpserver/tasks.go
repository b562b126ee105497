package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/text2quiz/text2quiz/internal/observability"
	"github.com/text2quiz/text2quiz/internal/pipeline"
	"github.com/text2quiz/text2quiz/internal/progress"
	"github.com/text2quiz/text2quiz/internal/quiz"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GenerateRequest holds parameters for a quiz generation task.
type GenerateRequest struct {
	InputURL    string
	InputText   string
	InputBase64 string // base64-encoded PDF or image document
	Filename    string // original filename for base64 input; its extension drives type detection
	Model       string
	Questions   int
	Difficulty  string
	Language    string
	OCRLanguage string
	Owner       string
	UserID      string // authenticated user ID (empty for anonymous)
}

// TaskManager manages async quiz generation tasks.
type TaskManager struct {
	store   *Store
	storage *Storage
	log     *slog.Logger
	baseCtx context.Context // cancelled on SIGTERM for graceful shutdown

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	maxTasks int
	running  int
}

// NewTaskManager creates a task manager.
// baseCtx should be cancelled on SIGTERM so pipeline goroutines can clean up.
func NewTaskManager(store *Store, storage *Storage, maxTasks int, logger *slog.Logger, baseCtx context.Context) *TaskManager {
	if maxTasks <= 0 {
		maxTasks = 5
	}
	return &TaskManager{
		store:    store,
		storage:  storage,
		log:      logger,
		baseCtx:  baseCtx,
		cancels:  make(map[string]context.CancelFunc),
		maxTasks: maxTasks,
	}
}

// StartTask creates a DynamoDB record and starts pipeline.Run in a goroutine.
// Returns the quiz ID immediately.
func (tm *TaskManager) StartTask(ctx context.Context, req GenerateRequest) (string, error) {
	id, err := NewQuizID()
	if err != nil {
		return "", err
	}

	tm.mu.Lock()
	if tm.running >= tm.maxTasks {
		tm.mu.Unlock()
		return "", fmt.Errorf("max concurrent tasks reached (%d)", tm.maxTasks)
	}
	tm.running++

	// Derive goroutine context from baseCtx (cancelled on SIGTERM) rather than
	// the HTTP request context (cancelled when the response is sent).
	// Carry trace span from the HTTP request for observability linking.
	taskCtx := observability.DetachTraceContextFrom(ctx, tm.baseCtx)
	taskCtx, cancel := context.WithCancel(taskCtx)
	tm.cancels[id] = cancel
	tm.mu.Unlock()

	sourceName := req.Filename
	if sourceName == "" {
		sourceName = req.InputURL
	}
	if err := tm.store.CreateJob(ctx, id, req.Owner, sourceName, req.Model, req.Language); err != nil {
		cancel()
		tm.mu.Lock()
		delete(tm.cancels, id)
		tm.running--
		tm.mu.Unlock()
		return "", fmt.Errorf("create job: %w", err)
	}

	go tm.runPipeline(taskCtx, id, req)

	return id, nil
}

// CancelTask cancels a running task.
func (tm *TaskManager) CancelTask(id string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if cancel, ok := tm.cancels[id]; ok {
		cancel()
	}
}

func (tm *TaskManager) runPipeline(ctx context.Context, id string, req GenerateRequest) {
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("quiz_id", id)),
	)
	defer span.End()

	defer func() {
		// On shutdown (SIGTERM), mark any in-progress job as failed so it doesn't
		// appear stuck in "generating" forever.
		if ctx.Err() != nil {
			failCtx, failCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer failCancel()
			tm.store.FailJob(failCtx, id, "server shutdown during processing")
			tm.log.Info("Marked job as failed due to shutdown", "quiz_id", id)
		}
		tm.mu.Lock()
		delete(tm.cancels, id)
		tm.running--
		tm.mu.Unlock()
	}()

	log := tm.log.With("quiz_id", id)

	// Throttle DynamoDB writes: max 1 per 2 seconds except on stage transitions.
	var lastWrite time.Time
	var lastStage progress.Stage
	var sourceWords, sourcePages int

	progressCb := func(evt progress.Event) {
		if evt.Stage == progress.StageComplete {
			sourceWords = evt.Words
		}
		if evt.PageTotal > sourcePages {
			sourcePages = evt.PageTotal
		}

		now := time.Now()
		stageChanged := evt.Stage != lastStage
		throttled := now.Sub(lastWrite) < 2*time.Second

		if throttled && !stageChanged {
			return
		}

		if stageChanged {
			span.AddEvent("stage_transition",
				trace.WithAttributes(
					attribute.String("stage", string(evt.Stage)),
					attribute.Float64("percent", evt.Percent),
				),
			)
		}

		status := mapStage(evt.Stage)
		if err := tm.store.UpdateProgress(ctx, id, status, evt.Percent, evt.Message); err != nil {
			log.WarnContext(ctx, "Update progress failed", "error", err)
		}
		lastWrite = now
		lastStage = evt.Stage
	}

	// Set up a temp working directory for this task
	workDir, err := os.MkdirTemp("", "text2quiz-mcp-*")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create work dir failed")
		tm.store.FailJob(ctx, id, fmt.Sprintf("create work dir: %v", err))
		return
	}
	defer os.RemoveAll(workDir)

	// Determine input
	input := req.InputURL
	var sourceDoc []byte
	var sourceExt string

	switch {
	case input != "":
	case req.InputBase64 != "":
		sourceDoc, err = base64.StdEncoding.DecodeString(req.InputBase64)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode document failed")
			tm.store.FailJob(ctx, id, fmt.Sprintf("decode document: %v", err))
			return
		}
		sourceExt = strings.ToLower(filepath.Ext(req.Filename))
		if sourceExt == "" {
			sourceExt = ".pdf"
		}
		inputPath := filepath.Join(workDir, "document"+sourceExt)
		if err := os.WriteFile(inputPath, sourceDoc, 0644); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write document failed")
			tm.store.FailJob(ctx, id, fmt.Sprintf("write document: %v", err))
			return
		}
		input = inputPath
	case req.InputText != "":
		inputPath := filepath.Join(workDir, "input.txt")
		if err := os.WriteFile(inputPath, []byte(req.InputText), 0644); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write input failed")
			tm.store.FailJob(ctx, id, fmt.Sprintf("write input text: %v", err))
			return
		}
		input = inputPath
	default:
		span.SetStatus(codes.Error, "no input")
		tm.store.FailJob(ctx, id, "no input provided")
		return
	}

	outputPath := filepath.Join(workDir, id+".json")

	model := req.Model
	if model == "" {
		model = "haiku"
	}

	opts := pipeline.Options{
		Input:       input,
		Output:      outputPath,
		Questions:   req.Questions,
		Difficulty:  req.Difficulty,
		Language:    req.Language,
		OCRLanguage: req.OCRLanguage,
		Model:       model,
		Review:      true,
		OnProgress:  progressCb,
		Logger:      log,
	}

	// Run the pipeline
	pipelineStart := time.Now()
	log.InfoContext(ctx, "Pipeline starting",
		"model", model, "questions", req.Questions, "language", req.Language, "input", sourceName(req))
	if err := pipeline.Run(ctx, opts); err != nil {
		elapsed := time.Since(pipelineStart).Round(time.Second)
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		log.ErrorContext(ctx, "Pipeline failed", "error", err, "elapsed", elapsed.String())
		tm.store.FailJob(ctx, id, err.Error())
		return
	}

	// Read the generated quiz
	quizData, err := os.ReadFile(outputPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read quiz failed")
		tm.store.FailJob(ctx, id, fmt.Sprintf("read generated quiz: %v", err))
		return
	}
	var q quiz.Quiz
	if err := json.Unmarshal(quizData, &q); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse quiz failed")
		tm.store.FailJob(ctx, id, fmt.Sprintf("parse generated quiz: %v", err))
		return
	}

	// Upload to S3
	tm.store.UpdateProgress(ctx, id, JobStatusUploading, 0.95, "Uploading to S3...")

	var sourceKey, sourceURL string
	if len(sourceDoc) > 0 {
		contentType := "application/pdf"
		if mime, ok := imageContentTypes[sourceExt]; ok {
			contentType = mime
		}
		sourceKey, sourceURL, err = tm.storage.UploadSource(ctx, id, sourceExt, contentType, sourceDoc)
		if err != nil {
			log.WarnContext(ctx, "Source upload failed", "error", err)
			sourceKey, sourceURL = "", ""
		}
	}

	quizKey, quizURL, err := tm.storage.UploadQuiz(ctx, id, quizData)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		log.ErrorContext(ctx, "S3 upload failed", "error", err)
		tm.store.FailJob(ctx, id, fmt.Sprintf("upload to S3: %v", err))
		return
	}

	// Mark complete
	info := CompletionInfo{
		Title:         q.Title,
		Difficulty:    q.Difficulty,
		QuestionCount: len(q.Questions),
		WordCount:     sourceWords,
		PageCount:     sourcePages,
		QuizJSON:      string(quizData),
		QuizKey:       quizKey,
		QuizURL:       quizURL,
		SourceKey:     sourceKey,
		SourceURL:     sourceURL,
	}
	if err := tm.store.CompleteJob(ctx, id, info); err != nil {
		log.ErrorContext(ctx, "Complete job failed", "error", err)
	}

	// Record usage metrics if authenticated
	if req.UserID != "" {
		inputChars := len(req.InputText)
		if inputChars == 0 {
			inputChars = len(sourceDoc)
		}
		if inputChars == 0 && req.InputURL != "" {
			inputChars = 5000 // estimate for URL-sourced content
		}

		if err := tm.store.RecordUsage(ctx, id, req.UserID, inputChars, len(q.Questions)); err != nil {
			log.WarnContext(ctx, "Record usage failed", "error", err)
		}
	}

	elapsed := time.Since(pipelineStart).Round(time.Second)
	span.SetAttributes(
		attribute.String("title", q.Title),
		attribute.String("quiz_url", quizURL),
		attribute.Int("questions", len(q.Questions)),
	)
	span.SetStatus(codes.Ok, "complete")
	log.InfoContext(ctx, "Pipeline complete", "title", q.Title, "quiz_url", quizURL, "elapsed", elapsed.String())
}

// imageContentTypes maps document extensions to upload content types.
var imageContentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
}

func sourceName(req GenerateRequest) string {
	if req.InputURL != "" {
		return req.InputURL
	}
	if req.Filename != "" {
		return req.Filename
	}
	return "inline text"
}

// mapStage maps a pipeline progress stage to a job status.
func mapStage(stage progress.Stage) JobStatus {
	switch stage {
	case progress.StageExtract, progress.StageOCR:
		return JobStatusExtracting
	case progress.StageAnalyze:
		return JobStatusAnalyzing
	case progress.StageGenerate:
		return JobStatusGenerating
	case progress.StageUpload:
		return JobStatusUploading
	case progress.StageComplete:
		return JobStatusComplete
	default:
		return JobStatusSubmitted
	}
}
