package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("text2quiz-mcp")

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "generate_quiz",
			Description: "Generate an educational quiz from a document (PDF or image), a URL, or raw text. Starts an async task and returns a quiz ID. Use get_quiz to check progress.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"input_url": map[string]any{
						"type":        "string",
						"description": "URL of an article to build the quiz from",
					},
					"input_text": map[string]any{
						"type":        "string",
						"description": "Raw text to build the quiz from (alternative to input_url)",
					},
					"document_base64": map[string]any{
						"type":        "string",
						"description": "Base64-encoded PDF or image document (alternative to input_url/input_text). Scanned documents are OCR'd automatically.",
					},
					"filename": map[string]any{
						"type":        "string",
						"description": "Original filename for document_base64; the extension determines how the document is parsed",
					},
					"model": map[string]any{
						"type":        "string",
						"description": "Question generation model: haiku, sonnet",
						"default":     "haiku",
					},
					"questions": map[string]any{
						"type":        "integer",
						"description": "Number of questions to generate (0 = derive from document length)",
						"default":     0,
					},
					"difficulty": map[string]any{
						"type":        "string",
						"description": "Quiz difficulty: easy, medium, hard (empty = derive from document length)",
					},
					"language": map[string]any{
						"type":        "string",
						"description": "Language for questions and answers",
						"default":     "español",
					},
					"ocr_language": map[string]any{
						"type":        "string",
						"description": "Tesseract language code for scanned documents",
						"default":     "spa",
					},
				},
			},
		},
		{
			Name:        "get_quiz",
			Description: "Get the status and details of a quiz by ID. Use this to check on a running generation or retrieve a completed quiz's JSON.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"quiz_id": map[string]any{
						"type":        "string",
						"description": "The quiz ID returned from generate_quiz",
					},
				},
				Required: []string{"quiz_id"},
			},
		},
		{
			Name:        "list_quizzes",
			Description: "List all generated quizzes, newest first. Returns quiz IDs, titles, status, and quiz URLs.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 20)",
						"default":     20,
					},
					"cursor": map[string]any{
						"type":        "string",
						"description": "Pagination cursor from a previous list_quizzes call",
					},
				},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	tasks *TaskManager
	store *Store
	log   *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(tasks *TaskManager, store *Store, logger *slog.Logger) *Handlers {
	return &Handlers{tasks: tasks, store: store, log: logger}
}

// HandleGenerateQuiz starts a quiz generation task.
func (h *Handlers) HandleGenerateQuiz(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.generate_quiz")
	defer span.End()

	auth := AuthFromContext(ctx)

	genReq := GenerateRequest{
		InputURL:    mcp.ParseString(req, "input_url", ""),
		InputText:   mcp.ParseString(req, "input_text", ""),
		InputBase64: mcp.ParseString(req, "document_base64", ""),
		Filename:    mcp.ParseString(req, "filename", ""),
		Model:       mcp.ParseString(req, "model", "haiku"),
		Questions:   parseIntParam(req, "questions", 0),
		Difficulty:  mcp.ParseString(req, "difficulty", ""),
		Language:    mcp.ParseString(req, "language", ""),
		OCRLanguage: mcp.ParseString(req, "ocr_language", ""),
		Owner:       "mcp-server",
		UserID:      auth.UserID,
	}

	span.SetAttributes(
		attribute.String("input_url", genReq.InputURL),
		attribute.String("model", genReq.Model),
		attribute.Int("questions", genReq.Questions),
		attribute.String("difficulty", genReq.Difficulty),
	)

	if genReq.InputURL == "" && genReq.InputText == "" && genReq.InputBase64 == "" {
		span.SetStatus(codes.Error, "missing input")
		return mcp.NewToolResultError("one of input_url, input_text, or document_base64 is required"), nil
	}

	id, err := h.tasks.StartTask(ctx, genReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start task failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to start task: %v", err)), nil
	}

	span.SetAttributes(attribute.String("quiz_id", id))
	h.log.InfoContext(ctx, "Quiz generation started", "quiz_id", id, "model", genReq.Model)

	result := map[string]any{
		"quiz_id": id,
		"status":  "submitted",
		"message": "Quiz generation started. Use get_quiz with this quiz_id to check progress.",
	}
	return jsonResult(result)
}

// HandleGetQuiz returns quiz details.
func (h *Handlers) HandleGetQuiz(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.get_quiz")
	defer span.End()

	id := mcp.ParseString(req, "quiz_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing quiz_id")
		return mcp.NewToolResultError("quiz_id is required"), nil
	}

	span.SetAttributes(attribute.String("quiz_id", id))

	item, err := h.store.GetQuiz(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get quiz failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to get quiz: %v", err)), nil
	}
	if item == nil {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("quiz %s not found", id)), nil
	}

	result := map[string]any{
		"quiz_id":          item.QuizID,
		"status":           item.Status,
		"progress_percent": item.ProgressPercent,
		"stage_message":    item.StageMessage,
		"created_at":       item.CreatedAt,
	}

	if item.Title != "" {
		result["title"] = item.Title
	}
	if item.Difficulty != "" {
		result["difficulty"] = item.Difficulty
	}
	if item.QuestionCount > 0 {
		result["question_count"] = item.QuestionCount
	}
	if item.WordCount > 0 {
		result["word_count"] = item.WordCount
	}
	if item.PageCount > 0 {
		result["page_count"] = item.PageCount
	}
	if item.QuizURL != "" {
		result["quiz_url"] = item.QuizURL
	}
	if item.SourceURL != "" {
		result["source_url"] = item.SourceURL
	}
	if item.QuizJSON != "" && item.Status == string(JobStatusComplete) {
		var q any
		if json.Unmarshal([]byte(item.QuizJSON), &q) == nil {
			result["quiz"] = q
		}
	}
	if item.ErrorMessage != "" {
		result["error"] = item.ErrorMessage
	}
	if item.Model != "" {
		result["model"] = item.Model
	}
	if item.Language != "" {
		result["language"] = item.Language
	}

	return jsonResult(result)
}

// HandleListQuizzes returns a paginated list of quizzes.
func (h *Handlers) HandleListQuizzes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.list_quizzes")
	defer span.End()

	limit := parseIntParam(req, "limit", 20)
	cursor := mcp.ParseString(req, "cursor", "")

	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.String("cursor", cursor),
	)

	items, nextCursor, err := h.store.ListQuizzes(ctx, limit, cursor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list quizzes failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to list quizzes: %v", err)), nil
	}

	span.SetAttributes(attribute.Int("result_count", len(items)))

	quizzes := make([]map[string]any, 0, len(items))
	for _, item := range items {
		q := map[string]any{
			"quiz_id":    item.QuizID,
			"status":     item.Status,
			"created_at": item.CreatedAt,
		}
		if item.Title != "" {
			q["title"] = item.Title
		}
		if item.Difficulty != "" {
			q["difficulty"] = item.Difficulty
		}
		if item.QuestionCount > 0 {
			q["question_count"] = item.QuestionCount
		}
		if item.QuizURL != "" {
			q["quiz_url"] = item.QuizURL
		}
		quizzes = append(quizzes, q)
	}

	result := map[string]any{
		"quizzes": quizzes,
		"count":   len(quizzes),
	}
	if nextCursor != "" {
		result["next_cursor"] = nextCursor
	}

	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}
