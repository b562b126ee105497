package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"
	"github.com/text2quiz/text2quiz/internal/quiz"
)

var (
	flagPublishTitle     string
	flagPublishSummary   string
	flagPublishOwner     string
	flagPublishSourceURL string
	flagPublishAPIURL    string
)

var publishCmd = &cobra.Command{
	Use:   "publish <quiz-json-file>",
	Short: "Publish a quiz to the Text2Quiz platform",
	Long:  "Upload a quiz JSON file and publish it to the Text2Quiz platform. Metadata is auto-detected from the quiz contents.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&flagPublishTitle, "title", "", "Quiz title (overrides auto-detected)")
	publishCmd.Flags().StringVar(&flagPublishSummary, "summary", "", "Quiz summary (overrides auto-generated)")
	defaultOwner := "Text2Quiz"
	if u, err := user.Current(); err == nil && u.Name != "" {
		defaultOwner = u.Name
	}
	publishCmd.Flags().StringVar(&flagPublishOwner, "owner", defaultOwner, "Quiz owner")
	publishCmd.Flags().StringVar(&flagPublishSourceURL, "source-url", "", "Original source URL")
	publishCmd.Flags().StringVar(&flagPublishAPIURL, "api-url", "https://text2quiz.dev", "API base URL")
}

// --- Types ---

type publishMeta struct {
	Title         string  `json:"title"`
	Summary       string  `json:"summary"`
	Owner         string  `json:"owner"`
	Difficulty    string  `json:"difficulty"`
	QuestionCount int     `json:"questionCount"`
	FileSizeMB    float64 `json:"fileSizeMB"`
	SourceURL     string  `json:"sourceUrl,omitempty"`
}

type uploadResponse struct {
	QuizID    string `json:"quizId"`
	UploadURL string `json:"uploadUrl"`
	QuizKey   string `json:"quizKey"`
}

type confirmResponse struct {
	QuizID  string `json:"quizId"`
	Status  string `json:"status"`
	QuizURL string `json:"quizUrl"`
}

// --- Handler ---

func runPublish(cmd *cobra.Command, args []string) error {
	quizPath := args[0]

	// 1. Validate quiz file
	if !strings.HasSuffix(strings.ToLower(quizPath), ".json") {
		return fmt.Errorf("file must have .json extension: %s", quizPath)
	}
	info, err := os.Stat(quizPath)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", quizPath)
	}
	q, err := quiz.Load(quizPath)
	if err != nil {
		return fmt.Errorf("invalid quiz file: %w", err)
	}
	fileSizeMB := float64(info.Size()) / (1024 * 1024)
	fmt.Printf("File: %s (%d questions, %.1f MB)\n", quizPath, len(q.Questions), fileSizeMB)

	// 2. Resolve metadata
	title := q.Title
	if flagPublishTitle != "" {
		title = flagPublishTitle
	}
	summary := flagPublishSummary

	// Generate a summary from the quiz contents when none was given
	if summary == "" {
		fmt.Print("Generating summary via Haiku...")
		aiSummary, err := generateSummary(q)
		if err == nil && aiSummary != "" {
			summary = aiSummary
			fmt.Println(" done")
		} else {
			fmt.Println(" skipped")
		}
	}

	if title == "" {
		// Fallback: use filename without extension
		base := filepath.Base(quizPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	fmt.Printf("Title: %s\n", title)

	// 3. Resolve API key
	apiKey, keySource, err := resolveAPIKey()
	if err != nil {
		return err
	}
	fmt.Printf("API key: found (%s)\n", keySource)

	// 4. Request upload URL
	meta := publishMeta{
		Title:         title,
		Summary:       summary,
		Owner:         flagPublishOwner,
		Difficulty:    q.Difficulty,
		QuestionCount: len(q.Questions),
		FileSizeMB:    fileSizeMB,
		SourceURL:     flagPublishSourceURL,
	}

	fmt.Print("Requesting upload URL...")
	var uploadResp uploadResponse
	err = publishRetry(func() error {
		return postJSON(flagPublishAPIURL+"/api/quizzes/upload-url", apiKey, meta, &uploadResp)
	})
	if err != nil {
		fmt.Println(" failed")
		return fmt.Errorf("request upload URL: %w", err)
	}
	fmt.Printf(" ok (id: %s)\n", uploadResp.QuizID)

	// 5. Upload quiz JSON to presigned URL
	fmt.Print("Uploading quiz...")
	err = uploadFile(quizPath, uploadResp.UploadURL, info.Size())
	if err != nil {
		fmt.Println(" failed")
		return fmt.Errorf("upload quiz: %w", err)
	}
	fmt.Println(" done")

	// 6. Confirm upload
	fmt.Print("Confirming publication...")
	confirmBody := map[string]string{"quizId": uploadResp.QuizID}
	var confirmResp confirmResponse
	err = publishRetry(func() error {
		return postJSON(flagPublishAPIURL+"/api/quizzes/confirm", apiKey, confirmBody, &confirmResp)
	})
	if err != nil {
		fmt.Println(" failed")
		return fmt.Errorf("confirm upload (file was uploaded but not confirmed): %w", err)
	}
	fmt.Println(" done")

	// 7. Print success
	fmt.Printf("\nPublished: %s\n", title)
	fmt.Printf("  URL: %s/quizzes\n", flagPublishAPIURL)
	if confirmResp.QuizURL != "" {
		fmt.Printf("  Quiz: %s\n", confirmResp.QuizURL)
	}

	return nil
}

// --- Metadata generation ---

func generateSummary(q *quiz.Quiz) (string, error) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return "", fmt.Errorf("no ANTHROPIC_API_KEY")
	}

	// Concatenate first ~2000 chars of question text
	var sb strings.Builder
	fmt.Fprintf(&sb, "Título: %s\n", q.Title)
	for _, question := range q.Questions {
		if sb.Len() > 2000 {
			break
		}
		fmt.Fprintf(&sb, "- %s\n", question.Text)
	}

	client := anthropic.NewClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model("claude-haiku-4-5-20251001"),
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: "You generate quiz metadata. Given a quiz title and its questions, return a JSON object with one field: \"summary\" (a 1-2 sentence description of what the quiz covers, in the same language as the questions, max 200 chars). Return ONLY the JSON object, no markdown fences."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
	})
	if err != nil {
		return "", fmt.Errorf("haiku API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}

	// Parse JSON response
	var result struct {
		Summary string `json:"summary"`
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return "", fmt.Errorf("parse metadata JSON: %w", err)
	}

	return result.Summary, nil
}

// --- API key resolution ---

func resolveAPIKey() (key, source string, err error) {
	// 1. Environment variable
	if k := os.Getenv("TEXT2QUIZ_API_KEY"); k != "" {
		return k, "env:TEXT2QUIZ_API_KEY", nil
	}

	// 2. Secrets file
	home, _ := os.UserHomeDir()
	if home != "" {
		secretPath := filepath.Join(home, ".secrets", "text2quiz-api-key")
		if data, err := os.ReadFile(secretPath); err == nil {
			k := strings.TrimSpace(string(data))
			if k != "" {
				return k, secretPath, nil
			}
		}
	}

	// 3. Config file
	if home != "" {
		configPath := filepath.Join(home, ".config", "text2quiz", "config.json")
		if data, err := os.ReadFile(configPath); err == nil {
			var cfg struct {
				APIKey string `json:"apiKey"`
			}
			if json.Unmarshal(data, &cfg) == nil && cfg.APIKey != "" {
				return cfg.APIKey, configPath, nil
			}
		}
	}

	return "", "", fmt.Errorf("API key not found: set TEXT2QUIZ_API_KEY or create ~/.config/text2quiz/config.json")
}

// --- HTTP helpers ---

func postJSON(url, apiKey string, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}

	return nil
}

func uploadFile(path, uploadURL string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequest(http.MethodPut, uploadURL, f)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = size

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// --- Retry ---

func publishRetry(fn func() error) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 2 {
			time.Sleep(backoffs[attempt])
		}
	}
	return lastErr
}
