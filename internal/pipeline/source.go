package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/text2quiz/text2quiz/internal/ingest"
)

// SourceType classifies what kind of input the pipeline was pointed at.
type SourceType string

const (
	SourceURL   SourceType = "url"
	SourcePDF   SourceType = "pdf"
	SourceImage SourceType = "image"
	SourceText  SourceType = "text"

	maxInputSize = 25 * 1024 * 1024
)

func (s SourceType) String() string {
	return string(s)
}

// Source is resolved input content ready for profiling and generation.
type Source struct {
	Result *ingest.Result
	Title  string
	Type   SourceType
}

var imageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
}

// DetectSource classifies an input path or URL by shape alone, without
// touching the filesystem.
func DetectSource(input string) SourceType {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return SourceURL
	}
	ext := strings.ToLower(filepath.Ext(input))
	if ext == ".pdf" {
		return SourcePDF
	}
	if _, ok := imageExts[ext]; ok {
		return SourceImage
	}
	return SourceText
}

// resolveSource turns an input path or URL into extracted text. PDF and
// image files go through the ingestion pipeline (text layer or OCR);
// plain text files are read directly; URLs are fetched and reduced to
// article text.
func resolveSource(ctx context.Context, input string, ing *ingest.Pipeline) (*Source, error) {
	switch DetectSource(input) {
	case SourceURL:
		return fetchArticle(ctx, input)
	case SourcePDF:
		return ingestFile(ctx, input, "application/pdf", SourcePDF, ing)
	case SourceImage:
		mime := imageExts[strings.ToLower(filepath.Ext(input))]
		return ingestFile(ctx, input, mime, SourceImage, ing)
	default:
		return readTextFile(input)
	}
}

func ingestFile(ctx context.Context, path, mimeType string, st SourceType, ing *ingest.Pipeline) (*Source, error) {
	if err := validateFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	res, err := ing.Ingest(ctx, ingest.SourceFile{
		Data:     data,
		MIMEType: mimeType,
		Filename: filepath.Base(path),
	})
	if err != nil {
		return nil, err
	}

	return &Source{
		Result: res,
		Title:  titleFromText(res.Text, 80),
		Type:   st,
	}, nil
}

func readTextFile(path string) (*Source, error) {
	if err := validateFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	text := ingest.Normalize(string(data))
	if text == "" {
		return nil, fmt.Errorf("%s contains no text", path)
	}

	return &Source{
		Result: &ingest.Result{
			Text:      text,
			WordCount: wordCount(text),
			CharCount: len(text),
		},
		Title: titleFromText(text, 80),
		Type:  SourceText,
	}, nil
}

func fetchArticle(ctx context.Context, source string) (*Source, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", source, err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", source, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch URL %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not fetch URL %s: HTTP %d", source, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxInputSize)
	article, err := readability.FromReader(limited, parsed)
	if err != nil {
		return nil, fmt.Errorf("could not extract article from %s: %w", source, err)
	}

	text := ingest.Normalize(article.TextContent)
	if text == "" {
		return nil, fmt.Errorf("no readable content extracted from %s", source)
	}

	title := article.Title
	if title == "" {
		title = titleFromText(text, 80)
	}

	return &Source{
		Result: &ingest.Result{
			Text:      text,
			WordCount: wordCount(text),
			CharCount: len(text),
		},
		Title: title,
		Type:  SourceURL,
	}, nil
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > maxInputSize {
		return fmt.Errorf("%s is too large (%d bytes, max %d)", path, info.Size(), maxInputSize)
	}
	return nil
}

func titleFromText(text string, maxLen int) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		line = text[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > maxLen {
		line = line[:maxLen] + "..."
	}
	if line == "" {
		return "Sin título"
	}
	return line
}

func wordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}
