package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// OCREngine recognizes text in a rasterized page. Implementations may take
// several seconds per call; the pipeline never assumes a latency bound.
// onProgress, when non-nil, receives a monotonically increasing completion
// fraction in [0,1]; engines that cannot report fine-grained progress call
// it at 0 and 1 only.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte, lang string, onProgress func(float64)) (string, error)
}

// TesseractEngine runs OCR through a local tesseract installation.
type TesseractEngine struct{}

// NewTesseractEngine creates the default OCR engine. The language data for
// the configured hint (e.g. "spa") must be installed alongside tesseract.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{}
}

func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, lang string, onProgress func(float64)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(0)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("set ocr language %q: %w", lang, err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set ocr image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	if onProgress != nil {
		onProgress(1)
	}
	return strings.TrimSpace(text), nil
}
