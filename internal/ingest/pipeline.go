package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Config tunes one Pipeline instance. Zero values mean defaults; every
// knob here was a hidden constant or process-wide global upstream and is
// deliberately per-instance so two pipelines can run with different
// settings (tests included).
type Config struct {
	// ScanThreshold is the minimum trimmed text-layer length (in
	// characters) below which a document is classified as scanned and
	// falls back to OCR. Default 50.
	ScanThreshold int
	// MinTextLength is the minimum number of non-whitespace characters a
	// final result must contain. Default 10.
	MinTextLength int
	// RenderScale is the rasterization scale factor for OCR fallback.
	// Default 2.0; noticeably better OCR accuracy than native 1.0.
	RenderScale float64
	// OCRLanguage is the language hint passed to the OCR engine.
	// Default "spa".
	OCRLanguage string
	// RenderWorkers bounds concurrently in-flight rendered page buffers
	// during OCR fallback; a buffer at 2.0 scale can run tens of MB.
	// Default 2.
	RenderWorkers int
}

const (
	defaultScanThreshold = 50
	defaultMinTextLength = 10
	defaultRenderScale   = 2.0
	defaultOCRLanguage   = "spa"
	defaultRenderWorkers = 2
)

func (c Config) withDefaults() Config {
	if c.ScanThreshold <= 0 {
		c.ScanThreshold = defaultScanThreshold
	}
	if c.MinTextLength <= 0 {
		c.MinTextLength = defaultMinTextLength
	}
	if c.RenderScale <= 0 {
		c.RenderScale = defaultRenderScale
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = defaultOCRLanguage
	}
	if c.RenderWorkers <= 0 {
		c.RenderWorkers = defaultRenderWorkers
	}
	return c
}

// IsScanned decides whether a text-layer candidate is good enough or the
// document must be treated as scanned: true when the trimmed candidate is
// shorter than threshold.
func IsScanned(candidate string, threshold int) bool {
	return len(strings.TrimSpace(candidate)) < threshold
}

// Pipeline turns one uploaded file into validated, normalized plain text.
// A Pipeline is safe for concurrent Ingest calls on different files; each
// call is self-contained and shares no mutable state.
type Pipeline struct {
	cfg    Config
	parser ContainerParser
	ocr    OCREngine
	log    *slog.Logger

	// OnOCRPage, when set, receives OCR fallback progress: page is the
	// page currently reported on, total the page count, and fraction the
	// overall completion in [0,1]. Pages may be processed concurrently,
	// so calls can arrive from multiple goroutines.
	OnOCRPage func(page, total int, fraction float64)
}

// NewPipeline creates a pipeline with the default PDF parser and the
// tesseract OCR engine.
func NewPipeline(cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:    cfg.withDefaults(),
		parser: pdfParser{},
		ocr:    NewTesseractEngine(),
		log:    logger,
	}
}

// Ingest extracts text from src. It fails with ErrUnsupportedFormat for
// unknown MIME types, CorruptInputError when a container cannot be parsed,
// and ErrEmptyExtraction when all strategies together yield less than the
// configured minimum of usable text. Per-page failures are skipped, never
// fatal. The parsed container is released on every exit path.
func (p *Pipeline) Ingest(ctx context.Context, src SourceFile) (*Result, error) {
	if len(src.Data) == 0 {
		return nil, &CorruptInputError{Filename: src.Filename, Err: fmt.Errorf("file is empty")}
	}
	if len(src.Data) > maxInputSize {
		return nil, fmt.Errorf("%s is too large (%d MB, max %d MB)",
			src.Filename, len(src.Data)/(1024*1024), maxInputSize/(1024*1024))
	}

	kind, err := DetectKind(src.MIMEType)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindImage:
		return p.ingestImage(ctx, src)
	default:
		return p.ingestContainer(ctx, src)
	}
}

// ingestImage is the OCR-only path for raw raster uploads. There is no
// container and no page count.
func (p *Pipeline) ingestImage(ctx context.Context, src SourceFile) (*Result, error) {
	progress := func(frac float64) {
		if p.OnOCRPage != nil {
			p.OnOCRPage(1, 1, frac)
		}
	}

	text, err := p.ocr.Recognize(ctx, src.Data, p.cfg.OCRLanguage, progress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.WarnContext(ctx, "Image OCR failed", "file", src.Filename, "error", err)
		text = ""
	}

	return p.finish(text, 0)
}

func (p *Pipeline) ingestContainer(ctx context.Context, src SourceFile) (*Result, error) {
	container, err := p.parser.Parse(src.Data)
	if err != nil {
		return nil, &CorruptInputError{Filename: src.Filename, Err: err}
	}
	defer container.Close()

	pages := container.PageCount()
	if pages == 0 {
		return nil, &EmptyExtractionError{Chars: 0, Min: p.cfg.MinTextLength}
	}

	layer := p.extractTextLayer(ctx, container, pages)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidate := joinPages(layer)
	if !IsScanned(candidate, p.cfg.ScanThreshold) {
		return p.finish(candidate, pages)
	}

	p.log.InfoContext(ctx, "Text layer too sparse, falling back to OCR",
		"file", src.Filename, "pages", pages, "text_layer_chars", len(strings.TrimSpace(candidate)))

	ocred := p.ocrPages(ctx, container, pages)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.finish(joinPages(ocred), pages)
}

// extractTextLayer reads every page's embedded text concurrently. Results
// land in a slice indexed by page, so assembly order never depends on
// completion order. A page that fails to read contributes empty text.
func (p *Pipeline) extractTextLayer(ctx context.Context, c Container, pages int) []PageText {
	out := make([]PageText, pages)

	var wg sync.WaitGroup
	for i := 1; i <= pages; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			text, err := c.PageText(page)
			if err != nil {
				p.log.WarnContext(ctx, "Page text extraction failed, skipping page",
					"page", page, "error", err)
				text = ""
			}
			out[page-1] = PageText{Index: page, Text: text, Method: MethodTextLayer}
		}(i)
	}
	wg.Wait()

	return out
}

// ocrPages renders and recognizes every page. A semaphore bounds in-flight
// page buffers (held from render through OCR); rasterization itself is
// additionally serialized by the container. No new page is dispatched once
// the context is cancelled, but pages already dispatched drain.
func (p *Pipeline) ocrPages(ctx context.Context, c Container, pages int) []PageText {
	out := make([]PageText, pages)
	sem := make(chan struct{}, p.cfg.RenderWorkers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0
	report := func(page int, pageFrac float64) {
		if p.OnOCRPage == nil {
			return
		}
		mu.Lock()
		overall := (float64(completed) + pageFrac) / float64(pages)
		if overall > 1 {
			overall = 1
		}
		mu.Unlock()
		p.OnOCRPage(page, pages, overall)
	}
	markDone := func(page int) {
		mu.Lock()
		completed++
		frac := float64(completed) / float64(pages)
		mu.Unlock()
		if p.OnOCRPage != nil {
			p.OnOCRPage(page, pages, frac)
		}
	}

	for i := 1; i <= pages; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(page int) {
			defer wg.Done()
			defer func() { <-sem }()
			defer markDone(page)

			out[page-1] = PageText{Index: page, Method: MethodOCR}

			img, err := c.RenderPage(page, p.cfg.RenderScale)
			if err != nil {
				p.log.WarnContext(ctx, "Page render failed, skipping page",
					"page", page, "error", err)
				return
			}

			text, err := p.ocr.Recognize(ctx, img, p.cfg.OCRLanguage, func(frac float64) {
				report(page, frac)
			})
			if err != nil {
				p.log.WarnContext(ctx, "Page OCR failed, skipping page",
					"page", page, "error", err)
				return
			}
			out[page-1].Text = text
		}(i)
	}
	wg.Wait()

	return out
}

// joinPages concatenates page texts in index order, separated by blank
// lines; pages that yielded nothing are left out of the join.
func joinPages(pages []PageText) string {
	parts := make([]string, 0, len(pages))
	for _, pt := range pages {
		if strings.TrimSpace(pt.Text) == "" {
			continue
		}
		parts = append(parts, pt.Text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// finish normalizes, validates against the minimum usable length, and
// derives the result counts.
func (p *Pipeline) finish(text string, pageCount int) (*Result, error) {
	normalized := Normalize(text)
	if usable := nonSpaceLen(normalized); usable < p.cfg.MinTextLength {
		return nil, &EmptyExtractionError{Chars: usable, Min: p.cfg.MinTextLength}
	}
	return &Result{
		Text:      normalized,
		PageCount: pageCount,
		WordCount: wordCount(normalized),
		CharCount: len(normalized),
	}, nil
}
