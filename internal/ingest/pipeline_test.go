package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContainer is a Container test double with scriptable page text and
// render behavior, tracking Close calls for leak checks.
type fakeContainer struct {
	pageTexts  []string      // text layer per page; "" = no text
	textErrs   map[int]error // page index -> structural read error
	renderErrs map[int]error // page index -> render failure
	closed     atomic.Int32
}

func (c *fakeContainer) PageCount() int { return len(c.pageTexts) }

func (c *fakeContainer) PageText(index int) (string, error) {
	if err := c.textErrs[index]; err != nil {
		return "", err
	}
	return c.pageTexts[index-1], nil
}

func (c *fakeContainer) RenderPage(index int, scale float64) ([]byte, error) {
	if err := c.renderErrs[index]; err != nil {
		return nil, &RenderError{Page: index, Err: err}
	}
	return fmt.Appendf(nil, "render:%d@%.1f", index, scale), nil
}

func (c *fakeContainer) Close() error {
	c.closed.Add(1)
	return nil
}

// fakeParser hands out a fixed container (or error) and remembers it so
// tests can assert it was released.
type fakeParser struct {
	container *fakeContainer
	err       error
	parsed    atomic.Int32
}

func (p *fakeParser) Parse(data []byte) (Container, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.parsed.Add(1)
	return p.container, nil
}

// fakeOCR maps rendered buffers to recognized text. An optional delay
// function staggers completion to exercise ordering under concurrency.
type fakeOCR struct {
	texts map[string]string // string(image) -> text
	errs  map[string]error
	delay func(image string) time.Duration
	calls atomic.Int32
}

func (o *fakeOCR) Recognize(ctx context.Context, image []byte, lang string, onProgress func(float64)) (string, error) {
	o.calls.Add(1)
	key := string(image)
	if o.delay != nil {
		select {
		case <-time.After(o.delay(key)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := o.errs[key]; err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(1)
	}
	return o.texts[key], nil
}

func newTestPipeline(parser ContainerParser, ocr OCREngine, cfg Config) *Pipeline {
	p := NewPipeline(cfg, slog.New(slog.DiscardHandler))
	if parser != nil {
		p.parser = parser
	}
	if ocr != nil {
		p.ocr = ocr
	}
	return p
}

func pdfSource(name string) SourceFile {
	return SourceFile{Data: []byte("%PDF-fake"), MIMEType: "application/pdf", Filename: name}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		mime string
		want Kind
	}{
		{"application/pdf", KindContainer},
		{"application/pdf; charset=binary", KindContainer},
		{"APPLICATION/PDF", KindContainer},
		{"image/png", KindImage},
		{"image/jpeg", KindImage},
	}
	for _, tt := range tests {
		kind, err := DetectKind(tt.mime)
		require.NoError(t, err, tt.mime)
		assert.Equal(t, tt.want, kind, tt.mime)
	}

	for _, mime := range []string{"text/plain", "application/msword", "", "video/mp4"} {
		_, err := DetectKind(mime)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, mime)
	}
}

func TestIsScannedThresholdBoundary(t *testing.T) {
	// 49 non-whitespace characters: below the default threshold.
	assert.True(t, IsScanned(strings.Repeat("x", 49), defaultScanThreshold))
	// Exactly 50: not scanned.
	assert.False(t, IsScanned(strings.Repeat("x", 50), defaultScanThreshold))
	// Surrounding whitespace does not count toward the length.
	assert.True(t, IsScanned("   "+strings.Repeat("x", 49)+"\n\n", defaultScanThreshold))
}

// Scenario: a 3-page PDF with a full text layer is extracted without OCR,
// pages in order.
func TestIngestTextLayerPDF(t *testing.T) {
	pageText := func(n int) string {
		return fmt.Sprintf("pagina %d: %s", n, strings.Repeat("contenido util ", 10))
	}
	container := &fakeContainer{pageTexts: []string{pageText(1), pageText(2), pageText(3)}}
	parser := &fakeParser{container: container}
	ocr := &fakeOCR{}
	p := newTestPipeline(parser, ocr, Config{})

	res, err := p.Ingest(context.Background(), pdfSource("apuntes.pdf"))
	require.NoError(t, err)

	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, int32(0), ocr.calls.Load(), "OCR must not run for text-based PDFs")
	assert.Equal(t, len(res.Text), res.CharCount)
	assert.Equal(t, wordCount(res.Text), res.WordCount)

	i1 := strings.Index(res.Text, "pagina 1")
	i2 := strings.Index(res.Text, "pagina 2")
	i3 := strings.Index(res.Text, "pagina 3")
	require.True(t, i1 >= 0 && i2 > i1 && i3 > i2, "pages out of order: %q", res.Text)

	assert.GreaterOrEqual(t, container.closed.Load(), int32(1), "container must be released")
}

// Scenario: a scanned 2-page PDF (empty text layer) goes through render +
// OCR; one failing page is skipped without failing the document.
func TestIngestScannedPDFWithFailingPage(t *testing.T) {
	container := &fakeContainer{
		pageTexts:  []string{"", ""},
		renderErrs: map[int]error{},
	}
	parser := &fakeParser{container: container}
	ocr := &fakeOCR{
		texts: map[string]string{
			"render:1@2.0": "texto reconocido en la primera pagina del documento escaneado",
		},
		errs: map[string]error{
			"render:2@2.0": errors.New("engine crashed"),
		},
	}
	p := newTestPipeline(parser, ocr, Config{})

	res, err := p.Ingest(context.Background(), pdfSource("escaneo.pdf"))
	require.NoError(t, err)

	assert.Equal(t, 2, res.PageCount, "a skipped page must not reduce the page count")
	assert.Contains(t, res.Text, "primera pagina")
	assert.Equal(t, int32(2), ocr.calls.Load())
	assert.GreaterOrEqual(t, container.closed.Load(), int32(1))
}

// Ordering invariant: page-level OCR work finishing out of order must not
// reorder the final text.
func TestIngestOCRPreservesPageOrder(t *testing.T) {
	const pages = 6
	texts := make([]string, pages)
	ocrTexts := map[string]string{}
	delays := map[string]time.Duration{}
	for i := 1; i <= pages; i++ {
		ocrTexts[fmt.Sprintf("render:%d@2.0", i)] = fmt.Sprintf("marcador%02d texto de la pagina", i)
		// Later pages finish first.
		delays[fmt.Sprintf("render:%d@2.0", i)] = time.Duration(pages-i) * 10 * time.Millisecond
	}
	container := &fakeContainer{pageTexts: texts}
	ocr := &fakeOCR{texts: ocrTexts, delay: func(k string) time.Duration { return delays[k] }}
	p := newTestPipeline(&fakeParser{container: container}, ocr, Config{RenderWorkers: pages})

	res, err := p.Ingest(context.Background(), pdfSource("desordenado.pdf"))
	require.NoError(t, err)

	last := -1
	for i := 1; i <= pages; i++ {
		idx := strings.Index(res.Text, fmt.Sprintf("marcador%02d", i))
		require.Greater(t, idx, last, "page %d appeared out of order", i)
		last = idx
	}
}

// Scenario: a single image upload takes the OCR-only path with no page
// count.
func TestIngestImage(t *testing.T) {
	img := []byte("jpeg-bytes")
	ocr := &fakeOCR{texts: map[string]string{"jpeg-bytes": "  cartel con texto impreso bien legible  "}}
	p := newTestPipeline(nil, ocr, Config{})

	res, err := p.Ingest(context.Background(), SourceFile{Data: img, MIMEType: "image/jpeg", Filename: "foto.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 0, res.PageCount, "raw images have no page count")
	assert.Equal(t, "cartel con texto impreso bien legible", res.Text)
	assert.Equal(t, int32(1), ocr.calls.Load())
}

// Scenario: an unparseable container fails with CorruptInput and leaks no
// container handle.
func TestIngestCorruptContainer(t *testing.T) {
	parser := &fakeParser{err: errors.New("xref table broken")}
	p := newTestPipeline(parser, &fakeOCR{}, Config{})

	_, err := p.Ingest(context.Background(), pdfSource("roto.pdf"))

	var corrupt *CorruptInputError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "roto.pdf", corrupt.Filename)
	assert.Equal(t, int32(0), parser.parsed.Load())
}

func TestIngestZeroByteFile(t *testing.T) {
	p := newTestPipeline(&fakeParser{}, &fakeOCR{}, Config{})
	_, err := p.Ingest(context.Background(), SourceFile{MIMEType: "application/pdf", Filename: "vacio.pdf"})

	var corrupt *CorruptInputError
	assert.ErrorAs(t, err, &corrupt)
}

func TestIngestUnsupportedFormat(t *testing.T) {
	p := newTestPipeline(&fakeParser{}, &fakeOCR{}, Config{})
	_, err := p.Ingest(context.Background(), SourceFile{
		Data: []byte("hello"), MIMEType: "application/zip", Filename: "a.zip",
	})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// A sparse text layer triggers OCR; if every page then fails, the result
// is EmptyExtraction, with the container still released.
func TestIngestEmptyExtraction(t *testing.T) {
	container := &fakeContainer{pageTexts: []string{"", ""}}
	ocr := &fakeOCR{errs: map[string]error{
		"render:1@2.0": errors.New("no text"),
		"render:2@2.0": errors.New("no text"),
	}}
	p := newTestPipeline(&fakeParser{container: container}, ocr, Config{})

	_, err := p.Ingest(context.Background(), pdfSource("vacio.pdf"))
	assert.ErrorIs(t, err, ErrEmptyExtraction)
	assert.GreaterOrEqual(t, container.closed.Load(), int32(1))
}

// The 49/50 boundary drives the OCR fallback decision end to end.
func TestIngestScanDetectionBoundary(t *testing.T) {
	run := func(layerChars int) (*Result, int32, error) {
		container := &fakeContainer{pageTexts: []string{strings.Repeat("x", layerChars)}}
		ocr := &fakeOCR{texts: map[string]string{
			"render:1@2.0": "texto obtenido por reconocimiento optico de caracteres",
		}}
		p := newTestPipeline(&fakeParser{container: container}, ocr, Config{})
		res, err := p.Ingest(context.Background(), pdfSource("limite.pdf"))
		return res, ocr.calls.Load(), err
	}

	res, calls, err := run(49)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls, "49 chars must trigger OCR fallback")
	assert.Contains(t, res.Text, "reconocimiento")

	res, calls, err = run(50)
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls, "50 chars must not trigger OCR")
	assert.Equal(t, strings.Repeat("x", 50), res.Text)
}

// Idempotence: repeated ingestion of the same source yields identical text.
func TestIngestIdempotent(t *testing.T) {
	container := &fakeContainer{pageTexts: []string{
		"primera pagina con suficiente texto como para superar el umbral",
		"segunda pagina igualmente bien poblada de contenido relevante",
	}}
	p := newTestPipeline(&fakeParser{container: container}, &fakeOCR{}, Config{})

	first, err := p.Ingest(context.Background(), pdfSource("doc.pdf"))
	require.NoError(t, err)
	second, err := p.Ingest(context.Background(), pdfSource("doc.pdf"))
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
}

// Cancellation stops new page dispatch and still releases the container.
func TestIngestCancellation(t *testing.T) {
	const pages = 8
	container := &fakeContainer{pageTexts: make([]string, pages)}
	ocr := &fakeOCR{
		texts: map[string]string{},
		delay: func(string) time.Duration { return 50 * time.Millisecond },
	}
	p := newTestPipeline(&fakeParser{container: container}, ocr, Config{RenderWorkers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Ingest(ctx, pdfSource("lento.pdf"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, ocr.calls.Load(), int32(pages), "no new pages after cancellation")
	assert.GreaterOrEqual(t, container.closed.Load(), int32(1))
}

// A structural failure reading one page's text layer skips that page only.
func TestIngestPageTextErrorSkipsPage(t *testing.T) {
	good := "pagina con un texto suficientemente largo para el umbral de escaneo"
	container := &fakeContainer{
		pageTexts: []string{good, good},
		textErrs:  map[int]error{2: errors.New("damaged page tree")},
	}
	p := newTestPipeline(&fakeParser{container: container}, &fakeOCR{}, Config{})

	res, err := p.Ingest(context.Background(), pdfSource("parcial.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.PageCount)
	assert.Contains(t, res.Text, "umbral de escaneo")
}

func TestIngestReportsOCRProgress(t *testing.T) {
	container := &fakeContainer{pageTexts: []string{"", ""}}
	ocr := &fakeOCR{texts: map[string]string{
		"render:1@2.0": "primera pagina reconocida correctamente",
		"render:2@2.0": "segunda pagina reconocida correctamente",
	}}
	p := newTestPipeline(&fakeParser{container: container}, ocr, Config{RenderWorkers: 1})

	var fractions []float64
	p.OnOCRPage = func(page, total int, frac float64) {
		assert.Equal(t, 2, total)
		fractions = append(fractions, frac)
	}

	_, err := p.Ingest(context.Background(), pdfSource("progreso.pdf"))
	require.NoError(t, err)
	require.NotEmpty(t, fractions)
	assert.InDelta(t, 1.0, fractions[len(fractions)-1], 1e-9)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1]-1e-9)
	}
}
