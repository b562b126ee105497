package ingest

import (
	"strings"
	"unicode"
)

// Kind classifies an upload after MIME dispatch. The pipeline branches on
// this once, at entry; everything downstream is kind-agnostic.
type Kind int

const (
	// KindContainer is a multi-page document container (PDF).
	KindContainer Kind = iota
	// KindImage is a single raster image that goes straight to OCR.
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// maxInputSize is the maximum allowed size for an uploaded file (25 MB).
const maxInputSize = 25 * 1024 * 1024

// SourceFile is one uploaded document. The byte slice is owned by the
// caller for the duration of a single Ingest call and is never retained.
type SourceFile struct {
	Data     []byte
	MIMEType string
	Filename string
}

// DetectKind resolves a declared MIME type to a Kind. Anything that is
// neither a supported container nor a raster image fails with
// ErrUnsupportedFormat.
func DetectKind(mimeType string) (Kind, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf":
		return KindContainer, nil
	case strings.HasPrefix(mt, "image/"):
		return KindImage, nil
	default:
		return 0, &UnsupportedFormatError{MIMEType: mimeType}
	}
}

// Method tags how a page's text was obtained.
type Method string

const (
	MethodTextLayer Method = "text-layer"
	MethodOCR       Method = "ocr"
)

// PageText is the extracted text of a single page. Index is 1-based and
// contiguous; Text may be empty when the page had no usable content.
type PageText struct {
	Index  int
	Text   string
	Method Method
}

// Result is the output of one ingestion: normalized full text plus
// derived metadata. PageCount is 0 for non-paginated inputs (raw images).
type Result struct {
	Text      string
	PageCount int
	WordCount int
	CharCount int
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

// nonSpaceLen counts non-whitespace runes, the unit both usable-length
// thresholds are measured in.
func nonSpaceLen(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
