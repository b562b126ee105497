package ingest

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat reports a declared MIME type that is neither a
// supported document container nor a raster image. Matched with errors.Is.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrEmptyExtraction reports that every extraction strategy was exhausted
// and the document still yielded no usable text. The caller can only
// recover by supplying different input.
var ErrEmptyExtraction = errors.New("no usable text extracted")

// UnsupportedFormatError carries the offending MIME type.
type UnsupportedFormatError struct {
	MIMEType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q (want application/pdf or image/*)", e.MIMEType)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// CorruptInputError reports a container that could not be parsed at all.
type CorruptInputError struct {
	Filename string
	Err      error
}

func (e *CorruptInputError) Error() string {
	return fmt.Sprintf("could not parse %s: %v", e.Filename, e.Err)
}

func (e *CorruptInputError) Unwrap() error {
	return e.Err
}

// EmptyExtractionError reports how far short of the minimum the extracted
// text fell.
type EmptyExtractionError struct {
	Chars int
	Min   int
}

func (e *EmptyExtractionError) Error() string {
	return fmt.Sprintf("extracted only %d non-whitespace characters (need at least %d): the document may be empty or the scan quality too low", e.Chars, e.Min)
}

func (e *EmptyExtractionError) Is(target error) bool {
	return target == ErrEmptyExtraction
}

// RenderError reports a single page that could not be rasterized. It is
// recovered inside the pipeline (the page contributes empty text) and is
// never returned from Ingest.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("could not render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
