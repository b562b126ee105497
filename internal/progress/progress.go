package progress

import "time"

// Stage identifies which pipeline stage is active.
type Stage string

const (
	StageExtract  Stage = "extract"
	StageOCR      Stage = "ocr"
	StageAnalyze  Stage = "analyze"
	StageGenerate Stage = "generate"
	StageUpload   Stage = "upload"
	StageComplete Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage     Stage
	Message   string
	Percent   float64 // 0.0–1.0
	PageNum   int
	PageTotal int
	Elapsed   time.Duration
	Error     error
	// OutputFile is set on StageComplete with the final quiz path.
	OutputFile string
	// Questions is the generated question count, set on StageComplete.
	Questions int
	// Words is the extracted word count, set on StageComplete.
	Words int
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}
