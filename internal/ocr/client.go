package ocr

import "context"

// LayoutBlock is a positioned chunk of recognized text.
type LayoutBlock struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text"`
}

// Result is the outcome of a text-extraction call. The service is treated as
// unreliable: failures come back as Success=false with Error set, never as a
// panic or an untyped error from the pipeline's point of view.
type Result struct {
	Success      bool          `json:"success"`
	RawText      string        `json:"rawText,omitempty"`
	LayoutBlocks []LayoutBlock `json:"layoutBlocks,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Client extracts raw text from document bytes.
type Client interface {
	ExtractText(ctx context.Context, documentBytes []byte, fileName string) Result
}

// Failure builds an unsuccessful Result from an error.
func Failure(err error) Result {
	if err == nil {
		return Result{Success: false, Error: "extraction failed"}
	}
	return Result{Success: false, Error: err.Error()}
}
