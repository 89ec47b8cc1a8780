package doc2img

import (
	"fmt"
	"time"
)

// State is the position of a request in the conversion pipeline.
type State string

// Pipeline states. Completed and Failed are terminal.
const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateDownloaded State = "downloaded"
	StateConverting State = "converting"
	StateRendering  State = "rendering"
	StateAssembling State = "assembling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether s is Completed or Failed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Image is one rendered page or sheet, encoded as PNG.
type Image struct {
	Name   string // sheet name, or document base name for text input
	Index  int    // position in the document, 0-based
	PNG    []byte
	Width  int
	Height int
}

// Failure records a page or sheet that could not be rendered.
type Failure struct {
	Name  string
	Index int
	Err   error
}

// Result is the outcome of one conversion request.
type Result struct {
	ID       string // request id, also used in logs
	Name     string // original document name
	Format   Format
	State    State
	Images   []Image   // in document order
	Failures []Failure // in document order
	Total    int       // number of pages or sheets attempted
	Err      error     // set when State is StateFailed
	Duration time.Duration
}

// Succeeded returns the number of images produced.
func (r *Result) Succeeded() int { return len(r.Images) }

// Partial reports whether some but not all pages were rendered.
func (r *Result) Partial() bool {
	return r.State == StateCompleted && len(r.Failures) > 0
}

// FirstError returns the error of the failed page with the lowest index,
// or the request error when nothing could be rendered. Nil on full success.
func (r *Result) FirstError() error {
	if len(r.Failures) > 0 {
		return r.Failures[0].Err
	}
	return r.Err
}

// Summary returns a one-line count of the outcome.
func (r *Result) Summary() string {
	if r.State == StateFailed && r.Total == 0 {
		return fmt.Sprintf("conversion failed: %s", UserMessage(r.Err))
	}
	return fmt.Sprintf("converted %d/%d images", r.Succeeded(), r.Total)
}

// fail moves r to StateFailed with err.
func (r *Result) fail(err error) {
	r.State = StateFailed
	r.Err = err
}
