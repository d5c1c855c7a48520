// Package backend defines the Model Backend contract and its HTTP
// chat-completion implementation. The engine only ever sees validated
// entry sequences; any provider-specific shape normalization happens
// on this side of the boundary.
package backend

import (
	"context"
	"errors"

	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

// ErrMalformedResponse marks a backend reply whose shape or entry
// count does not match the request. Callers treat it the same as a
// transport failure for retry purposes.
var ErrMalformedResponse = errors.New("malformed backend response")

// Context carries the per-request translation settings: what is being
// translated, into which language, and with which model parameters.
type Context struct {
	VideoTitle     string
	SourceLanguage string
	TargetLanguage string
	Model          string
	// Temperature overrides the client default when > 0; retries pass
	// a downgraded value here.
	Temperature float64
	// CompactLines asks for translations short enough for on-screen
	// display instead of the most literal rendering.
	CompactLines bool
	// FormalTone forces formal register in languages that mark it.
	FormalTone bool
}

// BoundaryHint describes the segmentation cut inside a stitch window.
type BoundaryHint struct {
	// WindowCut is the index within the window of the first entry
	// after the cut.
	WindowCut      int
	Issues         []string
	TimeGapSeconds float64
}

// Backend is the remote model collaborator. Both calls are opaque,
// possibly-slow and retryable; implementations must honor ctx
// cancellation and return entry sequences matching the input count
// with timestamps preserved.
type Backend interface {
	Translate(ctx context.Context, entries []transcript.Entry, tc Context) ([]transcript.Entry, error)
	StitchContext(ctx context.Context, window []transcript.Entry, hint BoundaryHint, tc Context) ([]transcript.Entry, error)
}
