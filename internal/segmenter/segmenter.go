// Package segmenter splits a transcript into model-sized segments.
package segmenter

import (
	"github.com/MimeLyc/segmented-transcript-translator/internal/tokens"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

// Preference selects how aggressively a transcript is split.
type Preference string

const (
	// PreferenceQuality favors fewer, larger segments so fewer
	// boundaries need stitching afterwards.
	PreferenceQuality Preference = "quality"
	// PreferenceSpeed favors more, smaller segments that can be
	// translated with higher parallelism.
	PreferenceSpeed Preference = "speed"
)

// speedThreshold is the fraction of the model's max tokens used when
// the caller prefers speed over quality.
const speedThreshold = 0.5

// Segment is a contiguous slice of the transcript sized to fit one
// model request. Segments partition the source exactly: concatenating
// all segments' entries in index order reproduces the input.
type Segment struct {
	Index           int
	Entries         []transcript.Entry
	EstimatedTokens int
}

// Estimator converts text length into a token estimate. The round
// trip to the model carries the original text, the translated text,
// and formatting, so the per-character rate is multiplied by an
// expansion factor, and a fixed overhead is reserved per request.
type Estimator struct {
	TokensPerChar   float64
	ExpansionFactor float64
	RequestOverhead int
}

// DefaultEstimator is tuned for mixed-script subtitle text.
var DefaultEstimator = Estimator{
	TokensPerChar:   0.6,
	ExpansionFactor: 2.2,
	RequestOverhead: 500,
}

// EstimateTokens returns the token cost of translating one piece of text.
func (e Estimator) EstimateTokens(text string) int {
	n := float64(len([]rune(text))) * e.TokensPerChar * e.ExpansionFactor
	return int(n) + 1
}

// Split partitions entries into segments that each fit under the
// model's working token threshold. Entries are accumulated greedily;
// when the next entry would push the running estimate past the
// threshold the segment is closed and a new one starts with that
// entry. A segment always holds at least one entry, even when that
// single entry alone exceeds the threshold: an entry is never split.
// Empty input yields zero segments, which downstream treats as an
// already-complete task.
func Split(entries []transcript.Entry, modelID string, pref Preference, est Estimator) []Segment {
	if len(entries) == 0 {
		return nil
	}

	budget := tokens.Lookup(modelID)
	threshold := workingThreshold(budget, pref, est)

	segments := make([]Segment, 0, 4)
	current := Segment{Index: 0}

	for _, entry := range entries {
		cost := est.EstimateTokens(entry.Text)
		if len(current.Entries) > 0 && current.EstimatedTokens+cost > threshold {
			segments = append(segments, current)
			current = Segment{Index: len(segments)}
		}
		current.Entries = append(current.Entries, entry)
		current.EstimatedTokens += cost
	}
	segments = append(segments, current)

	return segments
}

func workingThreshold(budget tokens.Budget, pref Preference, est Estimator) int {
	fraction := budget.SafeThreshold
	if pref == PreferenceSpeed {
		fraction = speedThreshold
	}
	threshold := int(float64(budget.MaxTokens)*fraction) - est.RequestOverhead
	if threshold < 1 {
		threshold = 1
	}
	return threshold
}

// Merge concatenates segment entries in index order.
func Merge(segments []Segment) []transcript.Entry {
	total := 0
	for _, s := range segments {
		total += len(s.Entries)
	}
	merged := make([]transcript.Entry, 0, total)
	for _, s := range segments {
		merged = append(merged, s.Entries...)
	}
	return merged
}
