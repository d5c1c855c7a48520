package boundary

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/segmented-transcript-translator/internal/backend"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

type stitchBackend struct {
	calls   []backend.BoundaryHint
	respond func(window []transcript.Entry, hint backend.BoundaryHint) ([]transcript.Entry, error)
}

func (s *stitchBackend) Translate(_ context.Context, entries []transcript.Entry, _ backend.Context) ([]transcript.Entry, error) {
	return entries, nil
}

func (s *stitchBackend) StitchContext(_ context.Context, window []transcript.Entry, hint backend.BoundaryHint, _ backend.Context) ([]transcript.Entry, error) {
	s.calls = append(s.calls, hint)
	return s.respond(window, hint)
}

func mergedEntries(n int) []transcript.Entry {
	entries := make([]transcript.Entry, n)
	for i := range entries {
		entries[i] = transcript.Entry{Start: float64(i), End: float64(i) + 0.9, Text: "line"}
	}
	return entries
}

func flagged(segIdx int) Analysis {
	return Analysis{
		SegmentIndex:     segIdx,
		NextSegmentIndex: segIdx + 1,
		Issues:           []Issue{IssueSentenceIncomplete},
		ContinuityScore:  75,
		NeedsStitching:   true,
	}
}

func TestStitch_RepairsFlaggedBoundaryWindow(t *testing.T) {
	sb := &stitchBackend{respond: func(window []transcript.Entry, _ backend.BoundaryHint) ([]transcript.Entry, error) {
		out := transcript.Clone(window)
		for i := range out {
			out[i].Text = "fixed"
		}
		return out, nil
	}}
	st := NewStitcher(sb)

	merged := mergedEntries(10)
	// Two segments of 5 entries; boundary before entry 5.
	out := st.Stitch(context.Background(), merged, []int{5, 5}, []Analysis{flagged(0)}, backend.Context{TargetLanguage: "zh"})

	require.Len(t, out, 10, "stitching must preserve entry count")
	for i, e := range out {
		if i >= 2 && i <= 7 {
			assert.Equal(t, "fixed", e.Text, "entry %d inside window", i)
		} else {
			assert.Equal(t, "line", e.Text, "entry %d outside window", i)
		}
		assert.Equal(t, merged[i].Start, e.Start, "timestamps preserved")
	}

	require.Len(t, sb.calls, 1)
	assert.Equal(t, 3, sb.calls[0].WindowCut)
	assert.Equal(t, []string{string(IssueSentenceIncomplete)}, sb.calls[0].Issues)
}

func TestStitch_CountMismatchDiscardsOnlyThatBoundary(t *testing.T) {
	sb := &stitchBackend{respond: func(window []transcript.Entry, hint backend.BoundaryHint) ([]transcript.Entry, error) {
		if hint.WindowCut == 3 && len(window) == 6 && window[0].Start == 2 {
			// First boundary: wrong count.
			return window[:len(window)-1], nil
		}
		out := transcript.Clone(window)
		for i := range out {
			out[i].Text = "fixed"
		}
		return out, nil
	}}
	st := NewStitcher(sb)

	merged := mergedEntries(15)
	out := st.Stitch(context.Background(), merged, []int{5, 5, 5}, []Analysis{flagged(0), flagged(1)}, backend.Context{})

	require.Len(t, out, 15)
	assert.Equal(t, "line", out[4].Text, "discarded stitch keeps original window")
	assert.Equal(t, "fixed", out[9].Text, "second boundary still repaired")
}

func TestStitch_BackendErrorKeepsOriginalWindow(t *testing.T) {
	sb := &stitchBackend{respond: func(window []transcript.Entry, _ backend.BoundaryHint) ([]transcript.Entry, error) {
		return nil, errors.New("provider timeout")
	}}
	st := NewStitcher(sb)

	merged := mergedEntries(10)
	out := st.Stitch(context.Background(), merged, []int{5, 5}, []Analysis{flagged(0)}, backend.Context{})

	require.Len(t, out, 10)
	for i, e := range out {
		assert.Equal(t, merged[i].Text, e.Text)
	}
}

func TestStitch_SkipsUnflaggedBoundaries(t *testing.T) {
	sb := &stitchBackend{respond: func(window []transcript.Entry, _ backend.BoundaryHint) ([]transcript.Entry, error) {
		return window, nil
	}}
	st := NewStitcher(sb)

	clean := Analysis{SegmentIndex: 0, NextSegmentIndex: 1, ContinuityScore: 100}
	out := st.Stitch(context.Background(), mergedEntries(10), []int{5, 5}, []Analysis{clean}, backend.Context{})
	require.Len(t, out, 10)
	assert.Empty(t, sb.calls)
}

func TestStitch_RepairsOverlapsAfterSplicing(t *testing.T) {
	sb := &stitchBackend{respond: func(window []transcript.Entry, _ backend.BoundaryHint) ([]transcript.Entry, error) {
		return window, nil
	}}
	st := NewStitcher(sb)

	merged := []transcript.Entry{
		{Start: 0, End: 2.5, Text: "overlaps next"},
		{Start: 2.0, End: 3.0, Text: "second"},
	}
	out := st.Stitch(context.Background(), merged, []int{1, 1}, nil, backend.Context{})

	require.Len(t, out, 2)
	assert.InDelta(t, 2.0-transcript.RepairEpsilon, out[0].End, 1e-9)
}
