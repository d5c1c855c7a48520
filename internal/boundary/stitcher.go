package boundary

import (
	"context"

	"github.com/MimeLyc/segmented-transcript-translator/internal/backend"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
	"github.com/MimeLyc/segmented-transcript-translator/pkg/log"
)

// WindowSize is the fixed stitch context window: an even number of
// entries split evenly before and after the boundary.
const WindowSize = 6

// Stitcher repairs flagged joins by re-translating a small window
// around each one and splicing the corrected text back in.
type Stitcher struct {
	backend backend.Backend
	window  int
}

func NewStitcher(b backend.Backend) *Stitcher {
	return &Stitcher{backend: b, window: WindowSize}
}

// Stitch applies repairs for every flagged boundary, sequentially:
// adjacent windows can overlap on short segments, and two concurrent
// splices over the same region would corrupt the transcript. One
// boundary failing never aborts the others. segmentSizes gives the
// entry count per segment, used to locate each boundary inside the
// merged sequence. The returned slice is a new sequence with the
// final timestamp-repair pass applied.
func (s *Stitcher) Stitch(ctx context.Context, merged []transcript.Entry, segmentSizes []int, analyses []Analysis, tc backend.Context) []transcript.Entry {
	out := transcript.Clone(merged)

	offsets := boundaryOffsets(segmentSizes)
	for _, analysis := range analyses {
		if !analysis.NeedsStitching {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		cut, ok := offsets[analysis.NextSegmentIndex]
		if !ok {
			continue
		}
		s.stitchOne(ctx, out, cut, analysis, tc)
	}

	return transcript.RepairTimestamps(out)
}

// stitchOne repairs a single boundary in place. Any failure leaves
// the original window untouched.
func (s *Stitcher) stitchOne(ctx context.Context, entries []transcript.Entry, cut int, analysis Analysis, tc backend.Context) {
	start := cut - s.window/2
	if start < 0 {
		start = 0
	}
	end := cut + s.window/2
	if end > len(entries) {
		end = len(entries)
	}
	if end-start < 2 || cut <= start || cut >= end {
		return
	}

	window := transcript.Clone(entries[start:end])
	hint := backend.BoundaryHint{
		WindowCut:      cut - start,
		Issues:         IssueStrings(analysis.Issues),
		TimeGapSeconds: analysis.TimeGapSeconds,
	}

	repaired, err := s.backend.StitchContext(ctx, window, hint, tc)
	if err != nil {
		log.Warn("Stitch for boundary %d/%d failed, keeping original window: %v",
			analysis.SegmentIndex, analysis.NextSegmentIndex, err)
		return
	}
	if len(repaired) != len(window) {
		log.Warn("Stitch for boundary %d/%d returned %d entries, expected %d; discarding",
			analysis.SegmentIndex, analysis.NextSegmentIndex, len(repaired), len(window))
		return
	}

	// Splice texts only; the window's timestamps are authoritative.
	for i, entry := range repaired {
		entries[start+i].Text = entry.Text
	}
}

// boundaryOffsets maps a segment index to the merged-sequence index
// of that segment's first entry.
func boundaryOffsets(segmentSizes []int) map[int]int {
	offsets := make(map[int]int, len(segmentSizes))
	pos := 0
	for i, size := range segmentSizes {
		offsets[i] = pos
		pos += size
	}
	return offsets
}
