package boundary

import (
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

// Issue classifies one kind of probable breakage at a segment join.
type Issue string

const (
	IssueSentenceIncomplete Issue = "sentence-incomplete"
	IssueConnectorBreak     Issue = "connector-break"
	IssueClauseUnfinished   Issue = "clause-unfinished"
	IssueContinuationStart  Issue = "continuation-start"
)

const (
	baselineScore  = 100
	issuePenalty   = 25
	largeGapBonus  = 10
	largeGapCutoff = 3.0
	stitchCutoff   = 70
)

// Analysis scores one join between adjacent segments. Derived data:
// recomputed after all segments translate, never persisted on its own.
type Analysis struct {
	SegmentIndex     int     `json:"segment_index"`
	NextSegmentIndex int     `json:"next_segment_index"`
	TimeGapSeconds   float64 `json:"time_gap_seconds"`
	ContinuityScore  int     `json:"continuity_score"`
	Issues           []Issue `json:"issues"`
	NeedsStitching   bool    `json:"needs_stitching"`
}

// Analyzer inspects segment joins with a configurable pattern set.
type Analyzer struct {
	patterns Patterns
}

func NewAnalyzer(patterns Patterns) *Analyzer {
	return &Analyzer{patterns: patterns}
}

// Analyze returns one Analysis per adjacent segment pair, in order.
// The decision is deliberately conservative: any flagged issue marks
// the join for stitching, since a broken join is far more visible to
// viewers than one extra repair call is expensive.
func (a *Analyzer) Analyze(segments [][]transcript.Entry) []Analysis {
	if len(segments) < 2 {
		return nil
	}

	analyses := make([]Analysis, 0, len(segments)-1)
	for i := 0; i < len(segments)-1; i++ {
		left := segments[i]
		right := segments[i+1]
		if len(left) == 0 || len(right) == 0 {
			continue
		}
		analyses = append(analyses, a.analyzeJoin(i, left[len(left)-1], right[0]))
	}
	return analyses
}

func (a *Analyzer) analyzeJoin(index int, last, first transcript.Entry) Analysis {
	analysis := Analysis{
		SegmentIndex:     index,
		NextSegmentIndex: index + 1,
		TimeGapSeconds:   max(first.Start-last.End, 0),
	}

	if !a.patterns.endsTerminal(last.Text) {
		analysis.Issues = append(analysis.Issues, IssueSentenceIncomplete)
	}
	if a.patterns.endsWithConnector(last.Text) {
		analysis.Issues = append(analysis.Issues, IssueConnectorBreak)
	}
	if a.patterns.endsWithParticle(last.Text) {
		analysis.Issues = append(analysis.Issues, IssueClauseUnfinished)
	}
	if a.patterns.startsWithContinuation(first.Text) {
		analysis.Issues = append(analysis.Issues, IssueContinuationStart)
	}

	score := baselineScore - issuePenalty*len(analysis.Issues)
	// A long silence across the cut usually means a scene change, not
	// a sentence split mid-air.
	if analysis.TimeGapSeconds > largeGapCutoff && score < baselineScore {
		score += largeGapBonus
	}
	if score < 0 {
		score = 0
	}
	analysis.ContinuityScore = score
	analysis.NeedsStitching = len(analysis.Issues) > 0 || score < stitchCutoff

	return analysis
}

// IssueStrings converts issues for logging and boundary hints.
func IssueStrings(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = string(issue)
	}
	return out
}
