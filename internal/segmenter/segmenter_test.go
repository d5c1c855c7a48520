package segmenter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

func makeEntries(n int, text string) []transcript.Entry {
	entries := make([]transcript.Entry, n)
	for i := range entries {
		entries[i] = transcript.Entry{
			Start: float64(i) * 2,
			End:   float64(i)*2 + 1.5,
			Text:  fmt.Sprintf("%s #%d", text, i),
		}
	}
	return entries
}

func TestSplit_EmptyInputYieldsZeroSegments(t *testing.T) {
	assert.Empty(t, Split(nil, "gpt-4o", PreferenceQuality, DefaultEstimator))
	assert.Empty(t, Split([]transcript.Entry{}, "gpt-4o", PreferenceQuality, DefaultEstimator))
}

func TestSplit_LosslessPartition(t *testing.T) {
	entries := makeEntries(137, "some spoken line that has a realistic length for subtitles")

	segments := Split(entries, "gpt-4", PreferenceQuality, DefaultEstimator)
	require.NotEmpty(t, segments)

	merged := Merge(segments)
	require.Equal(t, entries, merged, "concatenated segments must reproduce the input exactly")

	for i, seg := range segments {
		assert.Equal(t, i, seg.Index, "indices must be contiguous from 0")
		assert.NotEmpty(t, seg.Entries)
	}
}

func TestSplit_UnknownModelUsesDefaultBudget(t *testing.T) {
	entries := makeEntries(40, "line")
	segments := Split(entries, "totally-unknown-model-v99", PreferenceQuality, DefaultEstimator)
	require.NotEmpty(t, segments)
	assert.Equal(t, entries, Merge(segments))
}

func TestSplit_SpeedNeverProducesFewerSegmentsThanQuality(t *testing.T) {
	for _, n := range []int{5, 60, 130, 400} {
		entries := makeEntries(n, "a fairly long line of dialogue that consumes a decent token count")

		quality := Split(entries, "gpt-4", PreferenceQuality, DefaultEstimator)
		speed := Split(entries, "gpt-4", PreferenceSpeed, DefaultEstimator)

		assert.GreaterOrEqual(t, len(speed), len(quality), "n=%d", n)
	}
}

func TestSplit_OversizedSingleEntryGetsOwnSegment(t *testing.T) {
	huge := make([]rune, 0, 40000)
	for i := 0; i < 40000; i++ {
		huge = append(huge, 'x')
	}
	entries := []transcript.Entry{
		{Start: 0, End: 1, Text: "short"},
		{Start: 2, End: 3, Text: string(huge)},
		{Start: 4, End: 5, Text: "short again"},
	}

	segments := Split(entries, "gpt-4", PreferenceQuality, DefaultEstimator)
	require.GreaterOrEqual(t, len(segments), 2)
	assert.Equal(t, entries, Merge(segments), "an oversized entry must never be split or dropped")
}

func TestSplit_ThreeSegmentScenario(t *testing.T) {
	// 130 entries of exactly 100 runes each against gpt-4's budget.
	// Working threshold: int(8192*0.7) - 500 = 5234 tokens. With one
	// token per rune each entry costs 101, so 51 entries fit per
	// segment and the transcript splits 51 + 51 + 28.
	text := strings.Repeat("x", 100)
	entries := make([]transcript.Entry, 130)
	for i := range entries {
		entries[i] = transcript.Entry{Start: float64(i), End: float64(i) + 0.9, Text: text}
	}

	est := Estimator{TokensPerChar: 1.0, ExpansionFactor: 1.0, RequestOverhead: 500}
	segments := Split(entries, "gpt-4", PreferenceQuality, est)

	require.Len(t, segments, 3)
	total := 0
	for _, seg := range segments {
		total += len(seg.Entries)
	}
	assert.Equal(t, 130, total)
	assert.Equal(t, 51, len(segments[0].Entries))
	assert.Equal(t, 51, len(segments[1].Entries))
	assert.Equal(t, 28, len(segments[2].Entries))
}
