package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairTimestamps_ClampsOverlap(t *testing.T) {
	entries := []Entry{
		{Start: 0, End: 2.5, Text: "a"},
		{Start: 2.0, End: 4.0, Text: "b"},
		{Start: 4.0, End: 5.0, Text: "c"},
	}

	repaired := RepairTimestamps(entries)
	require.Len(t, repaired, 3)
	assert.InDelta(t, 2.0-RepairEpsilon, repaired[0].End, 1e-9)
	// Non-overlapping entries are untouched.
	assert.InDelta(t, 4.0, repaired[1].End, 1e-9)
	assert.InDelta(t, 5.0, repaired[2].End, 1e-9)

	// Input is not mutated.
	assert.InDelta(t, 2.5, entries[0].End, 1e-9)
}

func TestRepairTimestamps_NeverMovesEndBeforeStart(t *testing.T) {
	entries := []Entry{
		{Start: 3.0, End: 4.0, Text: "a"},
		{Start: 1.0, End: 5.0, Text: "b"},
	}

	repaired := RepairTimestamps(entries)
	assert.InDelta(t, 3.0, repaired[0].End, 1e-9, "clamp floors at the entry's own start")
}

func TestRepairTimestamps_ShortInputs(t *testing.T) {
	assert.Empty(t, RepairTimestamps(nil))

	one := RepairTimestamps([]Entry{{Start: 0, End: 1, Text: "a"}})
	require.Len(t, one, 1)
	assert.InDelta(t, 1.0, one[0].End, 1e-9)
}

func TestCharacterCount_CountsRunes(t *testing.T) {
	entries := []Entry{
		{Text: "héllo"},
		{Text: "世界"},
	}
	assert.Equal(t, 7, CharacterCount(entries))
}
