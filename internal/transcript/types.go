package transcript

// Entry is a single timestamped line of a transcript. Times are in
// seconds from the start of the source media, with Start < End.
// Entries are treated as immutable: stages that change text or timing
// produce a new slice instead of mutating in place.
type Entry struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Clone returns an independent copy of the entry slice.
func Clone(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// CharacterCount sums the rune length of every entry's text.
func CharacterCount(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += len([]rune(e.Text))
	}
	return total
}
