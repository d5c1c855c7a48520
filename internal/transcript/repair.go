package transcript

// RepairEpsilon is the gap left between a clamped entry end and the
// next entry's start, in seconds.
const RepairEpsilon = 0.001

// RepairTimestamps walks the sequence once and clamps any entry whose
// end overlaps the next entry's start. Splicing stitched windows back
// into the merged transcript can introduce such overlaps; the repair
// never moves an end before its own start.
func RepairTimestamps(entries []Entry) []Entry {
	if len(entries) < 2 {
		return Clone(entries)
	}

	out := Clone(entries)
	for i := 0; i < len(out)-1; i++ {
		next := out[i+1]
		if out[i].End <= next.Start {
			continue
		}
		clamped := next.Start - RepairEpsilon
		if clamped < out[i].Start {
			clamped = out[i].Start
		}
		out[i].End = clamped
	}
	return out
}
