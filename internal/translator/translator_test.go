package translator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/segmented-transcript-translator/internal/backend"
	"github.com/MimeLyc/segmented-transcript-translator/internal/segmenter"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

// fakeBackend scripts per-attempt outcomes.
type fakeBackend struct {
	mu           sync.Mutex
	calls        int
	temperatures []float64
	respond      func(call int, entries []transcript.Entry) ([]transcript.Entry, error)
}

func (f *fakeBackend) Translate(_ context.Context, entries []transcript.Entry, tc backend.Context) ([]transcript.Entry, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.temperatures = append(f.temperatures, tc.Temperature)
	f.mu.Unlock()
	return f.respond(call, entries)
}

func (f *fakeBackend) StitchContext(_ context.Context, window []transcript.Entry, _ backend.BoundaryHint, _ backend.Context) ([]transcript.Entry, error) {
	return window, nil
}

func translated(entries []transcript.Entry) []transcript.Entry {
	out := transcript.Clone(entries)
	for i := range out {
		out[i].Text = "T:" + out[i].Text
	}
	return out
}

func testSegment() segmenter.Segment {
	return segmenter.Segment{
		Index: 0,
		Entries: []transcript.Entry{
			{Start: 0, End: 1, Text: "one"},
			{Start: 1, End: 2, Text: "two"},
		},
	}
}

func quickRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Backoff: 0, RetryTemperature: 0.2}
}

func TestTranslate_SuccessFirstAttempt(t *testing.T) {
	fb := &fakeBackend{respond: func(_ int, entries []transcript.Entry) ([]transcript.Entry, error) {
		return translated(entries), nil
	}}
	tr := New(fb, quickRetry())

	res := tr.Translate(context.Background(), testSegment(), backend.Context{TargetLanguage: "zh", Temperature: 0.7})

	require.False(t, res.Degraded)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "T:one", res.Entries[0].Text)
	assert.Equal(t, 1, fb.calls)
}

func TestTranslate_RetriesOnceWithColderTemperature(t *testing.T) {
	fb := &fakeBackend{respond: func(call int, entries []transcript.Entry) ([]transcript.Entry, error) {
		if call == 1 {
			return nil, errors.New("transport blip")
		}
		return translated(entries), nil
	}}
	tr := New(fb, quickRetry())

	res := tr.Translate(context.Background(), testSegment(), backend.Context{TargetLanguage: "zh", Temperature: 0.7})

	require.False(t, res.Degraded)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, fb.temperatures, 2)
	assert.Equal(t, 0.7, fb.temperatures[0])
	assert.Equal(t, 0.2, fb.temperatures[1], "retry must downgrade temperature")
}

func TestTranslate_ExhaustedRetryFallsBackToOriginal(t *testing.T) {
	boom := errors.New("backend down")
	fb := &fakeBackend{respond: func(int, []transcript.Entry) ([]transcript.Entry, error) {
		return nil, boom
	}}
	tr := New(fb, quickRetry())

	seg := testSegment()
	res := tr.Translate(context.Background(), seg, backend.Context{TargetLanguage: "zh"})

	require.True(t, res.Degraded)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, seg.Entries, res.Entries, "failed segment keeps its original entries")
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 2, fb.calls)
}

func TestTranslate_MalformedCountedAsFailure(t *testing.T) {
	fb := &fakeBackend{respond: func(call int, entries []transcript.Entry) ([]transcript.Entry, error) {
		if call == 1 {
			return nil, backend.ErrMalformedResponse
		}
		return translated(entries), nil
	}}
	tr := New(fb, quickRetry())

	res := tr.Translate(context.Background(), testSegment(), backend.Context{TargetLanguage: "zh"})

	assert.False(t, res.Degraded)
	assert.Equal(t, 2, res.Attempts, "malformed responses retry like transport failures")
}

func TestTranslate_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fb := &fakeBackend{respond: func(int, []transcript.Entry) ([]transcript.Entry, error) {
		cancel()
		return nil, errors.New("failed while caller cancelled")
	}}
	tr := New(fb, RetryPolicy{MaxAttempts: 3, Backoff: time.Hour, RetryTemperature: 0.2})

	res := tr.Translate(ctx, testSegment(), backend.Context{TargetLanguage: "zh"})

	require.True(t, res.Degraded)
	assert.Equal(t, 1, fb.calls, "no further attempts after cancellation")
}
