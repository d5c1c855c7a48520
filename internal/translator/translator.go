// Package translator runs one segment through the Model Backend with
// an explicit retry policy.
package translator

import (
	"context"
	"time"

	"github.com/MimeLyc/segmented-transcript-translator/internal/backend"
	"github.com/MimeLyc/segmented-transcript-translator/internal/segmenter"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
	"github.com/MimeLyc/segmented-transcript-translator/pkg/log"
)

// RetryPolicy makes the retry behavior an injected value instead of
// control flow buried in error handling: attempts, the pause between
// them, and the safer temperature used after the first failure.
type RetryPolicy struct {
	MaxAttempts      int
	Backoff          time.Duration
	RetryTemperature float64
}

// DefaultRetryPolicy retries once with a colder temperature.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:      2,
	Backoff:          2 * time.Second,
	RetryTemperature: 0.2,
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Result is the outcome of translating one segment. A segment is
// never dropped: when every attempt fails, Entries holds the
// original untranslated entries and Degraded is set.
type Result struct {
	Entries  []transcript.Entry
	Attempts int
	Degraded bool
	// Err is the last attempt's error when Degraded.
	Err error
}

// SegmentTranslator translates segments through a pluggable Backend.
type SegmentTranslator struct {
	backend backend.Backend
	retry   RetryPolicy

	// OnRetry, when set, is invoked before each retry attempt so the
	// caller can surface per-segment retry state.
	OnRetry func(segmentIndex, attempt int)
}

func New(b backend.Backend, retry RetryPolicy) *SegmentTranslator {
	return &SegmentTranslator{backend: b, retry: retry}
}

// Translate sends the segment's entries to the backend, retrying per
// the policy with a downgraded temperature. Exhausted retries degrade
// to the original entries so the segment still occupies its time
// range in the source language. A count mismatch from a non-strict
// backend is logged and accepted; the timestamp-repair pass absorbs
// minor drift.
func (t *SegmentTranslator) Translate(ctx context.Context, seg segmenter.Segment, tc backend.Context) Result {
	var lastErr error
	attemptsMade := 0

	for attempt := 1; attempt <= t.retry.attempts(); attempt++ {
		if attempt > 1 {
			tc.Temperature = t.retry.RetryTemperature
			if !sleepCtx(ctx, t.retry.Backoff) {
				break
			}
			log.Info("Retrying segment %d (attempt %d/%d) with temperature %.2f",
				seg.Index, attempt, t.retry.attempts(), tc.Temperature)
			if t.OnRetry != nil {
				t.OnRetry(seg.Index, attempt)
			}
		}

		attemptsMade = attempt
		entries, err := t.backend.Translate(ctx, seg.Entries, tc)
		if err != nil {
			lastErr = err
			log.Warn("Segment %d translation attempt %d failed: %v", seg.Index, attempt, err)
			continue
		}

		if len(entries) != len(seg.Entries) {
			log.Warn("Segment %d returned %d entries, expected %d; accepting with drift",
				seg.Index, len(entries), len(seg.Entries))
		}
		return Result{Entries: entries, Attempts: attempt}
	}

	log.Error("Segment %d failed after %d attempts, falling back to original text: %v",
		seg.Index, attemptsMade, lastErr)
	return Result{
		Entries:  transcript.Clone(seg.Entries),
		Attempts: attemptsMade,
		Degraded: true,
		Err:      lastErr,
	}
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
