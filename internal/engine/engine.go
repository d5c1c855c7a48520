// Package engine drives a translation task through its whole
// pipeline: segmentation, concurrent per-segment translation,
// boundary stitching and timestamp repair. It is the only package
// that composes the others; everything below it is independently
// testable.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/segmented-transcript-translator/internal/backend"
	"github.com/MimeLyc/segmented-transcript-translator/internal/boundary"
	"github.com/MimeLyc/segmented-transcript-translator/internal/segmenter"
	"github.com/MimeLyc/segmented-transcript-translator/internal/task"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
	"github.com/MimeLyc/segmented-transcript-translator/internal/translator"
	"github.com/MimeLyc/segmented-transcript-translator/pkg/log"
)

// Config tunes the pipeline. Zero values fall back to sane defaults
// in New.
type Config struct {
	// Concurrency caps how many segments translate in parallel per
	// task.
	Concurrency int
	Estimator   segmenter.Estimator
	Retry       translator.RetryPolicy
	// NotificationRetention bounds how long read notifications are
	// kept before the daily prune removes them.
	NotificationRetention time.Duration

	CompactLines bool
	FormalTone   bool
}

const defaultConcurrency = 3

const defaultNotificationRetention = 7 * 24 * time.Hour

// Engine owns the worker side of the system. The task.Manager holds
// the state; the Engine holds the goroutines.
type Engine struct {
	manager *task.Manager
	backend backend.Backend
	cfg     Config

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	// sweeps collapses overlapping zombie sweeps into one.
	sweeps singleflight.Group
}

func New(manager *task.Manager, b backend.Backend, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Estimator == (segmenter.Estimator{}) {
		cfg.Estimator = segmenter.DefaultEstimator
	}
	if cfg.Retry == (translator.RetryPolicy{}) {
		cfg.Retry = translator.DefaultRetryPolicy
	}
	if cfg.NotificationRetention <= 0 {
		cfg.NotificationRetention = defaultNotificationRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		manager: manager,
		backend: b,
		cfg:     cfg,
		baseCtx: ctx,
		stop:    cancel,
	}
}

// Submit creates (or returns the existing) task for the request and,
// when it is new, dispatches a worker for it.
func (e *Engine) Submit(req task.CreateRequest) (*task.TranslationTask, bool) {
	t, isNew := e.manager.Create(req)
	if isNew {
		e.dispatch(t.ID)
	}
	return t, isNew
}

// Resume returns a paused task to work and dispatches a fresh worker.
// Segments that already carry a completed partial result are not
// re-translated.
func (e *Engine) Resume(id string) error {
	if err := e.manager.Resume(id); err != nil {
		return err
	}
	e.dispatch(id)
	return nil
}

// Restart resets a terminal task to queued and runs it from scratch.
func (e *Engine) Restart(id string) error {
	if err := e.manager.Restart(id); err != nil {
		return err
	}
	e.dispatch(id)
	return nil
}

// Recover re-dispatches tasks that were mid-flight when the process
// last stopped. Called once at startup, after the manager hydrated.
func (e *Engine) Recover() {
	for _, t := range e.manager.List() {
		if t.Status.Active() {
			log.Info("Recovering in-flight task %s (status %s)", t.ID, t.Status)
			e.dispatch(t.ID)
		}
	}
}

// Shutdown cancels all workers and waits for them to unwind.
func (e *Engine) Shutdown() {
	e.stop()
	e.wg.Wait()
	e.manager.Stop()
}

// Schedule registers the periodic maintenance jobs on the given cron:
// the zombie sweep and the notification prune.
func (e *Engine) Schedule(c *cron.Cron) error {
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", task.SweepInterval), e.Sweep); err != nil {
		return fmt.Errorf("failed to schedule zombie sweep: %w", err)
	}
	if _, err := c.AddFunc("@daily", func() {
		if n := e.manager.PruneNotifications(e.cfg.NotificationRetention); n > 0 {
			log.Info("Pruned %d read notifications", n)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule notification prune: %w", err)
	}
	return nil
}

// Sweep force-fails tasks with stale heartbeats. Overlapping calls
// share one execution.
func (e *Engine) Sweep() {
	e.sweeps.Do("sweep", func() (any, error) {
		if n := e.manager.SweepZombies(); n > 0 {
			log.Warn("Zombie sweep failed %d stale task(s)", n)
		}
		return nil, nil
	})
}

func (e *Engine) dispatch(id string) {
	ctx, cancel := context.WithCancel(e.baseCtx)
	e.manager.BindCancel(id, cancel)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.run(ctx, id)
	}()
}

// run executes the pipeline for one task. Any error that is not a
// pause/cancel fails the task; pause and cancel have already set
// their status, so a cancelled context just unwinds.
func (e *Engine) run(ctx context.Context, id string) {
	if err := e.runPipeline(ctx, id); err != nil {
		if ctx.Err() != nil {
			log.Info("Task %s worker stopped: %v", id, ctx.Err())
			return
		}
		// Pause flips the status before cancelling the worker context,
		// so a straggler's discarded-result error can surface here while
		// ctx still looks live. Only a task that is still running fails.
		if t, ok := e.manager.Get(id); ok && !t.Status.Active() {
			log.Info("Task %s worker stopped (status %s): %v", id, t.Status, err)
			return
		}
		log.Error("Task %s failed: %v", id, err)
		if ferr := e.manager.Fail(id, err.Error()); ferr != nil {
			log.Warn("Could not mark task %s failed: %v", id, ferr)
		}
	}
}

func (e *Engine) runPipeline(ctx context.Context, id string) error {
	t, ok := e.manager.Get(id)
	if !ok {
		return task.ErrTaskNotFound
	}

	stopHeartbeat := e.startHeartbeat(ctx, id)
	defer stopHeartbeat()

	tc := backend.Context{
		VideoTitle:     t.VideoTitle,
		SourceLanguage: t.SourceLanguage,
		TargetLanguage: t.TargetLanguage,
		Model:          t.Model,
		CompactLines:   e.cfg.CompactLines,
		FormalTone:     e.cfg.FormalTone,
	}
	if tc.SourceLanguage == "" {
		tc.SourceLanguage = transcript.DetectLanguage(t.Source).String()
		log.Info("Task %s detected source language %s", id, tc.SourceLanguage)
	}

	// Segmentation is deterministic over the same source, so a
	// resumed task recomputes the same segments its partial results
	// belong to.
	segs := segmenter.Split(t.Source, t.Model, t.Preference, e.cfg.Estimator)

	status := t.Status
	if status == task.StatusQueued {
		if err := e.manager.BeginSegmenting(id); err != nil {
			return err
		}
		status = task.StatusSegmenting
	}
	// A worker recovered mid-segmentation enters here with the status
	// already at segmenting and no segment records yet; re-running
	// StartTranslating rebuilds the same records because the split is
	// deterministic.
	if status == task.StatusSegmenting {
		log.Info("Task %s split into %d segment(s)", id, len(segs))
		if err := e.manager.StartTranslating(id, segs); err != nil {
			return err
		}
	}

	// Zero segments means an empty transcript: nothing to translate,
	// stitch, or repair.
	if len(segs) == 0 {
		return e.manager.Complete(id, nil)
	}

	results, err := e.translateSegments(ctx, id, segs, tc)
	if err != nil {
		return err
	}

	stitched := e.stitch(ctx, segs, results, tc)

	if err := e.manager.BeginOptimizing(id); err != nil {
		return err
	}
	repaired := transcript.RepairTimestamps(stitched)

	return e.manager.Complete(id, repaired)
}

// translateSegments fans the segments out over a bounded worker
// group and returns the per-segment results in order. Segments whose
// record already holds a completed partial result are reused as-is.
func (e *Engine) translateSegments(ctx context.Context, id string, segs []segmenter.Segment, tc backend.Context) ([][]transcript.Entry, error) {
	done := make(map[int][]transcript.Entry)
	for _, rec := range e.manager.Segments(id) {
		if rec.Status == task.SegmentCompleted && rec.PartialResult != nil {
			done[rec.SegmentIndex] = rec.PartialResult
		}
	}

	tr := translator.New(e.backend, e.cfg.Retry)
	tr.OnRetry = func(index, attempt int) {
		e.manager.MarkSegmentRetrying(id, index, attempt-1)
	}

	results := make([][]transcript.Entry, len(segs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, seg := range segs {
		seg := seg
		if prior, ok := done[seg.Index]; ok {
			results[seg.Index] = prior
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			e.manager.MarkSegmentTranslating(id, seg.Index)

			started := time.Now()
			res := tr.Translate(gctx, seg, tc)
			if gctx.Err() != nil {
				// Pause or cancel interrupted the call; whatever came
				// back is not recorded.
				return gctx.Err()
			}
			elapsed := time.Since(started).Milliseconds()

			if !e.manager.CompleteSegment(id, seg.Index, res.Entries, elapsed, res.Attempts, res.Degraded) {
				return fmt.Errorf("task %s no longer translating", id)
			}
			mu.Lock()
			results[seg.Index] = res.Entries
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A fully-resumed task can reach here without a single new
	// completion, leaving the status at translating. Re-reporting the
	// last segment is idempotent and performs the phase transition.
	if len(segs) > 0 {
		if t, ok := e.manager.Get(id); ok && t.Status == task.StatusTranslating {
			last := segs[len(segs)-1]
			e.manager.CompleteSegment(id, last.Index, results[last.Index], 0, 0, false)
		}
	}
	return results, nil
}

// stitch analyzes the segment joins and re-translates the windows
// around breakable ones. Stitch failures keep the pre-stitch text.
func (e *Engine) stitch(ctx context.Context, segs []segmenter.Segment, results [][]transcript.Entry, tc backend.Context) []transcript.Entry {
	analyzer := boundary.NewAnalyzer(boundary.ForLanguage(tc.TargetLanguage))
	analyses := analyzer.Analyze(results)

	sizes := make([]int, len(results))
	var merged []transcript.Entry
	for i, r := range results {
		sizes[i] = len(r)
		merged = append(merged, r...)
	}

	needed := 0
	for _, a := range analyses {
		if a.NeedsStitching {
			needed++
		}
	}
	if needed == 0 {
		return merged
	}
	log.Info("Stitching %d of %d segment boundaries", needed, len(analyses))

	stitcher := boundary.NewStitcher(e.backend)
	return stitcher.Stitch(ctx, merged, sizes, analyses, tc)
}

// startHeartbeat refreshes the task's liveness mark until the
// returned stop function is called or the context ends.
func (e *Engine) startHeartbeat(ctx context.Context, id string) func() {
	hctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(task.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hctx.Done():
				return
			case <-ticker.C:
				e.manager.Heartbeat(id)
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
