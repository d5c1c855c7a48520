package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/segmented-transcript-translator/internal/segmenter"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

// manualClock lets tests move time without sleeping.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnTaskEvent(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func sampleEntries(n int) []transcript.Entry {
	entries := make([]transcript.Entry, n)
	for i := range entries {
		entries[i] = transcript.Entry{Start: float64(i), End: float64(i) + 0.5, Text: "line"}
	}
	return entries
}

func sampleSegments(sizes ...int) []segmenter.Segment {
	segs := make([]segmenter.Segment, len(sizes))
	for i, size := range sizes {
		segs[i] = segmenter.Segment{Index: i, Entries: sampleEntries(size), EstimatedTokens: size * 10}
	}
	return segs
}

func newTestManager(opts ...Option) (*Manager, *recordingSink, *manualClock) {
	clock := newManualClock()
	sink := &recordingSink{}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewManager(nil, sink, opts...), sink, clock
}

func createTask(t *testing.T, m *Manager, videoID string) *TranslationTask {
	t.Helper()
	created, isNew := m.Create(CreateRequest{
		VideoID:        videoID,
		TargetLanguage: "zh",
		Model:          "gpt-4o",
		Preference:     segmenter.PreferenceQuality,
		Entries:        sampleEntries(10),
	})
	require.True(t, isNew)
	return created
}

// driveToTranslating walks a fresh task into the translating phase.
func driveToTranslating(t *testing.T, m *Manager, id string, sizes ...int) {
	t.Helper()
	require.NoError(t, m.BeginSegmenting(id))
	require.NoError(t, m.StartTranslating(id, sampleSegments(sizes...)))
}

func TestCreate_IdempotentPerVideo(t *testing.T) {
	m, _, _ := newTestManager()

	first := createTask(t, m, "vid-1")
	second, isNew := m.Create(CreateRequest{VideoID: "vid-1", TargetLanguage: "zh", Model: "gpt-4o"})

	require.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)

	// A terminal task frees the slot.
	require.NoError(t, m.Cancel(first.ID))
	third, isNew := m.Create(CreateRequest{VideoID: "vid-1", TargetLanguage: "zh", Model: "gpt-4o"})
	require.True(t, isNew)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestSegmentCompletion_ProgressMonotonicUntilStitching(t *testing.T) {
	m, _, _ := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 4, 4, 2)

	var last int
	for i := 0; i < 3; i++ {
		applied := m.CompleteSegment(task.ID, i, sampleEntries(2), 120, 1, false)
		require.True(t, applied)

		got, ok := m.Get(task.ID)
		require.True(t, ok)
		assert.GreaterOrEqual(t, got.ProgressPercentage, last, "progress must be non-decreasing")
		last = got.ProgressPercentage
		assert.Equal(t, i+1, got.CompletedSegments)
	}

	got, _ := m.Get(task.ID)
	assert.Equal(t, 100, got.ProgressPercentage)
	assert.Equal(t, StatusStitching, got.Status, "all segments done moves the task to stitching")
}

func TestSegmentCompletion_Idempotent(t *testing.T) {
	m, _, _ := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 5, 5)

	require.True(t, m.CompleteSegment(task.ID, 0, sampleEntries(5), 100, 1, false))
	require.True(t, m.CompleteSegment(task.ID, 0, sampleEntries(5), 100, 1, false))

	got, _ := m.Get(task.ID)
	assert.Equal(t, 1, got.CompletedSegments, "repeated completion of one segment must not double-count")
	assert.Equal(t, 50, got.ProgressPercentage)
}

func TestSegmentCompletion_DiscardedAfterPause(t *testing.T) {
	m, _, _ := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 5, 5)

	require.NoError(t, m.Pause(task.ID))

	applied := m.CompleteSegment(task.ID, 0, sampleEntries(5), 100, 1, false)
	assert.False(t, applied, "straggler results are discarded once the task is paused")

	got, _ := m.Get(task.ID)
	assert.Equal(t, 0, got.CompletedSegments)
	assert.False(t, got.PausedAt.IsZero())
}

func TestPauseResumeGuards(t *testing.T) {
	m, _, _ := newTestManager()
	task := createTask(t, m, "vid-1")

	// Resume on a non-paused task is rejected synchronously.
	err := m.Resume(task.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.Pause(task.ID))
	err = m.Pause(task.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.Resume(task.ID))
	got, _ := m.Get(task.ID)
	assert.Equal(t, StatusQueued, got.Status, "paused before segmentation resumes through the queue")
	assert.True(t, got.PausedAt.IsZero())
}

func TestResume_MidTranslationReturnsToTranslating(t *testing.T) {
	m, _, _ := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 5, 5)
	m.CompleteSegment(task.ID, 0, sampleEntries(5), 100, 1, false)

	require.NoError(t, m.Pause(task.ID))
	require.NoError(t, m.Resume(task.ID))

	got, _ := m.Get(task.ID)
	assert.Equal(t, StatusTranslating, got.Status)
	assert.Equal(t, 1, got.CompletedSegments, "earlier segment results survive the pause")
}

func TestFail_RejectedWhilePaused(t *testing.T) {
	m, _, _ := newTestManager()
	created := createTask(t, m, "vid-1")
	driveToTranslating(t, m, created.ID, 5, 5)
	require.NoError(t, m.Pause(created.ID))

	// A straggling worker reporting an error must not flip a paused
	// task into failed.
	err := m.Fail(created.ID, "backend unavailable")
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, ok := m.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPaused, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestDeleteRequiresTerminalStatus(t *testing.T) {
	m, _, _ := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 5)

	require.NoError(t, m.Pause(task.ID))
	err := m.Delete(task.ID)
	require.ErrorIs(t, err, ErrNotTerminal, "paused is not terminal")

	require.NoError(t, m.Cancel(task.ID))
	require.NoError(t, m.Delete(task.ID))

	_, ok := m.Get(task.ID)
	assert.False(t, ok)
}

func TestRestart_ResetsProgressAndSegments(t *testing.T) {
	m, _, _ := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 3, 3)

	m.CompleteSegment(task.ID, 0, sampleEntries(3), 50, 1, false)
	m.CompleteSegment(task.ID, 1, sampleEntries(3), 50, 1, false)
	require.NoError(t, m.Complete(task.ID, sampleEntries(6)))

	require.NoError(t, m.Restart(task.ID))

	got, _ := m.Get(task.ID)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, 0, got.CompletedSegments)
	assert.Equal(t, 0, got.ProgressPercentage)
	assert.Empty(t, got.ErrorMessage)
	assert.True(t, got.CompletedAt.IsZero())

	for _, seg := range m.Segments(task.ID) {
		assert.Equal(t, SegmentPending, seg.Status)
		assert.Nil(t, seg.PartialResult)
		assert.Zero(t, seg.RetryCount)
	}
}

func TestRestart_RejectedWhileRunning(t *testing.T) {
	m, _, _ := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 3)

	err := m.Restart(task.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSweep_FailsStaleActiveTask(t *testing.T) {
	m, _, clock := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 3)

	clock.Advance(StalenessThreshold + time.Second)
	failed := m.SweepZombies()

	assert.Equal(t, 1, failed)
	got, _ := m.Get(task.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestSweep_SkipsHealthyPausedAndTerminal(t *testing.T) {
	m, _, clock := newTestManager()

	healthy := createTask(t, m, "vid-healthy")
	driveToTranslating(t, m, healthy.ID, 3)

	paused := createTask(t, m, "vid-paused")
	require.NoError(t, m.Pause(paused.ID))

	done := createTask(t, m, "vid-done")
	require.NoError(t, m.Cancel(done.ID))

	clock.Advance(StalenessThreshold + time.Second)
	m.Heartbeat(healthy.ID) // refreshed just in time

	assert.Equal(t, 0, m.SweepZombies())

	got, _ := m.Get(healthy.ID)
	assert.Equal(t, StatusTranslating, got.Status)
	got, _ = m.Get(paused.ID)
	assert.Equal(t, StatusPaused, got.Status)
}

func TestSweep_RespectsCompletionRace(t *testing.T) {
	m, _, clock := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 1)

	clock.Advance(StalenessThreshold + time.Second)
	// The task finishes "between" the sweep's check and its write.
	m.CompleteSegment(task.ID, 0, sampleEntries(1), 10, 1, false)
	require.NoError(t, m.Complete(task.ID, sampleEntries(1)))

	assert.Equal(t, 0, m.SweepZombies())
	got, _ := m.Get(task.ID)
	assert.Equal(t, StatusCompleted, got.Status, "a normally-completed task must not be forced to failed")
}

func TestConcurrentSegmentCompletions(t *testing.T) {
	m, _, _ := newTestManager()
	task := createTask(t, m, "vid-1")

	const n = 32
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = 2
	}
	driveToTranslating(t, m, task.ID, sizes...)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			m.CompleteSegment(task.ID, idx, sampleEntries(2), 10, 1, false)
		}(i)
	}
	wg.Wait()

	got, _ := m.Get(task.ID)
	assert.Equal(t, n, got.CompletedSegments)
	assert.Equal(t, 100, got.ProgressPercentage)
	assert.Equal(t, StatusStitching, got.Status)
}

func TestEventsAndNotificationsEmitted(t *testing.T) {
	m, sink, _ := newTestManager()
	task := createTask(t, m, "vid-1")
	driveToTranslating(t, m, task.ID, 2)
	m.CompleteSegment(task.ID, 0, sampleEntries(2), 10, 1, false)
	require.NoError(t, m.Complete(task.ID, sampleEntries(2)))

	events := sink.all()
	require.NotEmpty(t, events)
	lastEvent := events[len(events)-1]
	assert.Equal(t, StatusCompleted, lastEvent.Status)
	assert.Equal(t, 100, lastEvent.Progress)
	assert.NotEmpty(t, lastEvent.Result)

	notifs := m.Notifications(task.ID)
	require.NotEmpty(t, notifs)
	last := notifs[len(notifs)-1]
	assert.Equal(t, NotificationCompleted, last.Type)
	assert.False(t, last.IsRead)

	require.NoError(t, m.MarkNotificationRead(last.ID))
	notifs = m.Notifications(task.ID)
	assert.True(t, notifs[len(notifs)-1].IsRead)
}
