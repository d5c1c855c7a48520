package task

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/segmented-transcript-translator/internal/segmenter"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
	"github.com/MimeLyc/segmented-transcript-translator/pkg/log"
)

// Manager is the task registry and state machine. It is an explicit
// object handed to whatever process hosts the engine; its lifecycle
// (hydrate on construction, Stop on shutdown) is tied to that process
// rather than living in a package-level singleton.
//
// All mutation goes through Manager methods, which are safe under
// concurrent segment completions. Snapshots are returned to callers;
// internal records never escape the lock.
type Manager struct {
	store Store
	sink  Sink
	now   func() time.Time

	mu        sync.RWMutex
	tasks     map[string]*TranslationTask
	segments  map[string]map[int]*SegmentTask
	notifs    map[string][]*Notification
	byVideo   map[string]string // videoID -> non-terminal task id
	cancels   map[string]context.CancelFunc
	staleness time.Duration
}

type Option func(*Manager)

// WithClock injects a time source so liveness checks are testable
// without real time passing.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithStaleness overrides the heartbeat staleness threshold.
func WithStaleness(d time.Duration) Option {
	return func(m *Manager) { m.staleness = d }
}

func NewManager(store Store, sink Sink, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		sink:      sink,
		now:       time.Now,
		tasks:     make(map[string]*TranslationTask),
		segments:  make(map[string]map[int]*SegmentTask),
		notifs:    make(map[string][]*Notification),
		byVideo:   make(map[string]string),
		cancels:   make(map[string]context.CancelFunc),
		staleness: StalenessThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.hydrateFromStore(context.Background())
	return m
}

// Stop aborts outstanding work without changing task status. Tasks
// left active are recovered by the staleness sweep after restart.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.cancels))
	for _, cancel := range m.cancels {
		cancels = append(cancels, cancel)
	}
	m.cancels = make(map[string]context.CancelFunc)
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// CreateRequest submits one transcript for translation.
type CreateRequest struct {
	VideoID        string
	VideoTitle     string
	SourceLanguage string
	TargetLanguage string
	Model          string
	Preference     segmenter.Preference
	Entries        []transcript.Entry
}

// Create registers a new task in the queued status. Submission is
// idempotent per source transcript: if a non-terminal task already
// exists for the same video the existing one is returned and the
// second argument is false.
func (m *Manager) Create(req CreateRequest) (*TranslationTask, bool) {
	now := m.now()

	m.mu.Lock()
	if id, ok := m.byVideo[req.VideoID]; ok {
		if existing, exists := m.tasks[id]; exists && !existing.Status.Terminal() {
			snapshot := cloneTask(existing)
			m.mu.Unlock()
			return snapshot, false
		}
		delete(m.byVideo, req.VideoID)
	}

	t := &TranslationTask{
		ID:             "task-" + uuid.NewString(),
		VideoID:        req.VideoID,
		VideoTitle:     req.VideoTitle,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Model:          req.Model,
		Preference:     req.Preference,
		Status:         StatusQueued,
		Source:         transcript.Clone(req.Entries),
		LastHeartbeat:  now,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.tasks[t.ID] = t
	m.segments[t.ID] = make(map[int]*SegmentTask)
	m.byVideo[req.VideoID] = t.ID
	snapshot := cloneTask(t)
	m.mu.Unlock()

	m.persistTask(snapshot)
	m.emit(snapshot, "Task queued", nil)
	return snapshot, true
}

func (m *Manager) Get(id string) (*TranslationTask, bool) {
	m.mu.RLock()
	t, ok := m.tasks[id]
	var snapshot *TranslationTask
	if ok {
		snapshot = cloneTask(t)
	}
	m.mu.RUnlock()
	return snapshot, ok
}

func (m *Manager) List() []*TranslationTask {
	m.mu.RLock()
	ret := make([]*TranslationTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		ret = append(ret, cloneTask(t))
	}
	m.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

// Segments returns the task's segment records ordered by index.
func (m *Manager) Segments(taskID string) []*SegmentTask {
	m.mu.RLock()
	segs := m.segments[taskID]
	ret := make([]*SegmentTask, 0, len(segs))
	for _, s := range segs {
		ret = append(ret, cloneSegment(s))
	}
	m.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].SegmentIndex < ret[j].SegmentIndex
	})
	return ret
}

// BindCancel registers the cancel function of the worker currently
// driving the task, so pause/cancel can interrupt outstanding model
// calls promptly.
func (m *Manager) BindCancel(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.cancels[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) takeCancel(id string) context.CancelFunc {
	cancel := m.cancels[id]
	delete(m.cancels, id)
	return cancel
}

// Heartbeat refreshes the task's liveness timestamp while active.
func (m *Manager) Heartbeat(id string) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok || !t.Status.Active() {
		m.mu.Unlock()
		return
	}
	t.LastHeartbeat = m.now()
	snapshot := cloneTask(t)
	m.mu.Unlock()

	m.persistTask(snapshot)
}

// BeginSegmenting moves a queued task into segmenting.
func (m *Manager) BeginSegmenting(id string) error {
	return m.transition(id, StatusSegmenting, "Segmenting transcript", StatusQueued)
}

// StartTranslating records the segmentation outcome and opens the
// translating phase. TotalSegments is fixed here and never changes.
func (m *Manager) StartTranslating(id string, segs []segmenter.Segment) error {
	now := m.now()

	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.Status != StatusSegmenting {
		status := t.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot start translating from %q", ErrInvalidTransition, status)
	}

	t.Status = StatusTranslating
	t.TotalSegments = len(segs)
	t.CompletedSegments = 0
	t.CurrentSegment = 0
	t.ProgressPercentage = 0
	t.LastHeartbeat = now
	t.UpdatedAt = now

	records := make([]*SegmentTask, 0, len(segs))
	segMap := make(map[int]*SegmentTask, len(segs))
	for _, seg := range segs {
		rec := &SegmentTask{
			TaskID:          id,
			SegmentIndex:    seg.Index,
			Status:          SegmentPending,
			SubtitleCount:   len(seg.Entries),
			CharacterCount:  transcript.CharacterCount(seg.Entries),
			EstimatedTokens: seg.EstimatedTokens,
			UpdatedAt:       now,
		}
		segMap[seg.Index] = rec
		records = append(records, cloneSegment(rec))
	}
	m.segments[id] = segMap
	snapshot := cloneTask(t)
	m.mu.Unlock()

	m.persistTask(snapshot)
	for _, rec := range records {
		m.persistSegment(rec)
	}
	m.emit(snapshot, fmt.Sprintf("Translating %d segments", len(segs)), nil)
	return nil
}

// MarkSegmentTranslating flags a segment as dispatched.
func (m *Manager) MarkSegmentTranslating(taskID string, index int) {
	m.updateSegment(taskID, index, func(s *SegmentTask, t *TranslationTask) {
		s.Status = SegmentTranslating
		t.CurrentSegment = index
	})
}

// MarkSegmentRetrying flags a segment as on its retry attempt.
func (m *Manager) MarkSegmentRetrying(taskID string, index, retryCount int) {
	m.updateSegment(taskID, index, func(s *SegmentTask, _ *TranslationTask) {
		s.Status = SegmentRetrying
		s.RetryCount = retryCount
	})
}

func (m *Manager) updateSegment(taskID string, index int, mutate func(*SegmentTask, *TranslationTask)) {
	m.mu.Lock()
	t, ok := m.tasks[taskID]
	if !ok || !t.Status.Active() {
		m.mu.Unlock()
		return
	}
	s, ok := m.segments[taskID][index]
	if !ok {
		m.mu.Unlock()
		return
	}
	mutate(s, t)
	now := m.now()
	s.UpdatedAt = now
	t.UpdatedAt = now
	segSnapshot := cloneSegment(s)
	taskSnapshot := cloneTask(t)
	m.mu.Unlock()

	m.persistSegment(segSnapshot)
	m.persistTask(taskSnapshot)
}

// CompleteSegment records one segment's result and recomputes the
// parent's progress. The update is idempotent: repeated completions
// of the same segment do not move the counters. Results arriving
// after the task left the translating status (pause, cancel, forced
// failure) are discarded; the method reports whether the result was
// applied. When the last segment lands the task moves to stitching.
func (m *Manager) CompleteSegment(taskID string, index int, result []transcript.Entry, processingMs int64, retries int, degraded bool) bool {
	now := m.now()

	m.mu.Lock()
	t, ok := m.tasks[taskID]
	if !ok || t.Status != StatusTranslating {
		m.mu.Unlock()
		return false
	}
	s, ok := m.segments[taskID][index]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if s.Status != SegmentCompleted {
		s.Status = SegmentCompleted
		s.PartialResult = transcript.Clone(result)
		s.ProcessingTimeMs = processingMs
		s.RetryCount = retries
		s.UpdatedAt = now
	}

	completed := 0
	for _, rec := range m.segments[taskID] {
		if rec.Status == SegmentCompleted {
			completed++
		}
	}
	t.CompletedSegments = completed
	t.ProgressPercentage = progressPercent(completed, t.TotalSegments)
	t.LastHeartbeat = now
	t.UpdatedAt = now

	allDone := t.TotalSegments > 0 && completed == t.TotalSegments
	if allDone {
		t.Status = StatusStitching
	}
	segSnapshot := cloneSegment(s)
	taskSnapshot := cloneTask(t)
	m.mu.Unlock()

	m.persistSegment(segSnapshot)
	m.persistTask(taskSnapshot)

	message := fmt.Sprintf("Segment %d/%d completed", completed, taskSnapshot.TotalSegments)
	if degraded {
		message = fmt.Sprintf("Segment %d kept original text after retries", index)
	}
	m.emit(taskSnapshot, message, nil)
	return true
}

// BeginOptimizing moves a task from stitching into the final
// timestamp-repair phase. A worker recovered while the task was
// already optimizing re-enters the phase; that is a plain refresh.
func (m *Manager) BeginOptimizing(id string) error {
	return m.transition(id, StatusOptimizing, "Repairing timestamps", StatusStitching, StatusOptimizing)
}

// Complete finishes the task with its translated transcript.
func (m *Manager) Complete(id string, result []transcript.Entry) error {
	now := m.now()

	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if !t.Status.Active() {
		status := t.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot complete from %q", ErrInvalidTransition, status)
	}
	t.Status = StatusCompleted
	t.Result = transcript.Clone(result)
	t.CompletedAt = now
	t.UpdatedAt = now
	// Zero segments completes too: an empty transcript has nothing
	// to translate.
	t.ProgressPercentage = 100
	m.releaseVideoLocked(t)
	cancel := m.takeCancel(id)
	snapshot := cloneTask(t)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.persistTask(snapshot)
	m.emit(snapshot, "Translation completed", snapshot.Result)
	return nil
}

// Fail moves an active task to failed with a reason. A paused task
// has no worker acting on its behalf, so failing it is rejected; this
// keeps a worker's straggler error from flipping paused to failed.
func (m *Manager) Fail(id string, message string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if !t.Status.Active() {
		status := t.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot fail from %q", ErrInvalidTransition, status)
	}
	t.Status = StatusFailed
	t.ErrorMessage = message
	t.UpdatedAt = m.now()
	m.releaseVideoLocked(t)
	cancel := m.takeCancel(id)
	snapshot := cloneTask(t)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.persistTask(snapshot)
	m.emit(snapshot, message, nil)
	return nil
}

// Pause suspends an active task. Outstanding model calls are
// interrupted; results that still arrive are discarded.
func (m *Manager) Pause(id string) error {
	now := m.now()

	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if !t.Status.Active() {
		status := t.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot pause from %q", ErrInvalidTransition, status)
	}
	t.Status = StatusPaused
	t.PausedAt = now
	t.UpdatedAt = now
	cancel := m.takeCancel(id)
	snapshot := cloneTask(t)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.persistTask(snapshot)
	m.emit(snapshot, "Task paused", nil)
	return nil
}

// Resume returns a paused task to translating. The caller is expected
// to dispatch a worker for it again.
func (m *Manager) Resume(id string) error {
	now := m.now()

	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.Status != StatusPaused {
		status := t.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot resume from %q", ErrInvalidTransition, status)
	}
	// A task paused before segmentation finished has no segment
	// records to resume into; it goes back through the queue.
	if t.TotalSegments == 0 {
		t.Status = StatusQueued
	} else {
		t.Status = StatusTranslating
	}
	t.PausedAt = time.Time{}
	t.LastHeartbeat = now
	t.UpdatedAt = now
	snapshot := cloneTask(t)
	m.mu.Unlock()

	m.persistTask(snapshot)
	m.emit(snapshot, "Task resumed", nil)
	return nil
}

// Cancel aborts any non-terminal task. Segment records are kept.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.Status.Terminal() {
		status := t.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel from %q", ErrInvalidTransition, status)
	}
	t.Status = StatusCancelled
	t.UpdatedAt = m.now()
	m.releaseVideoLocked(t)
	cancel := m.takeCancel(id)
	snapshot := cloneTask(t)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.persistTask(snapshot)
	m.emit(snapshot, "Task cancelled", nil)
	return nil
}

// Restart resets a finished task back to queued: progress counters to
// zero, every segment record to pending, error cleared.
func (m *Manager) Restart(id string) error {
	now := m.now()

	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if !t.Status.Terminal() {
		status := t.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: restart requires a terminal status, task is %q", ErrInvalidTransition, status)
	}

	t.Status = StatusQueued
	t.CompletedSegments = 0
	t.CurrentSegment = 0
	t.ProgressPercentage = 0
	t.ErrorMessage = ""
	t.Result = nil
	t.CompletedAt = time.Time{}
	t.PausedAt = time.Time{}
	t.LastHeartbeat = now
	t.StartedAt = now
	t.UpdatedAt = now

	segSnapshots := make([]*SegmentTask, 0, len(m.segments[id]))
	for _, s := range m.segments[id] {
		s.Status = SegmentPending
		s.PartialResult = nil
		s.RetryCount = 0
		s.ProcessingTimeMs = 0
		s.UpdatedAt = now
		segSnapshots = append(segSnapshots, cloneSegment(s))
	}
	m.byVideo[t.VideoID] = t.ID
	snapshot := cloneTask(t)
	m.mu.Unlock()

	m.persistTask(snapshot)
	for _, s := range segSnapshots {
		m.persistSegment(s)
	}
	m.emit(snapshot, "Task restarted", nil)
	return nil
}

// Delete removes a task and all its children. Only terminal tasks
// can be deleted.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if !t.Status.Terminal() {
		status := t.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: delete requires a terminal status, task is %q", ErrNotTerminal, status)
	}
	delete(m.tasks, id)
	delete(m.segments, id)
	delete(m.notifs, id)
	delete(m.cancels, id)
	if m.byVideo[t.VideoID] == id {
		delete(m.byVideo, t.VideoID)
	}
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeleteTask(context.Background(), id); err != nil {
			log.Error("Failed to delete task %s from store: %v", id, err)
		}
	}
	return nil
}

// SweepZombies force-fails every task claiming to be active whose
// heartbeat is older than the staleness threshold. The check re-reads
// status under the lock so a task that finished between observation
// and write is left alone. Returns the number of tasks failed.
func (m *Manager) SweepZombies() int {
	now := m.now()

	m.mu.RLock()
	stale := make([]string, 0)
	for id, t := range m.tasks {
		if t.Status.Active() && now.Sub(t.LastHeartbeat) > m.staleness {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	failed := 0
	for _, id := range stale {
		m.mu.Lock()
		t, ok := m.tasks[id]
		// Re-verify: the task may have completed or been paused
		// between the scan and this write.
		if !ok || !t.Status.Active() || now.Sub(t.LastHeartbeat) <= m.staleness {
			m.mu.Unlock()
			continue
		}
		t.Status = StatusFailed
		t.ErrorMessage = fmt.Sprintf("task unresponsive: no heartbeat since %s", t.LastHeartbeat.UTC().Format(time.RFC3339))
		t.UpdatedAt = now
		m.releaseVideoLocked(t)
		cancel := m.takeCancel(id)
		snapshot := cloneTask(t)
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		m.persistTask(snapshot)
		m.emit(snapshot, snapshot.ErrorMessage, nil)
		log.Warn("Swept zombie task %s (last heartbeat %s)", id, snapshot.LastHeartbeat)
		failed++
	}
	return failed
}

// Notifications returns the task's notification log, newest last.
func (m *Manager) Notifications(taskID string) []*Notification {
	m.mu.RLock()
	list := m.notifs[taskID]
	ret := make([]*Notification, 0, len(list))
	for _, n := range list {
		ret = append(ret, cloneNotification(n))
	}
	m.mu.RUnlock()
	return ret
}

// MarkNotificationRead flips the only mutable notification field.
func (m *Manager) MarkNotificationRead(notificationID string) error {
	m.mu.Lock()
	var found *Notification
	for _, list := range m.notifs {
		for _, n := range list {
			if n.ID == notificationID {
				n.IsRead = true
				found = n
				break
			}
		}
		if found != nil {
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		return fmt.Errorf("notification %s not found", notificationID)
	}
	if m.store != nil {
		if err := m.store.MarkNotificationRead(context.Background(), notificationID); err != nil {
			log.Error("Failed to persist notification read flag %s: %v", notificationID, err)
		}
	}
	return nil
}

// PruneNotifications drops read notifications older than the cutoff.
func (m *Manager) PruneNotifications(olderThan time.Duration) int64 {
	cutoff := m.now().Add(-olderThan)

	m.mu.Lock()
	var pruned int64
	for taskID, list := range m.notifs {
		kept := list[:0]
		for _, n := range list {
			if n.IsRead && n.SentAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, n)
		}
		m.notifs[taskID] = kept
	}
	m.mu.Unlock()

	if m.store != nil {
		if _, err := m.store.DeleteReadNotificationsBefore(context.Background(), cutoff); err != nil {
			log.Error("Failed to prune notifications from store: %v", err)
		}
	}
	return pruned
}

// transition performs a guarded single-status move.
func (m *Manager) transition(id string, to Status, message string, from ...Status) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	allowed := false
	for _, s := range from {
		if t.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		status := t.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot move %q to %q", ErrInvalidTransition, status, to)
	}
	now := m.now()
	t.Status = to
	t.LastHeartbeat = now
	t.UpdatedAt = now
	snapshot := cloneTask(t)
	m.mu.Unlock()

	m.persistTask(snapshot)
	m.emit(snapshot, message, nil)
	return nil
}

func (m *Manager) releaseVideoLocked(t *TranslationTask) {
	if id, ok := m.byVideo[t.VideoID]; ok && id == t.ID {
		delete(m.byVideo, t.VideoID)
	}
}

// emit pushes a Progress Sink event and appends the matching
// notification. Called outside the lock with a snapshot.
func (m *Manager) emit(t *TranslationTask, message string, result []transcript.Entry) {
	notifType := NotificationProgress
	switch t.Status {
	case StatusCompleted:
		notifType = NotificationCompleted
	case StatusFailed:
		notifType = NotificationFailed
	case StatusPaused:
		notifType = NotificationPaused
	}

	n := &Notification{
		ID:      "notif-" + uuid.NewString(),
		TaskID:  t.ID,
		Type:    notifType,
		Title:   fmt.Sprintf("Task %s", t.Status),
		Message: message,
		SentAt:  m.now(),
	}

	m.mu.Lock()
	m.notifs[t.ID] = append(m.notifs[t.ID], n)
	snapshot := cloneNotification(n)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.AppendNotification(context.Background(), snapshot); err != nil {
			log.Error("Failed to persist notification for task %s: %v", t.ID, err)
		}
	}

	if m.sink != nil {
		m.sink.OnTaskEvent(Event{
			TaskID:   t.ID,
			Stage:    string(t.Status),
			Status:   t.Status,
			Progress: t.ProgressPercentage,
			Result:   result,
			Message:  message,
		})
	}
}

func (m *Manager) hydrateFromStore(ctx context.Context) {
	if m.store == nil {
		return
	}
	loaded, err := m.store.LoadTasks(ctx)
	if err != nil {
		log.Error("Failed to load tasks from store: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, raw := range loaded {
		if raw == nil || raw.ID == "" {
			continue
		}
		t := cloneTask(raw)
		m.tasks[t.ID] = t
		if !t.Status.Terminal() {
			m.byVideo[t.VideoID] = t.ID
		}

		segMap := make(map[int]*SegmentTask)
		segs, err := m.store.LoadSegments(ctx, t.ID)
		if err != nil {
			log.Error("Failed to load segments for task %s: %v", t.ID, err)
		} else {
			for _, s := range segs {
				segMap[s.SegmentIndex] = cloneSegment(s)
			}
		}
		m.segments[t.ID] = segMap

		notifs, err := m.store.LoadNotifications(ctx, t.ID)
		if err != nil {
			log.Error("Failed to load notifications for task %s: %v", t.ID, err)
		} else {
			for _, n := range notifs {
				m.notifs[t.ID] = append(m.notifs[t.ID], cloneNotification(n))
			}
		}
	}
}

func (m *Manager) persistTask(t *TranslationTask) {
	if m.store == nil || t == nil {
		return
	}
	if err := m.store.UpsertTask(context.Background(), t); err != nil {
		log.Error("Failed to persist task %s: %v", t.ID, err)
	}
}

func (m *Manager) persistSegment(s *SegmentTask) {
	if m.store == nil || s == nil {
		return
	}
	if err := m.store.UpsertSegment(context.Background(), s); err != nil {
		log.Error("Failed to persist segment %d of task %s: %v", s.SegmentIndex, s.TaskID, err)
	}
}

func progressPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
