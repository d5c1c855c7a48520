// Package task owns the lifecycle of translation jobs: status
// transitions, per-segment bookkeeping, notifications, and
// heartbeat-based zombie detection.
package task

import (
	"errors"
	"time"

	"github.com/MimeLyc/segmented-transcript-translator/internal/segmenter"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

type Status string

const (
	StatusQueued      Status = "queued"
	StatusSegmenting  Status = "segmenting"
	StatusTranslating Status = "translating"
	StatusStitching   Status = "stitching"
	StatusOptimizing  Status = "optimizing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusPaused      Status = "paused"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transitions are possible except
// restart and delete.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Active reports whether a worker is expected to be refreshing the
// task's heartbeat.
func (s Status) Active() bool {
	return !s.Terminal() && s != StatusPaused
}

type SegmentStatus string

const (
	SegmentPending     SegmentStatus = "pending"
	SegmentTranslating SegmentStatus = "translating"
	SegmentRetrying    SegmentStatus = "retrying"
	SegmentCompleted   SegmentStatus = "completed"
	SegmentFailed      SegmentStatus = "failed"
)

type NotificationType string

const (
	NotificationProgress  NotificationType = "progress"
	NotificationCompleted NotificationType = "completed"
	NotificationFailed    NotificationType = "failed"
	NotificationPaused    NotificationType = "paused"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("operation not applicable in current status")
	ErrNotTerminal       = errors.New("task is not in a terminal status")
)

// Liveness constants. The staleness threshold spans several missed
// heartbeats so a single slow refresh never kills a healthy task.
const (
	HeartbeatInterval  = 15 * time.Second
	StalenessThreshold = 2 * time.Minute
	SweepInterval      = 30 * time.Second
)

// TranslationTask is one resumable translation job over a transcript.
type TranslationTask struct {
	ID             string               `json:"id"`
	VideoID        string               `json:"video_id"`
	VideoTitle     string               `json:"video_title,omitempty"`
	SourceLanguage string               `json:"source_language,omitempty"`
	TargetLanguage string               `json:"target_language"`
	Model          string               `json:"model"`
	Preference     segmenter.Preference `json:"preference"`

	Status             Status `json:"status"`
	TotalSegments      int    `json:"total_segments"`
	CompletedSegments  int    `json:"completed_segments"`
	CurrentSegment     int    `json:"current_segment"`
	ProgressPercentage int    `json:"progress_percentage"`

	LastHeartbeat time.Time `json:"last_heartbeat"`
	StartedAt     time.Time `json:"started_at"`
	PausedAt      time.Time `json:"paused_at,omitzero"`
	CompletedAt   time.Time `json:"completed_at,omitzero"`
	ErrorMessage  string    `json:"error_message,omitempty"`

	// Source is the submitted transcript; Result the translated one.
	// Neither is serialized on list endpoints.
	Source []transcript.Entry `json:"-"`
	Result []transcript.Entry `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SegmentTask is the per-segment child record of one TranslationTask.
type SegmentTask struct {
	TaskID           string             `json:"task_id"`
	SegmentIndex     int                `json:"segment_index"`
	Status           SegmentStatus      `json:"status"`
	SubtitleCount    int                `json:"subtitle_count"`
	CharacterCount   int                `json:"character_count"`
	EstimatedTokens  int                `json:"estimated_tokens"`
	RetryCount       int                `json:"retry_count"`
	PartialResult    []transcript.Entry `json:"partial_result,omitempty"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Notification is an append-only log entry; only IsRead ever changes.
type Notification struct {
	ID      string           `json:"id"`
	TaskID  string           `json:"task_id"`
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	IsRead  bool             `json:"is_read"`
	SentAt  time.Time        `json:"sent_at"`
}

func cloneTask(t *TranslationTask) *TranslationTask {
	if t == nil {
		return nil
	}
	tmp := *t
	tmp.Source = transcript.Clone(t.Source)
	tmp.Result = transcript.Clone(t.Result)
	return &tmp
}

func cloneSegment(s *SegmentTask) *SegmentTask {
	if s == nil {
		return nil
	}
	tmp := *s
	tmp.PartialResult = transcript.Clone(s.PartialResult)
	return &tmp
}

func cloneNotification(n *Notification) *Notification {
	if n == nil {
		return nil
	}
	tmp := *n
	return &tmp
}
