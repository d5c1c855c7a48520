package task

import (
	"context"
	"time"
)

// Store persists tasks, segment records, and notifications so the
// registry can restart without losing work. Each operation is
// individually atomic; no cross-entity transaction is assumed except
// that DeleteTask removes the task's children with it.
type Store interface {
	LoadTasks(ctx context.Context) ([]*TranslationTask, error)
	UpsertTask(ctx context.Context, task *TranslationTask) error
	// DeleteTask removes the task and all its segment and
	// notification children.
	DeleteTask(ctx context.Context, taskID string) error

	LoadSegments(ctx context.Context, taskID string) ([]*SegmentTask, error)
	UpsertSegment(ctx context.Context, segment *SegmentTask) error

	AppendNotification(ctx context.Context, notification *Notification) error
	LoadNotifications(ctx context.Context, taskID string) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
	// DeleteReadNotificationsBefore prunes read notifications older
	// than the cutoff and returns how many were removed.
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
