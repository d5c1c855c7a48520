// Package persistence implements the task.Store contract on SQLite.
// The registry stays authoritative in memory; this layer only has to
// survive restarts.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/segmented-transcript-translator/internal/segmenter"
	"github.com/MimeLyc/segmented-transcript-translator/internal/task"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) LoadTasks(ctx context.Context) ([]*task.TranslationTask, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, video_id, video_title, source_language, target_language, model, preference,
			status, total_segments, completed_segments, current_segment, progress_percentage,
			last_heartbeat, started_at, paused_at, completed_at, error_message,
			source_json, result_json, created_at, updated_at
		 FROM tasks
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*task.TranslationTask, 0)
	for rows.Next() {
		var item task.TranslationTask
		var status, preference string
		var lastHeartbeat, startedAt, pausedAt, completedAt sql.NullTime
		var sourceJSON, resultJSON string
		if err := rows.Scan(
			&item.ID,
			&item.VideoID,
			&item.VideoTitle,
			&item.SourceLanguage,
			&item.TargetLanguage,
			&item.Model,
			&preference,
			&status,
			&item.TotalSegments,
			&item.CompletedSegments,
			&item.CurrentSegment,
			&item.ProgressPercentage,
			&lastHeartbeat,
			&startedAt,
			&pausedAt,
			&completedAt,
			&item.ErrorMessage,
			&sourceJSON,
			&resultJSON,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = task.Status(status)
		item.Preference = segmenter.Preference(preference)
		item.LastHeartbeat = lastHeartbeat.Time
		item.StartedAt = startedAt.Time
		item.PausedAt = pausedAt.Time
		item.CompletedAt = completedAt.Time
		if item.Source, err = decodeEntries(sourceJSON); err != nil {
			return nil, fmt.Errorf("decode source of task %s: %w", item.ID, err)
		}
		if item.Result, err = decodeEntries(resultJSON); err != nil {
			return nil, fmt.Errorf("decode result of task %s: %w", item.ID, err)
		}
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertTask(ctx context.Context, t *task.TranslationTask) error {
	if t == nil {
		return fmt.Errorf("task is nil")
	}
	sourceJSON, err := encodeEntries(t.Source)
	if err != nil {
		return err
	}
	resultJSON, err := encodeEntries(t.Result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO tasks (
			id, video_id, video_title, source_language, target_language, model, preference,
			status, total_segments, completed_segments, current_segment, progress_percentage,
			last_heartbeat, started_at, paused_at, completed_at, error_message,
			source_json, result_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			video_id=excluded.video_id,
			video_title=excluded.video_title,
			source_language=excluded.source_language,
			target_language=excluded.target_language,
			model=excluded.model,
			preference=excluded.preference,
			status=excluded.status,
			total_segments=excluded.total_segments,
			completed_segments=excluded.completed_segments,
			current_segment=excluded.current_segment,
			progress_percentage=excluded.progress_percentage,
			last_heartbeat=excluded.last_heartbeat,
			started_at=excluded.started_at,
			paused_at=excluded.paused_at,
			completed_at=excluded.completed_at,
			error_message=excluded.error_message,
			source_json=excluded.source_json,
			result_json=excluded.result_json,
			updated_at=excluded.updated_at`,
		t.ID,
		t.VideoID,
		t.VideoTitle,
		t.SourceLanguage,
		t.TargetLanguage,
		t.Model,
		string(t.Preference),
		string(t.Status),
		t.TotalSegments,
		t.CompletedSegments,
		t.CurrentSegment,
		t.ProgressPercentage,
		nullableTime(t.LastHeartbeat),
		nullableTime(t.StartedAt),
		nullableTime(t.PausedAt),
		nullableTime(t.CompletedAt),
		t.ErrorMessage,
		sourceJSON,
		resultJSON,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

// DeleteTask removes the task row together with its segment and
// notification children.
func (s *SQLiteStore) DeleteTask(ctx context.Context, taskID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM segment_tasks WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM task_notifications WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadSegments(ctx context.Context, taskID string) ([]*task.SegmentTask, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT task_id, segment_index, status, subtitle_count, character_count,
			estimated_tokens, retry_count, partial_result_json, processing_time_ms, updated_at
		 FROM segment_tasks
		 WHERE task_id = ?
		 ORDER BY segment_index ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*task.SegmentTask, 0)
	for rows.Next() {
		var item task.SegmentTask
		var status string
		var partialJSON string
		if err := rows.Scan(
			&item.TaskID,
			&item.SegmentIndex,
			&status,
			&item.SubtitleCount,
			&item.CharacterCount,
			&item.EstimatedTokens,
			&item.RetryCount,
			&partialJSON,
			&item.ProcessingTimeMs,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = task.SegmentStatus(status)
		if partialJSON != "" {
			if item.PartialResult, err = decodeEntries(partialJSON); err != nil {
				return nil, fmt.Errorf("decode partial result of segment %d: %w", item.SegmentIndex, err)
			}
		}
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertSegment(ctx context.Context, seg *task.SegmentTask) error {
	if seg == nil {
		return fmt.Errorf("segment is nil")
	}
	partialJSON := ""
	if seg.PartialResult != nil {
		encoded, err := encodeEntries(seg.PartialResult)
		if err != nil {
			return err
		}
		partialJSON = encoded
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO segment_tasks (
			task_id, segment_index, status, subtitle_count, character_count,
			estimated_tokens, retry_count, partial_result_json, processing_time_ms, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id, segment_index) DO UPDATE SET
			status=excluded.status,
			subtitle_count=excluded.subtitle_count,
			character_count=excluded.character_count,
			estimated_tokens=excluded.estimated_tokens,
			retry_count=excluded.retry_count,
			partial_result_json=excluded.partial_result_json,
			processing_time_ms=excluded.processing_time_ms,
			updated_at=excluded.updated_at`,
		seg.TaskID,
		seg.SegmentIndex,
		string(seg.Status),
		seg.SubtitleCount,
		seg.CharacterCount,
		seg.EstimatedTokens,
		seg.RetryCount,
		partialJSON,
		seg.ProcessingTimeMs,
		seg.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) AppendNotification(ctx context.Context, n *task.Notification) error {
	if n == nil {
		return fmt.Errorf("notification is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO task_notifications (id, task_id, type, title, message, is_read, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		n.ID,
		n.TaskID,
		string(n.Type),
		n.Title,
		n.Message,
		boolToInt(n.IsRead),
		n.SentAt,
	)
	return err
}

func (s *SQLiteStore) LoadNotifications(ctx context.Context, taskID string) ([]*task.Notification, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, task_id, type, title, message, is_read, sent_at
		 FROM task_notifications
		 WHERE task_id = ?
		 ORDER BY sent_at ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*task.Notification, 0)
	for rows.Next() {
		var item task.Notification
		var typ string
		var isRead int
		if err := rows.Scan(&item.ID, &item.TaskID, &typ, &item.Title, &item.Message, &isRead, &item.SentAt); err != nil {
			return nil, err
		}
		item.Type = task.NotificationType(typ)
		item.IsRead = isRead == 1
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE task_notifications SET is_read = 1 WHERE id = ?`, notificationID)
	return err
}

// DeleteReadNotificationsBefore prunes read notifications older than the cutoff.
func (s *SQLiteStore) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_notifications WHERE is_read = 1 AND sent_at <= ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func encodeEntries(entries []transcript.Entry) (string, error) {
	if entries == nil {
		entries = []transcript.Entry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func decodeEntries(payload string) ([]transcript.Entry, error) {
	if payload == "" || payload == "[]" {
		return nil, nil
	}
	var entries []transcript.Entry
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
