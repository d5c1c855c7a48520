package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MimeLyc/segmented-transcript-translator/internal/segmenter"
	"github.com/MimeLyc/segmented-transcript-translator/internal/task"
	"github.com/MimeLyc/segmented-transcript-translator/internal/transcript"
)

type createTaskRequest struct {
	VideoID        string             `json:"video_id"`
	VideoTitle     string             `json:"video_title"`
	SourceLanguage string             `json:"source_language"`
	TargetLanguage string             `json:"target_language"`
	Model          string             `json:"model"`
	Preference     string             `json:"preference"`
	Entries        []transcript.Entry `json:"entries"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.manager.List())
	case http.MethodPost:
		var req createTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.VideoID == "" {
			writeError(w, http.StatusBadRequest, "video_id is required")
			return
		}
		if req.TargetLanguage == "" {
			req.TargetLanguage = s.defaultTargetLanguage
		}
		if req.TargetLanguage == "" {
			writeError(w, http.StatusBadRequest, "target_language is required")
			return
		}
		if len(req.Entries) == 0 {
			writeError(w, http.StatusBadRequest, "entries are required")
			return
		}
		pref := segmenter.Preference(req.Preference)
		if pref != segmenter.PreferenceSpeed {
			pref = segmenter.PreferenceQuality
		}

		created, isNew := s.engine.Submit(task.CreateRequest{
			VideoID:        req.VideoID,
			VideoTitle:     req.VideoTitle,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
			Model:          req.Model,
			Preference:     pref,
			Entries:        req.Entries,
		})
		code := http.StatusCreated
		if !isNew {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": isNew,
			"task":    created,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleTaskByID covers /api/tasks/{id} and its action sub-paths:
// pause, resume, cancel, restart, segments, result, notifications.
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	id, action, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing task id")
		return
	}

	switch action {
	case "":
		s.handleTask(w, r, id)
	case "segments":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, s.manager.Segments(id))
	case "result":
		s.handleTaskResult(w, r, id)
	case "notifications":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, s.manager.Notifications(id))
	case "pause", "resume", "cancel", "restart":
		s.handleTaskAction(w, r, id, action)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		t, ok := s.manager.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodDelete:
		if err := s.manager.Delete(id); err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	t, ok := s.manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if t.Status != task.StatusCompleted {
		writeError(w, http.StatusConflict, "task has no result yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": t.ID,
		"entries": t.Result,
	})
}

func (s *Server) handleTaskAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var err error
	switch action {
	case "pause":
		err = s.manager.Pause(id)
	case "resume":
		err = s.engine.Resume(id)
	case "cancel":
		err = s.manager.Cancel(id)
	case "restart":
		err = s.engine.Restart(id)
	}
	if err != nil {
		writeTaskError(w, err)
		return
	}
	t, _ := s.manager.Get(id)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleNotificationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	id, action, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	if id == "" || action != "read" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.manager.MarkNotificationRead(id); err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// writeTaskError maps the registry's sentinel errors to HTTP codes.
func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, task.ErrInvalidTransition), errors.Is(err, task.ErrNotTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
