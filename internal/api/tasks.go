package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/taskdeck/taskdeck/internal/task"
)

// taskBody is the create/update request body. DueDate is a string so
// timezone-naive values can be accepted and normalized to UTC instead
// of failing strict RFC 3339 decoding.
type taskBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	DueDate     *string `json:"due_date"`
}

// listBody is the list response shape.
type listBody struct {
	Tasks []*task.Task `json:"tasks"`
	Total int          `json:"total"`
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var body taskBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft := task.Draft{Description: body.Description}
	if body.Title != nil {
		draft.Title = *body.Title
	}
	if body.Status != nil {
		draft.Status = task.Status(*body.Status)
	}
	if body.DueDate != nil {
		due, err := task.ParseDueDate(*body.DueDate)
		if err != nil {
			s.errorResponse(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		draft.DueDate = due
	}

	created, err := s.store.Create(draft)
	if err != nil {
		s.taskError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, created, s.logger)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	skip, err := queryInt(q.Get("skip"), 0)
	if err != nil {
		s.errorResponse(w, http.StatusUnprocessableEntity, "skip must be an integer")
		return
	}
	limit, err := queryInt(q.Get("limit"), 100)
	if err != nil {
		s.errorResponse(w, http.StatusUnprocessableEntity, "limit must be an integer")
		return
	}

	status := task.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		s.errorResponse(w, http.StatusUnprocessableEntity, "invalid status filter")
		return
	}

	tasks, total, err := s.store.List(skip, limit, status)
	if err != nil {
		s.taskError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listBody{Tasks: tasks, Total: total}, s.logger)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	t, err := s.store.Get(id)
	if err != nil {
		s.taskError(w, err)
		return
	}
	if t == nil {
		s.errorResponse(w, http.StatusNotFound, "Task not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, t, s.logger)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var body taskBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := task.Patch{Title: body.Title, Description: body.Description}
	if body.Status != nil {
		status := task.Status(*body.Status)
		patch.Status = &status
	}
	if body.DueDate != nil {
		due, err := task.ParseDueDate(*body.DueDate)
		if err != nil {
			s.errorResponse(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		patch.DueDate = due
	}

	t, err := s.store.Update(id, patch)
	if err != nil {
		s.taskError(w, err)
		return
	}
	if t == nil {
		s.errorResponse(w, http.StatusNotFound, "Task not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, t, s.logger)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	deleted, err := s.store.Delete(id)
	if err != nil {
		s.taskError(w, err)
		return
	}
	if !deleted {
		s.errorResponse(w, http.StatusNotFound, "Task not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// taskError maps store errors onto status codes: validation failures
// are the client's to fix (422), everything else is a server fault.
func (s *Server) taskError(w http.ResponseWriter, err error) {
	var verr *task.ValidationError
	if errors.As(err, &verr) {
		s.errorResponse(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	s.logger.Error("task store failure", "error", err)
	s.errorResponse(w, http.StatusInternalServerError, "internal error")
}

// pathID extracts and validates the {id} path segment.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusUnprocessableEntity, "task id must be an integer")
		return 0, false
	}
	return id, true
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
