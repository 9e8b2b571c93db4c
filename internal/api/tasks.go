package api

import (
	"context"
	"encoding/json"
	"net/http"

	"tbot/pkg/activity"
	"tbot/pkg/task"
	"tbot/pkg/workflow"
)

type createRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Priority      string  `json:"priority"`
	DueDate       string  `json:"due_date"`
	Project       string  `json:"project"`
	Direction     string  `json:"direction"`
	ResponsibleID int64   `json:"responsible_id"`
	Workgroup     []int64 `json:"workgroup"`
	Private       bool    `json:"private"`
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	views, err := s.svc.List(r.Context(), id, workflow.Scope(q.Get("scope")), task.Status(q.Get("status")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, views)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	sum, err := s.svc.Overview(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, sum)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	d := task.Draft{
		Title:         req.Title,
		Description:   req.Description,
		AuthorID:      id,
		Priority:      task.Priority(req.Priority),
		Project:       req.Project,
		Direction:     req.Direction,
		ResponsibleID: req.ResponsibleID,
		Workgroup:     req.Workgroup,
		Private:       req.Private,
	}
	if req.DueDate != "" {
		due, err := workflow.ParseDueDate(req.DueDate, s.svc.Location())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		d.DueDate = due
	}
	t, err := s.svc.Create(r.Context(), d)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 201, t)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := s.svc.Get(r.Context(), id, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, v)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), id, uid); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(204)
}

func (s *Server) handleTaskActivity(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := s.svc.Activity(r.Context(), id, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, 200, entries)
}

// action adapts a single-actor Service method to a handler.
func (s *Server) action(fn func(ctx context.Context, taskID, actorID int64) (*task.Task, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := actor(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		t, err := fn(r.Context(), id, uid)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, t)
	}
}

// review adapts Confirm and Reject.
func (s *Server) review(fn func(ctx context.Context, taskID, actorID, participantID int64) (*task.Task, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := actor(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		participant, ok := pathID(w, r, "participant")
		if !ok {
			return
		}
		t, err := fn(r.Context(), id, uid, participant)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, 200, t)
	}
}

func (s *Server) handleTaskPostpone(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		DueDate string `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := s.svc.Postpone(r.Context(), id, uid, req.DueDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskRemind(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Targets []int64 `json:"targets"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, "invalid JSON: "+err.Error())
			return
		}
	}
	t, err := s.svc.Remind(r.Context(), id, uid, req.Targets)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, t)
}
