package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"tbot/internal/chat"
	"tbot/pkg/activity"
	"tbot/pkg/workflow"
)

// UserHeader carries the acting user's ID on every /api request.
const UserHeader = "X-User-ID"

// Server is the HTTP API server.
type Server struct {
	svc     *workflow.Service
	bus     *activity.Bus
	hub     *chat.Hub
	mux     *http.ServeMux
	started time.Time
}

// New creates a new Server. bus and hub may be nil; the stream and websocket
// routes then answer 503.
func New(svc *workflow.Service, bus *activity.Bus, hub *chat.Hub) *Server {
	s := &Server{
		svc:     svc,
		bus:     bus,
		hub:     hub,
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Roster
	s.mux.HandleFunc("GET /api/users", s.handleUserList)
	s.mux.HandleFunc("GET /api/greeting", s.handleGreeting)
	s.mux.HandleFunc("GET /api/projects", s.handleProjects)

	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/overview", s.handleOverview)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)
	s.mux.HandleFunc("GET /api/tasks/{id}/activity", s.handleTaskActivity)
	s.mux.HandleFunc("POST /api/tasks/{id}/take", s.action(s.svc.Take))
	s.mux.HandleFunc("POST /api/tasks/{id}/pause", s.action(s.svc.Pause))
	s.mux.HandleFunc("POST /api/tasks/{id}/done", s.action(s.svc.MarkDone))
	s.mux.HandleFunc("POST /api/tasks/{id}/complete", s.action(s.svc.ForceComplete))
	s.mux.HandleFunc("POST /api/tasks/{id}/reopen", s.action(s.svc.Reopen))
	s.mux.HandleFunc("POST /api/tasks/{id}/confirm/{participant}", s.review(s.svc.Confirm))
	s.mux.HandleFunc("POST /api/tasks/{id}/reject/{participant}", s.review(s.svc.Reject))
	s.mux.HandleFunc("POST /api/tasks/{id}/postpone", s.handleTaskPostpone)
	s.mux.HandleFunc("POST /api/tasks/{id}/remind", s.handleTaskRemind)

	// Live updates
	s.mux.HandleFunc("GET /api/activity/stream", s.handleActivityStream)
	s.mux.HandleFunc("GET /ws", s.handleWebsocket)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"tasks":  s.svc.Count(),
		"users":  len(s.svc.Users().List()),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if s.bus != nil {
		status["stream_subscribers"] = s.bus.Subscribers()
		status["stream_dropped"] = s.bus.Dropped()
	}
	writeJSON(w, 200, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a rejection to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	status := 500
	switch workflow.CodeOf(err) {
	case workflow.CodeNotFound:
		status = 404
	case workflow.CodePermissionDenied:
		status = 403
	case workflow.CodeInvalidTransition:
		status = 409
	case workflow.CodeValidation:
		status = 400
	default:
		log.Printf("api: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": string(workflow.CodeOf(err))})
}

// actor reads the acting user from the header, or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	v := r.Header.Get(UserHeader)
	if v == "" {
		v = r.URL.Query().Get("user")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, 401, UserHeader+" header required")
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(key), 10, 64)
	if err != nil {
		writeError(w, 400, "invalid "+key+": "+r.PathValue(key))
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
