package api

import (
	"net/http"
	"time"
)

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	users := s.svc.Users()
	if dir := r.URL.Query().Get("direction"); dir != "" {
		if _, ok := users.NormalizeDirection(dir); !ok {
			writeError(w, 400, "unknown direction: "+dir)
			return
		}
		writeJSON(w, 200, users.ByDirection(dir))
		return
	}
	writeJSON(w, 200, users.Records())
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	id, ok := actor(w, r)
	if !ok {
		return
	}
	msg, known := s.svc.Users().Greet(id, time.Now(), s.svc.Location())
	if !known && !s.svc.IsAdmin(id) {
		writeError(w, 403, msg)
		return
	}
	writeJSON(w, 200, map[string]any{"text": msg, "admin": s.svc.IsAdmin(id)})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.svc.Projects())
}
