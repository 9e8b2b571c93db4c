package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// handleActivityStream pushes new activity entries the viewer may read as
// server-sent events. Filtering happens on the bus, so the channel only
// carries what this viewer is allowed to see.
func (s *Server) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	if s.bus == nil {
		writeError(w, 503, "activity stream not available")
		return
	}
	if !s.svc.IsAdmin(uid) && !s.svc.Users().Contains(uid) {
		writeError(w, 403, "user is not on the roster")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	ch := s.bus.Subscribe(s.svc.Audience(uid))
	defer s.bus.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(200)
	flusher.Flush()

	ctx := r.Context()
	every := queryInt(r, "keepalive", 15)
	if every <= 0 {
		every = 15
	}
	keepalive := time.NewTicker(time.Duration(every) * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				log.Printf("SSE encode: %v", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: activity\ndata: %s\n\n", e.ID, data)
			flusher.Flush()
		}
	}
}

// handleWebsocket registers the caller's chat session for notifications.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	if s.hub == nil {
		writeError(w, 503, "websocket sessions not available")
		return
	}
	if !s.svc.IsAdmin(uid) && !s.svc.Users().Contains(uid) {
		writeError(w, 403, "user is not on the roster")
		return
	}
	if err := s.hub.Serve(r.Context(), w, r, uid); err != nil {
		log.Printf("ws: user %d: %v", uid, err)
	}
}
