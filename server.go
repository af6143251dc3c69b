package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

type Server struct {
	config   *Config
	store    *Store
	registry *Registry
	upgrader websocket.Upgrader
}

func newServer(config *Config, store *Store, registry *Registry) *Server {
	return &Server{
		config:   config,
		store:    store,
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/stats/stream", s.handleStream)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return mux
}

// handleStats returns the current snapshot as-is, however stale any field
// may be. It never touches the provider.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.store.Get()); err != nil {
		log.Printf("stats encode: %v", err)
	}
}

// handleStream opens a server-sent-events stream: the current snapshot
// immediately, then one event per heartbeat broadcast. Rejected with 429
// once the registry is full.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !checkAuth(r, s.config.Token()) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Headers must be in place before the initial event is written; the
	// first Send commits them with the 200.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := newSSESubscriber(w, flusher)
	if err := s.registry.Subscribe(sub, s.store.Get()); err != nil {
		if errors.Is(err, errCapacity) {
			http.Error(w, "too many subscribers", http.StatusTooManyRequests)
			return
		}
		log.Printf("stream subscribe: %v", err)
		return
	}
	defer s.registry.Unsubscribe(sub)

	// Block until the client goes away or the registry drops us.
	select {
	case <-r.Context().Done():
		sub.Close()
	case <-sub.Done():
	}
}

// handleWebSocket serves the same full-snapshot-per-event stream over a
// websocket, sharing the SSE endpoint's registry and cap. The read loop
// exists only to notice the close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !checkAuth(r, s.config.Token()) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Best-effort pre-upgrade check so a full registry answers with a
	// plain 429 instead of a post-handshake close. Subscribe below is the
	// authoritative gate.
	if s.registry.Len() >= s.registry.Limit() {
		http.Error(w, "too many subscribers", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub := newWSSubscriber(conn)
	if err := s.registry.Subscribe(sub, s.store.Get()); err != nil {
		// Lost the admission race since the pre-upgrade check.
		return
	}
	defer s.registry.Unsubscribe(sub)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
