package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errCapacity = errors.New("subscriber limit reached")

// subscriber is one open streaming connection. The registry only writes to
// it and removes it; the HTTP layer owns the underlying transport.
type subscriber interface {
	ID() string
	Send(payload []byte) error
	Close()
}

// Registry is the bounded set of live stream subscribers, shared by the
// SSE and websocket endpoints. Admission is a hard cap, not a queue.
type Registry struct {
	mu    sync.Mutex
	limit int
	subs  map[subscriber]bool
}

func newRegistry(limit int) *Registry {
	return &Registry{
		limit: limit,
		subs:  make(map[subscriber]bool),
	}
}

// Subscribe admits the subscriber and immediately sends it the current
// snapshot, so a new subscriber is never left without initial state.
// Returns errCapacity when the registry is full.
func (r *Registry) Subscribe(sub subscriber, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	r.mu.Lock()
	if len(r.subs) >= r.limit {
		r.mu.Unlock()
		return errCapacity
	}
	r.subs[sub] = true
	count := len(r.subs)
	r.mu.Unlock()

	log.Printf("subscriber %s joined (%d/%d)", sub.ID(), count, r.limit)

	if err := sub.Send(payload); err != nil {
		r.Unsubscribe(sub)
		return fmt.Errorf("initial send: %w", err)
	}
	return nil
}

// Unsubscribe is idempotent; removing an absent subscriber is a no-op.
func (r *Registry) Unsubscribe(sub subscriber) {
	r.mu.Lock()
	_, present := r.subs[sub]
	delete(r.subs, sub)
	r.mu.Unlock()
	if present {
		log.Printf("subscriber %s left", sub.ID())
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *Registry) Limit() int { return r.limit }

// Broadcast serializes the snapshot once and pushes it to every subscriber.
// A failed write evicts that subscriber only; delivery to the rest
// continues and the caller never sees an error.
func (r *Registry) Broadcast(snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("broadcast marshal: %v", err)
		return
	}

	// Copy the membership so eviction during the write pass is safe.
	r.mu.Lock()
	subs := make([]subscriber, 0, len(r.subs))
	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Send(payload); err != nil {
			log.Printf("subscriber %s write failed, evicting: %v", sub.ID(), err)
			r.Unsubscribe(sub)
			sub.Close()
		}
	}
}

// CloseAll drops every subscriber, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	subs := make([]subscriber, 0, len(r.subs))
	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.subs = make(map[subscriber]bool)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// sseSubscriber frames each push as one text/event-stream event:
// "data: <json>\n\n".
type sseSubscriber struct {
	id      string
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
	once    sync.Once
}

func newSSESubscriber(w http.ResponseWriter, flusher http.Flusher) *sseSubscriber {
	return &sseSubscriber{
		id:      uuid.NewString(),
		w:       w,
		flusher: flusher,
		done:    make(chan struct{}),
	}
}

func (s *sseSubscriber) ID() string { return s.id }

func (s *sseSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return errors.New("subscriber closed")
	default:
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close releases the handler goroutine blocked in Done. Taking the write
// lock here means no Send is mid-write on a ResponseWriter whose handler
// is about to return.
func (s *sseSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}

func (s *sseSubscriber) Done() <-chan struct{} { return s.done }

// wsSubscriber pushes each snapshot as one websocket text message. Writes
// are serialized with a mutex since broadcast and the initial send may
// race.
type wsSubscriber struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{id: uuid.NewString(), conn: conn}
}

func (s *wsSubscriber) ID() string { return s.id }

func (s *wsSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSubscriber) Close() {
	s.conn.Close()
}
