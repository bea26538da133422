// Package activitystream is the public Server-Sent Events fan-out for
// ActivityEvents (§6 GET /api/stream/activity). The register/unregister/
// broadcast channel architecture is adapted from the teacher's websocket
// Hub (cmd/api/websocket.go), restructured around text/event-stream
// instead of gorilla/websocket framing, since the spec calls for
// unidirectional SSE with monotonic ids rather than a bidirectional
// socket.
package activitystream

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/digitalentity/aientity/internal/domain"
)

// subscriber is one connected SSE client's delivery channel.
type subscriber struct {
	send chan domain.ActivityEvent
}

// Hub fans out ActivityEvents to every connected subscriber.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]bool
	log         zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]bool),
		log:         log.With().Str("component", "activitystream").Logger(),
	}
}

// Publish implements lifecycle.Broadcaster: fan event out to every
// currently-registered subscriber, dropping it for any subscriber whose
// channel is full rather than blocking the publisher.
func (h *Hub) Publish(event domain.ActivityEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- event:
		default:
			h.log.Warn().Msg("subscriber channel full, dropping event for slow consumer")
		}
	}
}

// subscribe registers a new subscriber and returns its delivery channel
// plus an unsubscribe function the caller must invoke on disconnect.
func (h *Hub) subscribe() (*subscriber, func()) {
	sub := &subscriber{send: make(chan domain.ActivityEvent, 64)}

	h.mu.Lock()
	h.subscribers[sub] = true
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
		close(sub.send)
	}
	return sub, unsubscribe
}

// MarshalSSE renders event in the `id:`/`event:`/`data:` SSE wire format.
func MarshalSSE(event domain.ActivityEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	out := []byte{}
	out = append(out, []byte("id: ")...)
	out = append(out, []byte(strconv.FormatInt(event.SeqNum, 10))...)
	out = append(out, '\n')
	out = append(out, []byte("event: activity\n")...)
	out = append(out, []byte("data: ")...)
	out = append(out, data...)
	out = append(out, '\n', '\n')
	return out, nil
}
