// Package dispatch delivers content events to live subscribers. The Hub holds
// websocket connections on this node; RedisDispatcher relays events between
// nodes through Redis pub/sub.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"collab-go/internal/collab"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Hub fans events out to websocket subscribers grouped by topic. A subscriber
// that cannot keep up is disconnected rather than allowed to stall the rest.
type Hub struct {
	logger   collab.Logger
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	closed bool
}

var _ collab.Dispatcher = (*Hub)(nil)

// NewHub creates a Hub. allowedOrigins lists the browser origins that may
// open a subscription; "*" allows any. When empty, only same-origin requests
// are accepted.
func NewHub(logger collab.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		logger: logger,
		topics: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		}
	}
	return h
}

// Publish encodes the event and sends it to every subscriber of topic.
func (h *Hub) Publish(_ context.Context, topic string, event *collab.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	h.Deliver(topic, event.Type, data)
	return nil
}

// Deliver broadcasts an encoded event of type typ to topic. Events that may
// revoke access disconnect the topic's subscribers once the event is queued,
// so clients reconnect through the access check.
func (h *Hub) Deliver(topic string, typ collab.EventType, data []byte) int {
	sent := h.Broadcast(topic, data)
	if typ.RevokesAccess() {
		if n := h.Drop(topic); n > 0 {
			h.logger.Info("subscribers dropped", "topic", topic, "event", string(typ), "count", n)
		}
	}
	return sent
}

// Broadcast sends an already-encoded message to every subscriber of topic and
// returns how many accepted it.
func (h *Hub) Broadcast(topic string, data []byte) int {
	h.mu.RLock()
	var slow []*subscriber
	sent := 0
	for s := range h.topics[topic] {
		select {
		case s.send <- data:
			sent++
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.logger.Warn("subscriber too slow, disconnecting", "topic", topic, "remote", s.remote)
		h.unregister(s)
	}
	return sent
}

// ServeWS upgrades the request to a websocket and subscribes it to topic.
// The caller is responsible for checking that the requester may see topic.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrading connection: %w", err)
	}

	s := &subscriber{
		hub:    h,
		topic:  topic,
		remote: r.RemoteAddr,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	if !h.register(s) {
		conn.Close()
		return fmt.Errorf("hub is closed")
	}
	h.logger.Debug("subscriber connected", "topic", topic, "remote", s.remote)

	go s.writePump()
	go s.readPump()
	return nil
}

// Subscribers returns the number of live subscribers of topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Drop disconnects every subscriber of topic after its queued messages are
// written and returns how many were dropped.
func (h *Hub) Drop(topic string) int {
	h.mu.Lock()
	subs := h.topics[topic]
	delete(h.topics, topic)
	h.mu.Unlock()

	for s := range subs {
		s.stop()
	}
	return len(subs)
}

// Close disconnects every subscriber. Later subscriptions are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscriber
	for _, subs := range h.topics {
		for s := range subs {
			all = append(all, s)
		}
	}
	h.topics = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
}

func (h *Hub) register(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	subs, ok := h.topics[s.topic]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.topics[s.topic] = subs
	}
	subs[s] = struct{}{}
	return true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	if subs, ok := h.topics[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, s.topic)
		}
	}
	h.mu.Unlock()
	s.stop()
}

type subscriber struct {
	hub    *Hub
	topic  string
	remote string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.send) })
}

// readPump discards client messages; it exists to process control frames and
// notice when the peer goes away.
func (s *subscriber) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
		s.hub.logger.Debug("subscriber disconnected", "topic", s.topic, "remote", s.remote)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("subscriber read failed", "topic", s.topic, "error", err)
			}
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
