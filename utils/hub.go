package utils

import (
	"sync"
)

// NotificationHub fans freshly created notifications out to connected
// websocket clients, keyed by user id. Pushes never block: a client that
// cannot keep up has the message dropped.
type NotificationHub struct {
	mu      sync.RWMutex
	clients map[uint]map[chan interface{}]struct{}
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		clients: make(map[uint]map[chan interface{}]struct{}),
	}
}

// Subscribe registers a client for the user and returns its delivery
// channel. The channel is never closed; callers stop reading when their
// connection dies and then Unsubscribe.
func (h *NotificationHub) Subscribe(userID uint) chan interface{} {
	ch := make(chan interface{}, 16)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[chan interface{}]struct{})
	}
	h.clients[userID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client channel previously returned by Subscribe.
func (h *NotificationHub) Unsubscribe(userID uint, ch chan interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Push delivers payload to every connected client of the user.
func (h *NotificationHub) Push(userID uint, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients[userID] {
		select {
		case ch <- payload:
		default:
			// slow consumer, drop
		}
	}
}
