package websocket

import (
	"context"
	"sync"

	"school-portal-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Hub tracks the live clients of this instance, per user (multi-device).
type Hub struct {
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}

	mu     sync.RWMutex
	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		logger:     log,
	}
}

// Run serves registrations until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.clients {
				for _, c := range clients {
					c.Close()
				}
			}
			h.clients = make(map[uuid.UUID][]*Client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Hub stopped, all clients disconnected", nil)
			return

		case client := <-h.register:
			userID := client.Principal.UserId
			h.mu.Lock()
			h.clients[userID] = append(h.clients[userID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": userID})

		case client := <-h.unregister:
			userID := client.Principal.UserId
			h.mu.Lock()
			clients := h.clients[userID]
			for i, c := range clients {
				if c == client {
					h.clients[userID] = append(clients[:i], clients[i+1:]...)
					break
				}
			}
			if len(h.clients[userID]) == 0 {
				delete(h.clients, userID)
				h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": userID})
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// Online reports how many connections the user has open on this instance.
func (h *Hub) Online(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}
