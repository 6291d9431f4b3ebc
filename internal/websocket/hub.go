package websocket

import (
	"fmt"
	"sync"
)

// Hub tracks every live socket on this node, keyed by socket id. Register
// and unregister flow through channels consumed by Run; Send is called from
// the dispatcher's goroutine and reads under the lock.
type Hub struct {
	mu      sync.RWMutex
	sockets map[string]*WSClient

	Register   chan *WSClient
	Unregister chan *WSClient
}

func NewHub() *Hub {
	return &Hub{
		sockets:    make(map[string]*WSClient),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.sockets[client.SocketID] = client
			h.mu.Unlock()
			incConnections()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.sockets[client.SocketID]; ok {
				delete(h.sockets, client.SocketID)
				close(client.Message)
				decConnections()
			}
			h.mu.Unlock()
		}
	}
}

// Send enqueues a marshalled notification for one socket. A missing socket
// or a full send buffer is an error the dispatcher logs and moves past.
func (h *Hub) Send(socketID string, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.sockets[socketID]
	if !ok {
		return fmt.Errorf("socket %s not connected", socketID)
	}

	select {
	case client.Message <- data:
		addDelivered(1)
		return nil
	default:
		return fmt.Errorf("socket %s send buffer full", socketID)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sockets)
}
