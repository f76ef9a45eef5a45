package events

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/finman-app/finman-server/cmd/models"
)

const (
	TransactionCreated = "transaction.created"
	TransactionUpdated = "transaction.updated"
	TransactionDeleted = "transaction.deleted"
)

// Event is the wire format pushed to a user's open sockets whenever one of
// their transactions changes. Deleted events carry only the record ID.
type Event struct {
	Type        string              `json:"type"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	ID          uint                `json:"id,omitempty"`
}

// Hub tracks open websocket connections per user. Delivery is best-effort:
// clients that fall behind are dropped rather than blocking a publish.
type Hub struct {
	mu      sync.Mutex
	clients map[uint][]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint][]*Client),
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.UserID] = append(h.clients[client.UserID], client)
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

// removeLocked drops the client from its user's list. Caller holds h.mu.
func (h *Hub) removeLocked(client *Client) {
	connections := h.clients[client.UserID]
	for i, conn := range connections {
		if conn == client {
			h.clients[client.UserID] = append(connections[:i], connections[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
	}
}

// Publish fans an event out to every open socket of the given user. Only that
// user's connections see the event; other users' feeds are untouched.
func (h *Hub) Publish(userID uint, event Event) {
	jsonMsg, err := json.Marshal(event)
	if err != nil {
		log.Printf("error marshaling event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var dropped []*Client
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- jsonMsg:
		default:
			// Slow consumer: drop the connection instead of blocking.
			dropped = append(dropped, client)
		}
	}
	for _, client := range dropped {
		h.removeLocked(client)
	}
}
