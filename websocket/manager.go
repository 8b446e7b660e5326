// websocket/manager.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// NewManager creates a hub; call Run to start it
func NewManager(logger *utils.ETLLogger) *Manager {
	return &Manager{
		Broadcast:  make(chan []byte, 16),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Clients:    make(map[string]*Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register, unregister and broadcast requests until ctx is done
func (manager *Manager) Run(ctx context.Context) {
	defer close(manager.done)
	for {
		select {
		case client := <-manager.Register:
			manager.mu.Lock()
			manager.Clients[client.ID] = client
			manager.mu.Unlock()
			manager.logger.Debug("Dashboard %s connected", client.ID)

		case client := <-manager.Unregister:
			manager.mu.Lock()
			if _, ok := manager.Clients[client.ID]; ok {
				manager.drop(client)
				manager.logger.Debug("Dashboard %s disconnected", client.ID)
			}
			manager.mu.Unlock()

		case message := <-manager.Broadcast:
			manager.broadcast(message)

		case <-ctx.Done():
			manager.mu.Lock()
			for _, client := range manager.Clients {
				manager.drop(client)
			}
			manager.mu.Unlock()
			return
		}
	}
}

// drop removes a client and closes its queue. Callers hold manager.mu.
func (manager *Manager) drop(client *Client) {
	delete(manager.Clients, client.ID)
	if !client.closed {
		client.closed = true
		close(client.Send)
	}
}

// broadcast sends to every client, dropping the ones that fell behind
func (manager *Manager) broadcast(message []byte) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	for _, client := range manager.Clients {
		select {
		case client.Send <- message:
		default:
			manager.logger.Debug("Dashboard %s fell behind, dropping it", client.ID)
			manager.drop(client)
		}
	}
}

// send queues a message for one client without blocking.
// It reports false when the client is gone or its queue is full.
func (manager *Manager) send(client *Client, message []byte) bool {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if client.closed {
		return false
	}
	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

// register hands a client to Run; false once the hub has stopped
func (manager *Manager) register(client *Client) bool {
	select {
	case manager.Register <- client:
		return true
	case <-manager.done:
		return false
	}
}

func (manager *Manager) unregister(client *Client) {
	select {
	case manager.Unregister <- client:
	case <-manager.done:
	}
}

// Publish queues a message for every connected dashboard
func (manager *Manager) Publish(msg Message) error {
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode websocket message: %w", err)
	}
	select {
	case manager.Broadcast <- data:
		return nil
	default:
		return fmt.Errorf("websocket broadcast queue is full")
	}
}

// ClientCount returns the number of connected dashboards
func (manager *Manager) ClientCount() int {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return len(manager.Clients)
}
