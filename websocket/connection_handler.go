// websocket/connection_handler.go
package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HandleConnections upgrades a dashboard connection and registers it with the hub
func (manager *Manager) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.logger.Warn("Websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		Socket: conn,
		Send:   make(chan []byte, 16),
	}
	if !manager.register(client) {
		conn.Close()
		return
	}

	if hello, err := json.Marshal(Message{Type: "hello", Time: time.Now().UTC()}); err == nil {
		manager.send(client, hello)
	}
	manager.logger.Debug("Dashboard %s connected from %s", client.ID, r.RemoteAddr)

	go client.readPump(manager)
	go client.writePump()
}

// HandleStatus reports how many dashboards are listening
func (manager *Manager) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"clients": manager.ClientCount()})
}
