// websocket/read_pump.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// readPump keeps the connection alive and answers pings until the client goes away
func (c *Client) readPump(manager *Manager) {
	defer func() {
		manager.unregister(c)
		c.Socket.Close()
	}()

	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				manager.logger.Debug("Dashboard %s read error: %v", c.ID, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if pong, err := json.Marshal(Message{Type: "pong", Time: time.Now().UTC()}); err == nil {
				manager.send(c, pong)
			}
		}
	}
}
