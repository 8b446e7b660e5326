// websocket/write_pump.go
package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// writePump sends queued messages and periodic pings to the client
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one frame per message so every frame is a complete JSON document
			if err := c.Socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			n := len(c.Send)
			for i := 0; i < n; i++ {
				queued, ok := <-c.Send
				if !ok {
					c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.Socket.WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}
		case <-ticker.C:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
