// websocket/types.go
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LilVoxy/ministry_analytics/ETL/utils"
)

// Message is what the hub pushes to dashboards
type Message struct {
	Type        string    `json:"type"` // "hello", "ingest_finished", "pong"
	RunID       string    `json:"run_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Source      string    `json:"source,omitempty"`
	FactsLoaded int       `json:"facts_loaded,omitempty"`
	Time        time.Time `json:"time"`
}

// Client is one connected dashboard
type Client struct {
	ID     string
	Socket *websocket.Conn
	Send   chan []byte

	// set under Manager.mu once Send is closed
	closed bool
}

// Manager fans ingest events out to every connected dashboard
type Manager struct {
	Clients    map[string]*Client
	Broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client

	mu     sync.RWMutex
	done   chan struct{}
	logger *utils.ETLLogger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the dashboard is served from the same origin; other tools may read events too
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
