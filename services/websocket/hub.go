package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	fiberws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Hub maintains the set of active clients and pushes messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub    *Hub
	send   chan []byte
	userID uint
	once   sync.Once
}

// Message is the frame pushed to clients
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run starts the hub loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			logrus.WithField("user_id", client.userID).Debug("websocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			h.mutex.Unlock()
			logrus.WithField("user_id", client.userID).Debug("websocket client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.drop(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Stop ends Run and closes every client
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// drop must be called with the write lock held
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.once.Do(func() { close(client.send) })
}

// BroadcastToUser sends a message to every connection of one user
func (h *Hub) BroadcastToUser(userID uint, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("marshal websocket message")
		return
	}

	h.mutex.Lock()
	sent, dropped := 0, 0
	for client := range h.clients {
		if client.userID != userID {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			dropped++
			h.drop(client)
		}
	}
	h.mutex.Unlock()

	logrus.WithFields(logrus.Fields{"user_id": userID, "sent": sent, "dropped": dropped}).Debug("websocket push")
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("marshal websocket message")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logrus.Warn("websocket broadcast channel is full")
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) newClient(userID uint) *Client {
	c := &Client{hub: h, send: make(chan []byte, sendBuffer), userID: userID}
	h.register <- c
	return c
}

// ServeWS upgrades a net/http request and attaches it to the hub
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	client := h.newClient(userID)
	go client.writePump(conn)
	go client.readPump(conn)
}

// ServeFiberWS attaches a Fiber websocket connection. It blocks until the
// peer goes away, as Fiber closes the connection when the handler returns.
func (h *Hub) ServeFiberWS(c *fiberws.Conn, userID uint) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{"user_id": userID, "panic": r}).Error("ServeFiberWS panic")
		}
	}()
	client := h.newClient(userID)
	go client.writePump(c.Conn)
	client.readPump(c.Conn)
}

// conn is the subset of *websocket.Conn the pumps use; fasthttp/websocket
// (behind Fiber) and gorilla expose the same methods.
type conn interface {
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

func (c *Client) writePump(ws conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithError(err).WithField("user_id", c.userID).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; clients never send data.
func (c *Client) readPump(ws conn) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("user_id", c.userID).Debug("websocket closed unexpectedly")
			}
			return
		}
	}
}
