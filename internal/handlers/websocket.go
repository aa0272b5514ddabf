package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stakeduel-backend/internal/models"
	"stakeduel-backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type    string      `json:"type"`
	UserID  string      `json:"user_id,omitempty"`
	MatchID string      `json:"match_id,omitempty"`
	Data    interface{} `json:"data"`
}

type Client struct {
	UserID string
	Conn   *websocket.Conn
	send   chan *Message

	closed    chan struct{}
	closeOnce sync.Once
}

func newClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan *Message, clientSendSize),
		closed: make(chan struct{}),
	}
}

// close stops the write pump. send stays open, so queue may still be
// called afterwards.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// WebSocketHub pushes match events to connected players. A user may hold
// several connections.
type WebSocketHub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	closeOnce  sync.Once
}

var _ services.Broadcaster = (*WebSocketHub)(nil)

func NewWebSocketHub() *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		done:       make(chan struct{}),
	}

	go hub.run()
	return hub
}

// Close stops the hub and disconnects every client. It is safe to call
// more than once.
func (hub *WebSocketHub) Close() {
	hub.closeOnce.Do(func() { close(hub.done) })
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			if hub.clients[client.UserID] == nil {
				hub.clients[client.UserID] = make(map[*Client]struct{})
			}
			hub.clients[client.UserID][client] = struct{}{}
			log.Printf("[WS] client registered: %s", client.UserID)

		case client := <-hub.unregister:
			if conns, ok := hub.clients[client.UserID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					client.close()
					if len(conns) == 0 {
						delete(hub.clients, client.UserID)
					}
					log.Printf("[WS] client unregistered: %s", client.UserID)
				}
			}

		case message := <-hub.broadcast:
			hub.deliver(message)

		case <-hub.done:
			for _, conns := range hub.clients {
				for client := range conns {
					client.close()
					client.Conn.Close()
				}
			}
			hub.clients = make(map[string]map[*Client]struct{})
			log.Printf("[WS] hub stopped")
			return
		}
	}
}

// deliver runs on the hub goroutine. Slow clients drop messages.
func (hub *WebSocketHub) deliver(message *Message) {
	send := func(client *Client) {
		select {
		case client.send <- message:
		default:
			log.Printf("[WS] dropping %s for slow client %s", message.Type, client.UserID)
		}
	}

	if message.UserID != "" {
		for client := range hub.clients[message.UserID] {
			send(client)
		}
		return
	}
	for _, conns := range hub.clients {
		for client := range conns {
			send(client)
		}
	}
}

// BroadcastMatchEvent sends the event to both players. Waiting matches are
// also announced to everyone so they can be joined.
func (hub *WebSocketHub) BroadcastMatchEvent(event models.MatchEvent) {
	var targets []string
	if event.Type == models.EventMatchCreated || event.Type == models.EventMatchCancelled {
		targets = []string{""}
	} else {
		targets = event.Recipients()
	}

	for _, userID := range targets {
		msg := &Message{
			Type:    string(event.Type),
			UserID:  userID,
			MatchID: event.MatchID,
			Data:    event,
		}
		select {
		case hub.broadcast <- msg:
		default:
			log.Printf("[WS] broadcast queue full, dropping %s for %s", event.Type, event.MatchID)
		}
	}
}

type WebSocketHandler struct {
	hub    *WebSocketHub
	ledger *services.Ledger
}

func NewWebSocketHandler(hub *WebSocketHub, ledger *services.Ledger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, ledger: ledger}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] failed to upgrade: %v", err)
		return
	}

	client := newClient(userID, conn)

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}
	go client.writePump()

	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		conn.Close()
	}()

	h.sendBalance(client)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error: %v", err)
			}
			break
		}

		switch msg.Type {
		case "PING":
			client.queue(&Message{Type: "PONG", Data: gin.H{"timestamp": time.Now().Unix()}})
		case "BALANCE":
			h.sendBalance(client)
		}
	}
}

func (h *WebSocketHandler) sendBalance(client *Client) {
	balance, err := h.ledger.BalanceOf(client.UserID)
	if err != nil {
		log.Printf("[WS] failed to read balance for %s: %v", client.UserID, err)
		return
	}
	client.queue(&Message{
		Type:   "BALANCE_UPDATE",
		UserID: client.UserID,
		Data:   models.BalanceResponse{UserID: client.UserID, Balance: balance},
	})
}

func (c *Client) queue(msg *Message) {
	select {
	case <-c.closed:
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	for {
		select {
		case msg := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(msg); err != nil {
				log.Printf("[WS] write to %s failed: %v", c.UserID, err)
				return
			}
		case <-c.closed:
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
