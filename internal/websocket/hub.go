package chatws

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/zain100000/ETutor/internal/services"
)

// Hub fans chat frames out to connected participants. All registry
// mutation happens on the Run goroutine; callers only touch channels.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Frame
}

type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues a payload without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend is the only place the send channel closes. Safe to call
// more than once; a late unregister after a slow-client drop is a
// no-op.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type sender interface {
	SendMessage(
		ctx context.Context,
		actorID int64,
		sessionID int64,
		body string,
	) (*services.ChatDelivery, error)
}

// Frame is the wire shape for every server push: new messages, read
// receipts and errors. Ids travel as strings.
type Frame struct {
	Type        string   `json:"type"`
	SessionID   string   `json:"session_id,omitempty"`
	SenderID    string   `json:"sender_id,omitempty"`
	RecipientID string   `json:"recipient_id,omitempty"`
	MessageID   string   `json:"message_id,omitempty"`
	MessageIDs  []string `json:"message_ids,omitempty"`
	Body        string   `json:"body,omitempty"`
	Status      string   `json:"status,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Frame, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				client.closeSend()
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case frame := <-h.broadcast:
			h.deliver(frame)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues a frame for delivery to its sender and recipient.
func (h *Hub) Broadcast(frame *Frame) {
	h.broadcast <- frame
}

// BroadcastDelivery pushes a freshly appended message to both sides
// of its session.
func (h *Hub) BroadcastDelivery(delivery *services.ChatDelivery) {
	h.Broadcast(&Frame{
		Type:        "message",
		SessionID:   strconv.FormatInt(delivery.Message.SessionID, 10),
		SenderID:    strconv.FormatInt(delivery.Message.SenderID, 10),
		RecipientID: strconv.FormatInt(delivery.RecipientUserID, 10),
		MessageID:   strconv.FormatInt(delivery.Message.ID, 10),
		Body:        delivery.Message.Body,
		Status:      delivery.Message.Status,
		Timestamp:   services.FormatChatTimestamp(delivery.Message.SentAt),
	})
}

// BroadcastReceipt tells the original sender that the recipient's
// view has observed their messages.
func (h *Hub) BroadcastReceipt(receipt *services.ReadReceipt) {
	ids := make([]string, 0, len(receipt.MessageIDs))
	for _, id := range receipt.MessageIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	h.Broadcast(&Frame{
		Type:        "read",
		SessionID:   strconv.FormatInt(receipt.SessionID, 10),
		SenderID:    strconv.FormatInt(receipt.ReaderID, 10),
		RecipientID: strconv.FormatInt(receipt.RecipientUserID, 10),
		MessageIDs:  ids,
		Status:      "read",
		Timestamp:   services.FormatChatTimestamp(time.Now().UTC()),
	})
}

func (h *Hub) deliver(frame *Frame) {
	encoded, err := json.Marshal(frame)
	if err != nil {
		log.Printf("chat hub encode frame: %v", err)
		return
	}

	h.sendToUser(frame.SenderID, encoded)
	if frame.RecipientID != "" && frame.RecipientID != frame.SenderID {
		h.sendToUser(frame.RecipientID, encoded)
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		if !client.trySend(payload) {
			log.Printf("chat hub: dropping slow client %s for user %s", client.id, userID)
			delete(set, client)
			client.closeSend()
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

func (c *Client) ReadPump(service sender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	actorID, err := strconv.ParseInt(c.userID, 10, 64)
	if err != nil {
		writeError(c, "invalid user")
		return
	}

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
			Body      string `json:"body"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeError(c, "invalid message payload")
			continue
		}
		if incoming.Type != "message" {
			writeError(c, "unsupported message type")
			continue
		}

		sessionID, err := strconv.ParseInt(incoming.SessionID, 10, 64)
		if err != nil || sessionID <= 0 {
			writeError(c, "invalid session id")
			continue
		}

		delivery, err := service.SendMessage(
			context.Background(),
			actorID,
			sessionID,
			incoming.Body,
		)
		if err != nil {
			writeError(c, "failed to send message")
			continue
		}

		c.hub.BroadcastDelivery(delivery)
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func writeError(client *Client, message string) {
	payload, err := json.Marshal(Frame{
		Type:      "error",
		Body:      message,
		Timestamp: services.FormatChatTimestamp(time.Now().UTC()),
	})
	if err != nil {
		return
	}
	if !client.trySend(payload) {
		client.hub.Unregister(client)
	}
}
