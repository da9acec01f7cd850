package websocket

import (
	"context"
	"encoding/json"
	"time"

	"taskmanager/internal/models"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskDeleted = "task.deleted"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

// Event is the message pushed to a user's open sockets.
type Event struct {
	Type   string       `json:"type"`
	TaskID uuid.UUID    `json:"taskId"`
	Task   *models.Task `json:"task,omitempty"`
}

// Conn is the part of a websocket connection WritePump uses.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one open socket belonging to a user. The hub only queues
// messages on it; the socket stays with the handler that accepted it.
type Client struct {
	UserID uuid.UUID
	send   chan []byte
}

// NewClient returns a client for userID with an empty queue.
func NewClient(userID uuid.UUID) *Client {
	return &Client{UserID: userID, send: make(chan []byte, sendBuffer)}
}

// WritePump writes queued events to conn until the hub closes the queue or a
// write fails. It always closes conn before returning, so the caller's read
// loop ends too. Run it while the handler that owns conn is still active.
func (c *Client) WritePump(conn Conn) error {
	defer conn.Close()
	for data := range c.send {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	return nil
}

type message struct {
	userID uuid.UUID
	data   []byte
}

// Hub fans task events out to the sockets of the task's owner. Its client
// map is owned by the Run goroutine, and Run never blocks on a socket.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]struct{}
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub returns a hub with no clients. Start it with Run.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		broadcast:  make(chan message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and events until ctx is cancelled, then closes
// every client's queue.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = map[uuid.UUID]map[*Client]struct{}{}
			return
		case client := <-h.register:
			set, ok := h.clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.UserID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			for client := range h.clients[msg.userID] {
				select {
				case client.send <- msg.data:
				default:
					// the peer is not keeping up
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.send)
}

// Register adds client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues ev for the sockets of userID. It never blocks a request:
// when the queue is full or the hub has stopped the event is dropped.
func (h *Hub) Publish(userID uuid.UUID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- message{userID: userID, data: data}:
	case <-h.done:
	default:
	}
}
