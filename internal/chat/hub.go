// Package chat fans broadcast frames out to the connections joined to a team chat.
package chat

import "sync"

const defaultBuffer = 32

// Client is one connection's outbound queue. A client that falls behind by
// more than its buffer is dropped and its Done channel closed.
type Client struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Client{
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) Messages() <-chan []byte {
	return c.send
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub keeps rooms keyed by team chat id.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join adds c to the room. After CloseAll it closes c instead.
func (h *Hub) Join(chatID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.close()
		return
	}

	room, ok := h.rooms[chatID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[chatID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) Leave(chatID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.remove(chatID, c)
}

func (h *Hub) remove(chatID string, c *Client) {
	room := h.rooms[chatID]
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, chatID)
	}
	c.close()
}

// Broadcast queues frame for every client in the room and reports how many
// accepted it.
func (h *Hub) Broadcast(chatID string, frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.rooms[chatID] {
		select {
		case c.send <- frame:
			delivered++
		default:
			h.remove(chatID, c)
		}
	}
	return delivered
}

func (h *Hub) Size(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[chatID])
}

// CloseAll drops every client of every room and refuses later joins.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for chatID, room := range h.rooms {
		for c := range room {
			h.remove(chatID, c)
		}
	}
}
