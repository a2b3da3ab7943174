package websocket

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type subscriptionRequest struct {
	client    *Client
	channel   string
	subscribe bool
}

// Hub tracks live connections per user and the container channels each
// connection follows. A user may hold several connections; access is always
// decided per user, so pruning works on every connection of that user.
type Hub struct {
	mu sync.RWMutex

	clients  map[string]*Client
	users    map[uuid.UUID]map[*Client]struct{}
	channels map[string]map[*Client]struct{}

	register     chan *Client
	unregister   chan *Client
	subscription chan subscriptionRequest
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		users:        make(map[uuid.UUID]map[*Client]struct{}),
		channels:     make(map[string]map[*Client]struct{}),
		register:     make(chan *Client, 256),
		unregister:   make(chan *Client, 256),
		subscription: make(chan subscriptionRequest, 512),
	}
}

// Run serializes registration and subscription changes until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.subscription:
			if req.subscribe {
				h.join(req.client, req.channel)
			} else {
				h.mu.Lock()
				h.leave(req.client, req.channel)
				h.mu.Unlock()
			}
		}
	}
}

func (h *Hub) Register(client *Client)   { h.register <- client }
func (h *Hub) Unregister(client *Client) { h.unregister <- client }

func (h *Hub) Subscribe(client *Client, channel string) {
	h.subscription <- subscriptionRequest{client: client, channel: channel, subscribe: true}
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.subscription <- subscriptionRequest{client: client, channel: channel}
}

// Broadcast sends payload to every connection on channel.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.BroadcastExcept(channel, payload, nil)
}

// BroadcastExcept sends payload to every connection on channel whose user
// is not in skip.
func (h *Hub) BroadcastExcept(channel string, payload []byte, skip map[uuid.UUID]struct{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		if _, denied := skip[c.UserID]; denied {
			continue
		}
		c.SendMessage(payload)
	}
}

// Audience returns the distinct users with at least one connection on channel.
func (h *Hub) Audience(channel string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{}, len(h.channels[channel]))
	users := make([]uuid.UUID, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		users = append(users, c.UserID)
	}
	return users
}

// DropUser removes every connection of userID from channel and tells each
// one it was unsubscribed. It returns how many connections were dropped.
func (h *Hub) DropUser(channel string, userID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for c := range h.users[userID] {
		if _, ok := h.channels[channel][c]; !ok {
			continue
		}
		h.leave(c, channel)
		c.sendJSON(ServerMessage{Type: "unsubscribed", Channel: channel})
		dropped++
	}
	return dropped
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetChannelSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// UserConnectionCount is the number of live connections held by userID.
func (h *Hub) UserConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	if h.users[client.UserID] == nil {
		h.users[client.UserID] = make(map[*Client]struct{})
	}
	h.users[client.UserID][client] = struct{}{}
}

// removeClient drops every subscription of client and closes its Send channel.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, channel := range client.GetChannels() {
		h.leave(client, channel)
	}
	delete(h.clients, client.ID)
	if conns := h.users[client.UserID]; conns != nil {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.users, client.UserID)
		}
	}
	close(client.Send)
}

func (h *Hub) join(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.markSubscribed(channel)
}

// leave expects h.mu to be held.
func (h *Hub) leave(client *Client, channel string) {
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	client.markUnsubscribed(channel)
}
