package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"portal-realtime/pkg/service"
)

// Authorizer decides whether the holder of claims may join a channel.
type Authorizer interface {
	Authorize(ctx context.Context, claims *service.JwtCustomClaim, channel string) error
}

// History returns at most limit events of a channel with seq greater than since, oldest first.
type History interface {
	After(ctx context.Context, channel string, since int64, limit int) ([]Frame, error)
}

type membership struct {
	client  *Client
	channel string
	done    chan struct{}
}

// Hub keeps channel subscriber sets and fans events out to them.
type Hub struct {
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}

	register    chan *Client
	unregister  chan *Client
	subscribe   chan membership
	unsubscribe chan membership
	broadcast   chan Frame
	stopped     chan struct{}

	authorizer  Authorizer
	history     History
	replayLimit int
	logger      *zap.Logger

	mu sync.RWMutex
}

func NewHub(authorizer Authorizer, history History, replayLimit int, logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		channels:    make(map[string]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan membership),
		unsubscribe: make(chan membership),
		broadcast:   make(chan Frame, 256),
		stopped:     make(chan struct{}),
		authorizer:  authorizer,
		history:     history,
		replayLimit: replayLimit,
		logger:      logger,
	}
}

// Run serves hub operations until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			client.close()
		}
		h.clients = make(map[*Client]struct{})
		h.channels = make(map[string]map[*Client]struct{})
		h.mu.Unlock()
		close(h.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client connected", zap.String("client", client.ID), zap.String("user", client.userID()))
		case client := <-h.unregister:
			h.drop(client)
		case m := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[m.client]; ok {
				subs, ok := h.channels[m.channel]
				if !ok {
					subs = make(map[*Client]struct{})
					h.channels[m.channel] = subs
				}
				subs[m.client] = struct{}{}
			}
			h.mu.Unlock()
			close(m.done)
		case m := <-h.unsubscribe:
			h.mu.Lock()
			h.removeFromChannelLocked(m.client, m.channel)
			h.mu.Unlock()
			close(m.done)
		case frame := <-h.broadcast:
			h.fanOut(frame)
		}
	}
}

func (h *Hub) fanOut(frame Frame) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.channels[frame.Channel] {
		if !client.deliver(frame) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("client too slow, dropping", zap.String("client", client.ID), zap.String("channel", frame.Channel))
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for name := range h.channels {
		h.removeFromChannelLocked(client, name)
	}
	client.close()
	h.logger.Debug("client disconnected", zap.String("client", client.ID), zap.String("user", client.userID()))
}

func (h *Hub) removeFromChannelLocked(client *Client, name string) {
	subs, ok := h.channels[name]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.channels, name)
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// Broadcast queues an event frame for every subscriber of frame.Channel.
func (h *Hub) Broadcast(frame Frame) {
	frame.Type = FrameEvent
	select {
	case h.broadcast <- frame:
	case <-h.stopped:
	}
}

func (h *Hub) join(client *Client, channelName string) {
	h.await(h.subscribe, membership{client: client, channel: channelName, done: make(chan struct{})})
}

func (h *Hub) leave(client *Client, channelName string) {
	h.await(h.unsubscribe, membership{client: client, channel: channelName, done: make(chan struct{})})
}

func (h *Hub) await(ch chan membership, m membership) {
	select {
	case ch <- m:
	case <-h.stopped:
		return
	}
	select {
	case <-m.done:
	case <-h.stopped:
	}
}

// ChannelCount reports how many clients are subscribed to a channel.
func (h *Hub) ChannelCount(channelName string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channelName])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
