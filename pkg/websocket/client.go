package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portal-realtime/pkg/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
	authorizeWait  = 10 * time.Second
)

// Client is one socket connected to the relay.
type Client struct {
	ID     string
	Hub    *Hub
	Conn   *websocket.Conn
	Claims *service.JwtCustomClaim

	send chan []byte

	mu        sync.Mutex
	closed    bool
	replaying map[string][]Frame
}

func NewClient(hub *Hub, conn *websocket.Conn, claims *service.JwtCustomClaim) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Hub:       hub,
		Conn:      conn,
		Claims:    claims,
		send:      make(chan []byte, sendBuffer),
		replaying: make(map[string][]Frame),
	}
}

func (c *Client) userID() string {
	if c.Claims == nil {
		return ""
	}
	return c.Claims.UserID
}

// deliver pushes a live event. Frames for a channel that is still replaying
// are held back until the replay finishes. False means the buffer is full.
func (c *Client) deliver(frame Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	if pending, ok := c.replaying[frame.Channel]; ok {
		c.replaying[frame.Channel] = append(pending, frame)
		return true
	}
	return c.enqueueLocked(frame)
}

func (c *Client) sendFrame(frame Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return c.enqueueLocked(frame)
}

func (c *Client) enqueueLocked(frame Frame) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) beginReplay(channelName string) {
	c.mu.Lock()
	c.replaying[channelName] = nil
	c.mu.Unlock()
}

// finishReplay flushes live frames that arrived during replay, skipping any
// already covered by it.
func (c *Client) finishReplay(channelName string, lastSeq int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.replaying[channelName]
	delete(c.replaying, channelName)
	if c.closed {
		return false
	}
	for _, frame := range pending {
		if frame.Seq <= lastSeq {
			continue
		}
		if !c.enqueueLocked(frame) {
			return false
		}
		lastSeq = frame.Seq
	}
	return true
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var frame Frame
		if err := c.Conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("websocket read failed", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}

		switch frame.Type {
		case FrameSubscribe:
			c.handleSubscribe(frame)
		case FrameUnsubscribe:
			c.Hub.leave(c, frame.Channel)
		default:
			c.sendFrame(Frame{Type: FrameError, Error: "unknown frame type " + frame.Type})
		}
	}
}

func (c *Client) handleSubscribe(frame Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), authorizeWait)
	defer cancel()

	if err := c.Hub.authorizer.Authorize(ctx, c.Claims, frame.Channel); err != nil {
		c.Hub.logger.Info("subscription refused",
			zap.String("user", c.userID()),
			zap.String("channel", frame.Channel),
			zap.Error(err),
		)
		c.sendFrame(Frame{Type: FrameSubscriptionError, Channel: frame.Channel, Error: err.Error()})
		return
	}

	if frame.Since <= 0 {
		c.Hub.join(c, frame.Channel)
		c.sendFrame(Frame{Type: FrameSubscriptionSucceeded, Channel: frame.Channel})
		return
	}

	c.beginReplay(frame.Channel)
	c.Hub.join(c, frame.Channel)
	c.sendFrame(Frame{Type: FrameSubscriptionSucceeded, Channel: frame.Channel})

	lastSeq := frame.Since
	missed, err := c.Hub.history.After(ctx, frame.Channel, frame.Since, c.Hub.replayLimit)
	if err != nil {
		c.Hub.logger.Warn("replay failed", zap.String("channel", frame.Channel), zap.Int64("since", frame.Since), zap.Error(err))
	}
	for _, m := range missed {
		if !c.sendFrame(m) {
			break
		}
		lastSeq = m.Seq
	}
	if !c.finishReplay(frame.Channel, lastSeq) {
		c.Hub.logger.Warn("client too slow, dropping", zap.String("client", c.ID))
		c.Hub.Unregister(c)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
