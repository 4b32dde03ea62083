package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	relayws "portal-realtime/pkg/websocket"
)

const writeWait = 10 * time.Second

// Sink receives what the connection reads from the relay.
type Sink interface {
	Deliver(channel, event string, seq int64, data json.RawMessage)
	Refused(channel, reason string)
	Resume() map[string]int64
}

type Options struct {
	// URL of the relay socket endpoint, e.g. ws://localhost:8080/ws.
	URL        string
	Token      string
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Dialer     *websocket.Dialer
	Logger     *zap.Logger
}

// Conn is the single relay connection of a process. It reconnects with
// capped exponential backoff and resubscribes every live channel from the
// last seq it saw.
type Conn struct {
	opts Options
	sink Sink

	mu        sync.Mutex
	ws        *websocket.Conn
	writeMu   sync.Mutex
	connected chan struct{}
}

func NewConn(opts Options) *Conn {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Conn{opts: opts, connected: make(chan struct{})}
}

// Client is a Manager wired to a Conn.
type Client struct {
	*Manager
	Conn *Conn
}

// NewClient builds the shared connection and its subscription manager. Run
// must be called to actually connect.
func NewClient(opts Options) *Client {
	conn := NewConn(opts)
	m := NewManager(conn, opts.Logger)
	conn.sink = m
	return &Client{Manager: m, Conn: conn}
}

// Run keeps the connection up until ctx is done.
func (c *Conn) Run(ctx context.Context) {
	backoff := c.opts.MinBackoff
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			backoff = c.opts.MinBackoff
		}
		c.opts.Logger.Warn("relay connection lost", zap.Error(err), zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}
}

// Connected is closed after the first successful dial.
func (c *Conn) Connected() <-chan struct{} {
	return c.connected
}

func (c *Conn) dialURL() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", c.opts.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// session runs one connection. A nil error means it was established and
// later dropped, which resets the backoff.
func (c *Conn) session(ctx context.Context) error {
	target, err := c.dialURL()
	if err != nil {
		return err
	}
	ws, resp, err := c.opts.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.opts.Logger.Error("relay rejected the token")
		}
		return err
	}

	c.mu.Lock()
	c.ws = ws
	select {
	case <-c.connected:
	default:
		close(c.connected)
	}
	c.mu.Unlock()
	c.opts.Logger.Info("relay connected", zap.String("url", c.opts.URL))

	defer func() {
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		_ = ws.Close()
	}()

	if c.sink != nil {
		for name, since := range c.sink.Resume() {
			if err := c.write(ws, relayws.Frame{Type: relayws.FrameSubscribe, Channel: name, Since: since}); err != nil {
				return nil
			}
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	for {
		var f relayws.Frame
		if err := ws.ReadJSON(&f); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.opts.Logger.Info("relay closed the connection", zap.Int("code", closeErr.Code))
			}
			return nil
		}
		c.handle(f)
	}
}

func (c *Conn) handle(f relayws.Frame) {
	if c.sink == nil {
		return
	}
	switch f.Type {
	case relayws.FrameEvent:
		c.sink.Deliver(f.Channel, f.Event, f.Seq, f.Data)
	case relayws.FrameSubscriptionError:
		c.sink.Refused(f.Channel, f.Error)
	case relayws.FrameSubscriptionSucceeded:
		c.opts.Logger.Debug("subscribed", zap.String("channel", f.Channel))
	case relayws.FrameError:
		c.opts.Logger.Warn("relay error", zap.String("error", f.Error))
	}
}

func (c *Conn) write(ws *websocket.Conn, f relayws.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(f)
}

func (c *Conn) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

// Join sends subscribe when connected. While disconnected it does nothing;
// the next session resubscribes from Resume.
func (c *Conn) Join(channelName string, since int64) {
	if ws := c.current(); ws != nil {
		if err := c.write(ws, relayws.Frame{Type: relayws.FrameSubscribe, Channel: channelName, Since: since}); err != nil {
			c.opts.Logger.Warn("subscribe not sent", zap.String("channel", channelName), zap.Error(err))
		}
	}
}

func (c *Conn) Leave(channelName string) {
	if ws := c.current(); ws != nil {
		if err := c.write(ws, relayws.Frame{Type: relayws.FrameUnsubscribe, Channel: channelName}); err != nil {
			c.opts.Logger.Warn("unsubscribe not sent", zap.String("channel", channelName), zap.Error(err))
		}
	}
}
