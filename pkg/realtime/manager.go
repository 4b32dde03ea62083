package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portal-realtime/pkg/channel"
	apperrors "portal-realtime/pkg/errors"
)

// Link is the transport a Manager drives: Join is called when a channel gets
// its first binding, Leave when it loses its last one.
type Link interface {
	Join(channel string, since int64)
	Leave(channel string)
}

type message struct {
	event   string
	data    json.RawMessage
	barrier chan struct{}
}

type binding struct {
	token   Token
	channel string
	event   string
	handler Handler

	mu        sync.Mutex
	cancelled bool
}

// invoke runs the handler unless the binding was cancelled first. The lock is
// held for the duration of the call so cancel waits for a running handler.
func (b *binding) invoke(data json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelled {
		return
	}
	b.handler(data)
}

func (b *binding) cancel() {
	b.mu.Lock()
	b.cancelled = true
	b.mu.Unlock()
}

type channelState struct {
	name     string
	bindings []*binding
	lastSeq  int64
	pending  []message
	wake     chan struct{}
	stop     chan struct{}
}

// linkOp is a queued Join or Leave. A barrier op only marks a point in the
// queue for Sync.
type linkOp struct {
	join    bool
	channel string
	since   int64
	barrier chan struct{}
}

// Manager multiplexes bindings onto channel subscriptions of one Link.
// Link calls run in queue order on their own goroutine, outside the lock.
type Manager struct {
	link   Link
	logger *zap.Logger

	mu       sync.Mutex
	channels map[string]*channelState
	tokens   map[Token]*binding
	closed   bool
	linkOps  []linkOp
	linkWake chan struct{}
}

func NewManager(link Link, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		link:     link,
		logger:   logger,
		channels: make(map[string]*channelState),
		tokens:   make(map[Token]*binding),
		linkWake: make(chan struct{}, 1),
	}
	go m.pumpLink()
	return m
}

func (m *Manager) Subscribe(channelName, event string, h Handler) (Token, error) {
	if !channel.Valid(channelName) {
		return Token{}, fmt.Errorf("subscribe %q: %w", channelName, apperrors.ErrInvalidChannel)
	}
	if !channel.ValidEvent(event) {
		return Token{}, fmt.Errorf("subscribe %q: %w", event, apperrors.ErrInvalidEvent)
	}
	if h == nil {
		return Token{}, errors.New("subscribe: nil handler")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Token{}, apperrors.ErrConnClosed
	}

	b := &binding{token: Token{id: uuid.NewString()}, channel: channelName, event: event, handler: h}
	m.tokens[b.token] = b

	st, ok := m.channels[channelName]
	if !ok {
		st = &channelState{
			name: channelName,
			wake: make(chan struct{}, 1),
			stop: make(chan struct{}),
		}
		m.channels[channelName] = st
		go m.dispatch(st)
		m.queueLinkLocked(linkOp{join: true, channel: channelName})
		m.logger.Debug("channel joined", zap.String("channel", channelName))
	}
	st.bindings = append(st.bindings, b)
	return b.token, nil
}

// Cancel waits for a running invocation of the binding's handler, so a
// handler must not cancel its own token.
func (m *Manager) Cancel(t Token) {
	b := m.unbind(t)
	if b != nil {
		b.cancel()
	}
}

func (m *Manager) unbind(t Token) *binding {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.tokens[t]
	if !ok {
		return nil
	}
	delete(m.tokens, t)

	st := m.channels[b.channel]
	if st == nil {
		return b
	}
	for i, other := range st.bindings {
		if other == b {
			st.bindings = append(st.bindings[:i:i], st.bindings[i+1:]...)
			break
		}
	}
	if len(st.bindings) == 0 {
		m.dropChannelLocked(st)
		if !m.closed {
			m.queueLinkLocked(linkOp{channel: st.name})
		}
		m.logger.Debug("channel left", zap.String("channel", st.name))
	}
	return b
}

func (m *Manager) queueLinkLocked(op linkOp) {
	m.linkOps = append(m.linkOps, op)
	select {
	case m.linkWake <- struct{}{}:
	default:
	}
}

// pumpLink sends queued Join and Leave calls until the Manager is closed.
// Ops still queued at Close are dropped; their barriers are released.
func (m *Manager) pumpLink() {
	for range m.linkWake {
		m.mu.Lock()
		batch := m.linkOps
		m.linkOps = nil
		closed := m.closed
		m.mu.Unlock()

		for _, op := range batch {
			switch {
			case op.barrier != nil:
				close(op.barrier)
			case closed:
			case op.join:
				m.link.Join(op.channel, op.since)
			default:
				m.link.Leave(op.channel)
			}
		}
		if closed {
			return
		}
	}
}

func (m *Manager) dropChannelLocked(st *channelState) {
	delete(m.channels, st.name)
	close(st.stop)
	for _, msg := range st.pending {
		if msg.barrier != nil {
			close(msg.barrier)
		}
	}
	st.pending = nil
}

// Deliver hands an incoming event to the channel's bindings. Events whose seq
// is not above the last seen seq of the channel are dropped as replays.
func (m *Manager) Deliver(channelName, event string, seq int64, data json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.channels[channelName]
	if !ok {
		return
	}
	if seq > 0 {
		if seq <= st.lastSeq {
			m.logger.Debug("duplicate event dropped", zap.String("channel", channelName), zap.Int64("seq", seq))
			return
		}
		st.lastSeq = seq
	}
	m.enqueueLocked(st, message{event: event, data: data})
}

func (m *Manager) enqueueLocked(st *channelState, msg message) {
	st.pending = append(st.pending, msg)
	select {
	case st.wake <- struct{}{}:
	default:
	}
}

// Refused reports a subscription the relay turned down.
func (m *Manager) Refused(channelName, reason string) {
	m.logger.Warn("subscription refused", zap.String("channel", channelName), zap.String("reason", reason))
}

// Resume lists the live channels with the last seq seen on each, for
// resubscribing after a reconnect.
func (m *Manager) Resume() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.channels))
	for name, st := range m.channels {
		out[name] = st.lastSeq
	}
	return out
}

// Sync blocks until every event delivered so far has been handled and every
// queued Join or Leave has reached the Link.
func (m *Manager) Sync() {
	m.mu.Lock()
	barriers := make([]chan struct{}, 0, len(m.channels)+1)
	for _, st := range m.channels {
		b := make(chan struct{})
		m.enqueueLocked(st, message{barrier: b})
		barriers = append(barriers, b)
	}
	if !m.closed {
		b := make(chan struct{})
		m.queueLinkLocked(linkOp{barrier: b})
		barriers = append(barriers, b)
	}
	m.mu.Unlock()

	for _, b := range barriers {
		<-b
	}
}

// Bindings reports how many live bindings a channel has.
func (m *Manager) Bindings(channelName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.channels[channelName]; ok {
		return len(st.bindings)
	}
	return 0
}

// Close cancels every binding. Further Subscribe calls fail with ErrConnClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	bindings := make([]*binding, 0, len(m.tokens))
	for t, b := range m.tokens {
		bindings = append(bindings, b)
		delete(m.tokens, t)
	}
	for _, st := range m.channels {
		m.dropChannelLocked(st)
	}
	select {
	case m.linkWake <- struct{}{}:
	default:
	}
	m.mu.Unlock()

	for _, b := range bindings {
		b.cancel()
	}
}

func (m *Manager) dispatch(st *channelState) {
	for {
		select {
		case <-st.stop:
			return
		case <-st.wake:
		}

		m.mu.Lock()
		batch := st.pending
		st.pending = nil
		m.mu.Unlock()

		for _, msg := range batch {
			if msg.barrier != nil {
				close(msg.barrier)
				continue
			}
			for _, b := range m.matching(st, msg.event) {
				b.invoke(msg.data)
			}
		}
	}
}

func (m *Manager) matching(st *channelState, event string) []*binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*binding
	for _, b := range st.bindings {
		if b.event == event {
			out = append(out, b)
		}
	}
	return out
}
