package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClientClosed is returned by calls made after Close.
var ErrClientClosed = errors.New("websocket client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is the first reconnect delay, doubled per failed attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the reconnect delay.
	MaxReconnectDelay time.Duration
	// PingInterval is the keepalive period.
	PingInterval time.Duration
	// ReadTimeout drops a connection that has answered neither data nor pings
	// this long. It is raised to twice PingInterval when set lower.
	ReadTimeout time.Duration
	// WriteTimeout bounds one frame write.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// Commitment is the logsSubscribe commitment level.
	Commitment string
	// BufferSize is the per-subscription notification buffer.
	BufferSize int

	Logger        *zap.Logger
	OnStateChange func(ConnStatus)
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		Commitment:        DefaultCommitment,
		BufferSize:        10000,
	}
}

// subscription outlives connections: serverID changes on every resubscribe,
// the channel handed to the caller does not.
type subscription struct {
	filter   LogsFilter
	ch       chan LogNotification
	serverID int64
}

// pendingSubscribe is a logsSubscribe awaiting its reply. The read loop binds
// sub to the new server ID before any later notification is dispatched.
type pendingSubscribe struct {
	sub  *subscription
	done chan error
}

// WSClientImpl implements WSClient using gorilla/websocket.
// A single supervisor goroutine owns reading and reconnecting.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger
	state    *ConnStateMachine

	// writeMu serializes frame writes and guards conn.
	writeMu sync.Mutex
	conn    *websocket.Conn

	// mu guards subs, routes and pending.
	mu      sync.Mutex
	subs    []*subscription
	routes  map[int64]*subscription
	pending map[uint64]pendingSubscribe

	nextID atomic.Uint64
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient dials endpoint and starts the supervisor. Zero config fields
// take their DefaultWSConfig values.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := withWSDefaults(config)

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   cfg.Logger.Named("ws"),
		state:    NewConnStateMachine(cfg.ReconnectDelay, cfg.MaxReconnectDelay, cfg.OnStateChange),
		routes:   make(map[int64]*subscription),
		pending:  make(map[uint64]pendingSubscribe),
		done:     make(chan struct{}),
	}

	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	c.state.Connected()

	c.wg.Add(2)
	go c.supervise()
	go c.keepalive()

	return c, nil
}

func withWSDefaults(config *WSClientConfig) WSClientConfig {
	def := DefaultWSConfig()
	if config == nil {
		def.Logger = zap.NewNop()
		return def
	}
	cfg := *config
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = max(def.MaxReconnectDelay, cfg.ReconnectDelay)
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	// At least one pong must fit inside the read deadline.
	if cfg.ReadTimeout < 2*cfg.PingInterval {
		cfg.ReadTimeout = 2 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = def.SubscribeTimeout
	}
	if cfg.Commitment == "" {
		cfg.Commitment = def.Commitment
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

// Status reports the connection state.
func (c *WSClientImpl) Status() ConnStatus {
	return c.state.Status()
}

func (c *WSClientImpl) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	return nil
}

// write sends one frame on the current connection.
func (c *WSClientImpl) write(fn func(conn *websocket.Conn) error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return fn(c.conn)
}

// SubscribeLogs subscribes to logs matching the filter. The returned channel
// keeps delivering across reconnects and is closed by Close.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	sub := &subscription{
		filter: filter,
		ch:     make(chan LogNotification, c.config.BufferSize),
	}
	err := c.subscribe(ctx, sub)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// A reply may have bound the route after the caller gave up.
		if sub.serverID != 0 {
			delete(c.routes, sub.serverID)
		}
		return nil, err
	}
	c.subs = append(c.subs, sub)
	return sub.ch, nil
}

// Close stops the supervisor, closes the connection and every subscription channel.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.writeMu.Lock()
	if c.conn != nil {
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.writeMu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	for _, sub := range c.subs {
		close(sub.ch)
	}
	c.subs = nil
	clear(c.routes)
	clear(c.pending)
	c.mu.Unlock()

	c.state.Closed()
	return nil
}

// supervise reads until the connection fails, then reconnects and restores
// every subscription.
func (c *WSClientImpl) supervise() {
	defer c.wg.Done()

	for {
		err := c.readLoop()
		if c.closed.Load() {
			return
		}

		c.state.Disconnected()
		c.logger.Warn("connection lost", zap.Error(err))

		if !c.reconnect() {
			return
		}
		// Confirmations arrive through readLoop, so resubscribe concurrently.
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.resubscribe()
		}()
	}
}

func (c *WSClientImpl) readLoop() error {
	c.writeMu.Lock()
	conn := c.conn
	c.writeMu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	// Quiet subscriptions see no data frames; pongs keep the deadline moving.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

// reconnect dials with capped exponential backoff until it succeeds.
// It returns false when the client was closed meanwhile.
func (c *WSClientImpl) reconnect() bool {
	c.writeMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.writeMu.Unlock()

	for {
		attempt, delay := c.state.BeginReconnect()
		c.logger.Info("reconnecting", zap.Int("attempt", attempt), zap.Duration("delay", delay))

		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.dial(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if c.closed.Load() {
			c.writeMu.Lock()
			c.conn.Close()
			c.writeMu.Unlock()
			return false
		}

		c.state.Connected()
		c.logger.Info("reconnected", zap.Int("attempts", attempt))
		return true
	}
}

// resubscribe replays every subscription on the new connection. A failed
// replay keeps the stale route; the next reconnect retries it.
func (c *WSClientImpl) resubscribe() {
	c.mu.Lock()
	subs := append([]*subscription(nil), c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.SubscribeTimeout)
		err := c.subscribe(ctx, sub)
		cancel()
		if err != nil {
			c.logger.Warn("resubscribe failed", zap.Strings("mentions", sub.filter.Mentions), zap.Error(err))
		}
	}
}

// subscribe sends logsSubscribe for sub and waits until the reply has bound
// it to a server subscription ID.
func (c *WSClientImpl) subscribe(ctx context.Context, sub *subscription) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	id := c.nextID.Add(1)
	var target any = "all"
	if len(sub.filter.Mentions) > 0 {
		target = map[string][]string{"mentions": sub.filter.Mentions}
	}
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "logsSubscribe",
		Params:  []any{target, map[string]string{"commitment": c.config.Commitment}},
	}

	done := make(chan error, 1)
	c.mu.Lock()
	c.pending[id] = pendingSubscribe{sub: sub, done: done}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(func(conn *websocket.Conn) error { return conn.WriteJSON(req) }); err != nil {
		return fmt.Errorf("write logsSubscribe: %w", err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("logsSubscribe not confirmed within %s", c.config.SubscribeTimeout)
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch routes one inbound frame: a reply to a pending request, or a
// logs notification.
func (c *WSClientImpl) dispatch(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("undecodable frame", zap.Error(err))
		return
	}

	switch {
	case msg.ID != nil:
		c.resolve(*msg.ID, msg)
	case msg.Method == "logsNotification" && msg.Params != nil:
		c.deliver(msg.Params)
	}
}

func (c *WSClientImpl) resolve(id uint64, msg wsMessage) {
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, id)

	var (
		serverID int64
		err      error
	)
	switch {
	case msg.Error != nil:
		err = msg.Error
	case json.Unmarshal(msg.Result, &serverID) != nil:
		err = fmt.Errorf("decode subscription id %s", msg.Result)
	default:
		if p.sub.serverID != 0 {
			delete(c.routes, p.sub.serverID)
		}
		p.sub.serverID = serverID
		c.routes[serverID] = p.sub
	}
	c.mu.Unlock()

	p.done <- err
}

func (c *WSClientImpl) deliver(p *wsNotificationParams) {
	c.mu.Lock()
	sub, ok := c.routes[p.Subscription]
	c.mu.Unlock()
	if !ok {
		return
	}

	n := LogNotification{
		Signature: p.Result.Value.Signature,
		Logs:      p.Result.Value.Logs,
		Err:       p.Result.Value.Err,
	}
	if p.Result.Context != nil {
		n.Slot = p.Result.Context.Slot
	}

	// Blocks when the subscriber lags; the monitor queue bounds memory downstream.
	select {
	case sub.ch <- n:
	case <-c.done:
	}
}

func (c *WSClientImpl) keepalive() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := c.write(func(conn *websocket.Conn) error {
				return conn.WriteMessage(websocket.PingMessage, nil)
			})
			if err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
			}
		}
	}
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// wsMessage is any inbound frame: a reply carries ID, a notification Method.
type wsMessage struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      *uint64               `json:"id,omitempty"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *RPCError             `json:"error,omitempty"`
	Method  string                `json:"method,omitempty"`
	Params  *wsNotificationParams `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string   `json:"signature"`
	Logs      []string `json:"logs"`
	Err       any      `json:"err"`
}
