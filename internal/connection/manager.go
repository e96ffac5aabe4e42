// ABOUTME: Manager owns the single websocket to the agent backend for a chat view
// ABOUTME: Bounded fixed-interval reconnects, in-order frame delivery and deduped prompt sends

package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/2389/cortex-console/internal/dedupe"
	"github.com/2389/cortex-console/internal/metrics"
)

const (
	DefaultMaxAttempts      = 5
	DefaultRetryInterval    = 3 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second

	// sentTTL bounds how long a send key is remembered. A connection that
	// lives longer than this could resend a prompt the backend never
	// answered, which is harmless.
	sentTTL  = time.Hour
	sentSize = 256
)

var (
	// ErrRetriesExhausted is returned by Run when every dial attempt failed.
	ErrRetriesExhausted = errors.New("connection retries exhausted")
	// ErrNotConnected is returned by Send when no socket is open.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("connection manager closed")
)

// Handler receives everything that arrives on the socket.
type Handler interface {
	// HandleFrame is called once per text frame, in delivery order, from a
	// single goroutine.
	HandleFrame(ctx context.Context, data []byte)
	// HandleDisconnect is called when an open socket errors or closes, and
	// once more when reconnecting gives up.
	HandleDisconnect(err error)
}

// PromptSource supplies the prompt to send when a socket opens.
type PromptSource interface {
	PendingPrompt() (key, prompt string, ok bool)
}

// Config holds connection settings.
type Config struct {
	URL              string
	MaxAttempts      uint
	RetryInterval    time.Duration
	HandshakeTimeout time.Duration
	Header           http.Header
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return c
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics records connection counters.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager keeps one live socket to the backend. Run owns the socket's
// lifecycle; Send may be called from any goroutine.
type Manager struct {
	cfg     Config
	handler Handler
	prompts PromptSource
	dialer  *websocket.Dialer
	sent    *dedupe.Cache
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	gen    uint64
	closed bool
	done   chan struct{}

	writeMu sync.Mutex
}

// New creates a manager. prompts may be nil when nothing should be sent on
// open.
func New(cfg Config, handler Handler, prompts PromptSource, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:     cfg,
		handler: handler,
		prompts: prompts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		sent: dedupe.New(sentTTL, sentSize),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "connection", "url", cfg.URL)
	return m
}

// Run connects and keeps the socket alive until ctx is cancelled, Close is
// called, or a reconnect round exhausts its attempts. The attempt budget is
// per round: a successful connection starts a fresh budget for the next drop,
// which is redialled after one retry interval.
func (m *Manager) Run(ctx context.Context) error {
	for {
		conn, err := backoff.Retry(ctx,
			func() (*websocket.Conn, error) { return m.dial(ctx) },
			backoff.WithBackOff(backoff.NewConstantBackOff(m.cfg.RetryInterval)),
			backoff.WithMaxTries(m.cfg.MaxAttempts),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				m.logger.Warn("dial failed, retrying", "error", err, "retry_in", next)
			}),
		)
		if err != nil {
			if ctx.Err() != nil || m.isClosed() {
				return ctx.Err()
			}
			m.handler.HandleDisconnect(err)
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, m.cfg.MaxAttempts, err)
		}

		err = m.serve(ctx, conn)
		if ctx.Err() != nil || m.isClosed() {
			return ctx.Err()
		}

		m.logger.Info("socket closed, reconnecting", "error", err, "retry_in", m.cfg.RetryInterval)
		m.handler.HandleDisconnect(err)

		// The retry round's first dial is immediate, so a dropped socket
		// waits one interval before it.
		if !m.wait(ctx, m.cfg.RetryInterval) {
			return ctx.Err()
		}
	}
}

// wait sleeps for d. It returns false when ctx ends or Close is called first.
func (m *Manager) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !m.isClosed()
	case <-ctx.Done():
		return false
	case <-m.done:
		return false
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	if m.isClosed() {
		return nil, backoff.Permanent(ErrClosed)
	}

	conn, resp, err := m.dialer.DialContext(ctx, m.cfg.URL, m.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		m.metrics.ConnectFailed()
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

// serve pumps frames from conn to the handler until the socket fails.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	m.gen++
	gen := m.gen
	m.conn = conn
	m.mu.Unlock()

	m.metrics.Connected()
	m.logger.Info("socket connected", "generation", gen)

	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
		conn.Close()
		m.metrics.Disconnected()
	}()

	// Unblock ReadMessage when the caller goes away.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if m.prompts != nil {
		if key, prompt, ok := m.prompts.PendingPrompt(); ok {
			if err := m.write(ctx, conn, gen, key, prompt); err != nil {
				m.logger.Warn("failed to send pending prompt", "key", key, "error", err)
			}
		}
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			m.logger.Debug("ignoring non-text frame", "type", msgType)
			continue
		}
		if m.isClosed() {
			return ErrClosed
		}
		m.handler.HandleFrame(ctx, data)
	}
}

// Send writes text to the open socket. key identifies the message: a key
// already sent on the current socket is not sent again, so a prompt queued
// before the socket opened goes out exactly once.
func (m *Manager) Send(ctx context.Context, key, text string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	conn, gen := m.conn, m.gen
	m.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	return m.write(ctx, conn, gen, key, text)
}

func (m *Manager) write(ctx context.Context, conn *websocket.Conn, gen uint64, key, text string) error {
	sentKey := fmt.Sprintf("%d:%s", gen, key)
	if m.sent.CheckAndMark(sentKey) {
		m.logger.Debug("already sent on this socket", "key", key, "generation", gen)
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		m.sent.Forget(sentKey)
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		m.sent.Forget(sentKey)
		return fmt.Errorf("write: %w", err)
	}
	m.logger.Debug("sent", "key", key, "generation", gen, "bytes", len(text))
	return nil
}

// Connected reports whether a socket is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close tears down the socket. No handler call is made afterwards except one
// already in flight, and Run returns.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		return nil
	}

	m.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	m.writeMu.Unlock()
	return conn.Close()
}
