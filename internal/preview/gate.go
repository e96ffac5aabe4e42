// ABOUTME: Single-slot gate for the live browser preview URL
// ABOUTME: Offers are applied after a fixed delay; generation counters void stale timers

package preview

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDelay gives any panel on screen time to leave before the preview
// opens.
const DefaultDelay = 300 * time.Millisecond

// Gate holds at most one live URL. Only one Offer can be pending at a time.
type Gate struct {
	mu       sync.Mutex
	delay    time.Duration
	current  string
	pending  *time.Timer
	gen      uint64
	closed   bool
	onChange func(url string)
	logger   *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithOnChange registers a callback invoked, outside the gate's lock, each
// time the visible URL changes. An empty url means the preview closed.
func WithOnChange(fn func(url string)) Option {
	return func(g *Gate) { g.onChange = fn }
}

// WithLogger sets the gate's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// NewGate creates a gate that applies offers after delay. A zero delay
// applies offers on the next timer tick.
func NewGate(delay time.Duration, opts ...Option) *Gate {
	g := &Gate{delay: delay}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "preview")
	return g
}

// Offer schedules url to become the live URL. It is ignored when url is
// empty, when a URL is already shown, or when another offer is pending.
// Returns true if the offer was scheduled.
func (g *Gate) Offer(url string) bool {
	if url == "" {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.current != "" || g.pending != nil {
		return false
	}

	gen := g.gen
	g.pending = time.AfterFunc(g.delay, func() { g.fire(gen, url) })
	g.logger.Debug("live url scheduled", "url", url, "delay", g.delay)
	return true
}

func (g *Gate) fire(gen uint64, url string) {
	g.mu.Lock()
	if g.closed || gen != g.gen {
		g.mu.Unlock()
		return
	}
	g.pending = nil
	g.current = url
	onChange := g.onChange
	g.mu.Unlock()

	g.logger.Debug("live url shown", "url", url)
	if onChange != nil {
		onChange(url)
	}
}

// Clear hides the live URL and cancels any pending offer.
func (g *Gate) Clear() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	changed := g.current != ""
	g.cancelLocked()
	g.current = ""
	onChange := g.onChange
	g.mu.Unlock()

	if changed {
		g.logger.Debug("live url cleared")
		if onChange != nil {
			onChange("")
		}
	}
}

// Current returns the shown URL, or "" when none is shown.
func (g *Gate) Current() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Pending reports whether an offer is waiting for its delay to elapse.
func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// Close cancels pending timers. The gate ignores every call afterwards.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cancelLocked()
	g.closed = true
}

// cancelLocked must be called with mu held.
func (g *Gate) cancelLocked() {
	g.gen++
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
}
