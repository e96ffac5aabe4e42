// ABOUTME: Session is the application-state container for one chat view
// ABOUTME: Owns the conversation, output registry, preview gate and research trackers

package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/cortex-console/internal/conversation"
	"github.com/2389/cortex-console/internal/event"
	"github.com/2389/cortex-console/internal/metrics"
	"github.com/2389/cortex-console/internal/outputs"
	"github.com/2389/cortex-console/internal/preview"
	"github.com/2389/cortex-console/internal/research"
)

var (
	// ErrEmptyPrompt is returned when submitting a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrNotAwaitingInput is returned when answering while no agent asked.
	ErrNotAwaitingInput = errors.New("no agent is waiting for input")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

// Options configures a Session.
type Options struct {
	// PreviewDelay is how long an offered live URL waits before showing.
	PreviewDelay time.Duration
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	// Now stamps frame arrival; defaults to time.Now.
	Now func() time.Time
}

// Session is the single owner of a chat view's state. Frames are applied in
// the order HandleFrame is called; the connection manager calls it from one
// goroutine in socket delivery order.
type Session struct {
	mu         sync.Mutex
	conv       *conversation.Conversation
	status     conversation.Status
	registry   *outputs.Registry
	selector   *outputs.Selector
	research   map[string]*research.Tracker
	reconciler *conversation.Reconciler
	closed     bool

	gate        *preview.Gate
	broadcaster *conversation.Broadcaster
	convID      atomic.Pointer[string]
	version     atomic.Uint64

	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a session with an empty conversation.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		conv:        conversation.New(),
		registry:    outputs.NewRegistry(),
		research:    make(map[string]*research.Tracker),
		broadcaster: conversation.NewBroadcaster(logger),
		metrics:     opts.Metrics,
		logger:      logger.With("component", "session"),
		now:         now,
	}
	s.selector = outputs.NewSelector(s.registry)
	s.gate = preview.NewGate(opts.PreviewDelay,
		preview.WithLogger(logger),
		preview.WithOnChange(func(string) { s.publish(conversation.ChangePreview, "", "") }),
	)
	s.reconciler = conversation.NewReconciler(s.registry, s.gate, logger)
	s.setConvID(s.conv.ID)
	return s
}

func (s *Session) setConvID(id string) {
	s.convID.Store(&id)
}

func (s *Session) publish(reason conversation.ChangeReason, turnID, key string) {
	s.broadcaster.Publish(conversation.Change{
		ConversationID: *s.convID.Load(),
		Version:        s.version.Add(1),
		Reason:         reason,
		TurnID:         turnID,
		Key:            key,
	})
}

// HandleFrame decodes one socket frame and folds it into the conversation.
// Bad frames are logged and counted; they never surface as errors.
func (s *Session) HandleFrame(ctx context.Context, data []byte) {
	if ctx.Err() != nil {
		return
	}
	s.metrics.FrameReceived()

	ev, err := event.Decode(data)
	if err != nil {
		s.metrics.FrameMalformed()
		s.logger.Warn("dropping malformed frame", "error", err, "bytes", len(data))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	before := s.status
	out := s.reconciler.Apply(s.conv, &s.status, ev, s.now())
	if ev.IsResearch() && out.Key != "" {
		tracker, ok := s.research[out.Key]
		if !ok {
			tracker = research.NewTracker()
			s.research[out.Key] = tracker
		}
		tracker.Feed(ev.Steps)
	}
	statusChanged := before != s.status
	s.mu.Unlock()

	s.metrics.EventApplied(ev.AgentName, out.Changed)
	if out.Published {
		s.metrics.OutputPublished(ev.AgentName)
	}

	switch {
	case out.Published:
		s.publish(conversation.ChangeOutput, out.TurnID, out.Key)
	case out.Changed:
		s.publish(conversation.ChangeRecord, out.TurnID, out.Key)
	case statusChanged:
		s.publish(conversation.ChangeStatus, out.TurnID, out.Key)
	}
}

// HandleDisconnect stops the loading indicator and closes the live preview
// when the socket errors or closes. The in-flight turn is not retried.
func (s *Session) HandleDisconnect(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.status.Loading = false
	s.mu.Unlock()

	s.gate.Clear()
	s.logger.Info("connection lost", "error", err)
	s.publish(conversation.ChangeDisconnect, "", "")
}

// PendingPrompt returns the prompt the backend has not replied to yet, keyed
// by its turn id, so a fresh connection can send it.
func (s *Session) PendingPrompt() (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", "", false
	}
	turn, ok := s.conv.PendingPrompt()
	if !ok {
		return "", "", false
	}
	return turn.ID, turn.Prompt, true
}

// Submit appends a user turn and the system turn that will collect the
// backend's response. Returns the user turn id, which is also the send key.
func (s *Session) Submit(prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	turn := s.conv.AppendUser(prompt)
	s.status.Loading = true
	s.status.AwaitingInput = false
	s.status.InputPrompt = ""
	s.mu.Unlock()

	s.logger.Debug("prompt submitted", "turn_id", turn.ID)
	s.publish(conversation.ChangeTurn, turn.ID, "")
	return turn.ID, nil
}

// Answer records the user's reply to a Human Input question. The caller
// sends the returned key and text over the socket.
func (s *Session) Answer(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyPrompt
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if !s.status.AwaitingInput {
		s.mu.Unlock()
		return "", ErrNotAwaitingInput
	}
	s.status.AwaitingInput = false
	s.status.InputPrompt = ""
	s.status.Loading = true
	key := "answer:" + s.conv.ID + ":" + s.now().Format(time.RFC3339Nano)
	s.mu.Unlock()

	s.publish(conversation.ChangeStatus, "", "")
	return key, nil
}

// NewChat clears every turn, output, research tracker and the live preview.
// Subscribers follow the session to the new conversation.
func (s *Session) NewChat() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	oldID := s.conv.ID
	s.conv.Reset()
	s.status = conversation.Status{}
	s.registry.Reset()
	s.selector.Reset()
	s.research = make(map[string]*research.Tracker)
	s.setConvID(s.conv.ID)
	s.broadcaster.Move(oldID, s.conv.ID)
	s.mu.Unlock()

	s.gate.Clear()
	s.logger.Info("new chat", "conversation_id", *s.convID.Load())
	s.publish(conversation.ChangeReset, "", "")
}

// Subscribe returns a channel of change notifications for this session. The
// channel closes when ctx is cancelled or the session closes.
func (s *Session) Subscribe(ctx context.Context) <-chan conversation.Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, _ := s.broadcaster.Subscribe(ctx, s.conv.ID)
	return ch
}

// Select opens the output at index i in the detail panel.
func (s *Session) Select(i int) (outputs.Transition, bool) {
	return s.navigate(func() (outputs.Transition, bool) { return s.selector.Select(i) })
}

// Previous moves the selection one output back, stopping at the first.
func (s *Session) Previous() (outputs.Transition, bool) {
	return s.navigate(s.selector.Previous)
}

// Next moves the selection one output forward, stopping at the last.
func (s *Session) Next() (outputs.Transition, bool) {
	return s.navigate(s.selector.Next)
}

// ClearSelection closes the detail panel.
func (s *Session) ClearSelection() bool {
	s.mu.Lock()
	ok := s.selector.Clear()
	s.mu.Unlock()

	if ok {
		s.publish(conversation.ChangeOutput, "", "")
	}
	return ok
}

func (s *Session) navigate(move func() (outputs.Transition, bool)) (outputs.Transition, bool) {
	s.mu.Lock()
	tr, ok := move()
	s.mu.Unlock()

	if ok {
		s.publish(conversation.ChangeOutput, "", "")
	}
	return tr, ok
}

// Close tears the session down. Pending preview timers are cancelled and no
// frame mutates state afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.gate.Close()
	s.broadcaster.Close()
}
