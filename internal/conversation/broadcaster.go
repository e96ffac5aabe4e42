// ABOUTME: In-memory fan-out of view-model change notifications
// ABOUTME: Renderers subscribe per conversation and re-read state when notified

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// ChangeReason says which part of the view model moved.
type ChangeReason string

const (
	ChangeRecord     ChangeReason = "record"
	ChangeOutput     ChangeReason = "output"
	ChangePreview    ChangeReason = "preview"
	ChangeStatus     ChangeReason = "status"
	ChangeTurn       ChangeReason = "turn"
	ChangeReset      ChangeReason = "reset"
	ChangeDisconnect ChangeReason = "disconnect"
)

// Change notifies subscribers that the conversation moved to Version.
type Change struct {
	ConversationID string
	Version        uint64
	Reason         ChangeReason
	TurnID         string
	Key            string
}

// Broadcaster provides in-memory pub/sub for Change notifications. Subscribers
// register for a conversation id. Notifications carry no state; subscribers
// read a fresh snapshot when one arrives.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Change // conversationID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan Change),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for changes to the given conversation.
// Returns a channel of changes and a subscription ID for later
// unsubscription. The subscription is removed when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan Change, string) {
	subID := uuid.New().String()
	ch := make(chan Change, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan Change)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"conversation_id", conversationID,
		"sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish sends a change to every subscriber of its conversation.
// Non-blocking: changes are dropped for subscribers whose channels are full.
// A dropped change is harmless since the next one carries a newer version.
func (b *Broadcaster) Publish(c Change) {
	b.mu.RLock()
	subs, ok := b.subscribers[c.ConversationID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	targets := make([]chan Change, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}

	for _, ch := range targets {
		select {
		case ch <- c:
		default:
			b.logger.Debug("dropped change for slow subscriber",
				"conversation_id", c.ConversationID,
				"version", c.Version)
		}
	}
	b.mu.RUnlock()
}

// Move re-keys every subscription from one conversation id to another. Used
// when a new chat replaces the conversation a renderer was watching.
func (b *Broadcaster) Move(fromID, toID string) {
	if fromID == toID {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[fromID]
	if !ok {
		return
	}
	delete(b.subscribers, fromID)
	if existing, ok := b.subscribers[toID]; ok {
		for id, ch := range subs {
			existing[id] = ch
		}
		return
	}
	b.subscribers[toID] = subs
}

// Unsubscribe removes a subscription and closes its channel. Subscriptions
// moved to another conversation id are found wherever they live.
func (b *Broadcaster) Unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := conversationID
	if _, ok := b.subscribers[key][subID]; !ok {
		key = ""
		for id, subs := range b.subscribers {
			if _, ok := subs[subID]; ok {
				key = id
				break
			}
		}
		if key == "" {
			return
		}
	}

	subs := b.subscribers[key]
	ch := subs[subID]
	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, key)
	}

	b.logger.Debug("subscriber removed",
		"conversation_id", key,
		"sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for convID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, convID)
	}

	b.logger.Debug("broadcaster closed")
}
