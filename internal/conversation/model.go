// ABOUTME: Conversation, turn and agent record types for the chat view model
// ABOUTME: System turns keep agent records in first-arrival order across updates

package conversation

import (
	"time"

	"github.com/google/uuid"
)

// TurnKind distinguishes the user's prompt from the backend's response.
type TurnKind string

const (
	TurnUser   TurnKind = "user"
	TurnSystem TurnKind = "system"
)

// AgentRecord is the latest known state of one agent invocation in a turn.
type AgentRecord struct {
	Key          string
	AgentName    string
	Instructions string
	Steps        []string
	Output       string
	StatusCode   int
	LiveURL      string
	RecordID     string
	SourceCode   string
	Metadata     map[string]any
	UpdatedAt    time.Time
}

func (r AgentRecord) clone() AgentRecord {
	r.Steps = append([]string(nil), r.Steps...)
	if r.Metadata != nil {
		md := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			md[k] = v
		}
		r.Metadata = md
	}
	return r
}

// Turn is one entry of a conversation. User turns are immutable once created.
type Turn struct {
	ID        string
	Kind      TurnKind
	Prompt    string
	CreatedAt time.Time
	// Version increases on every change to the turn's records.
	Version uint64

	order   []string
	records map[string]*AgentRecord
}

func newTurn(kind TurnKind, prompt string) *Turn {
	return &Turn{
		ID:        uuid.New().String(),
		Kind:      kind,
		Prompt:    prompt,
		CreatedAt: time.Now(),
		records:   make(map[string]*AgentRecord),
	}
}

// Len returns the number of agent records.
func (t *Turn) Len() int { return len(t.order) }

// Get returns a copy of the record with the given key.
func (t *Turn) Get(key string) (AgentRecord, bool) {
	rec, ok := t.records[key]
	if !ok {
		return AgentRecord{}, false
	}
	return rec.clone(), true
}

// Position returns the display index of the record, or -1.
func (t *Turn) Position(key string) int {
	for i, k := range t.order {
		if k == key {
			return i
		}
	}
	return -1
}

// latestAnonymous returns the key of the newest record from agent that the
// backend did not identify with a record_id.
func (t *Turn) latestAnonymous(agent string) (string, bool) {
	for i := len(t.order) - 1; i >= 0; i-- {
		rec := t.records[t.order[i]]
		if rec.AgentName == agent && rec.RecordID == "" {
			return rec.Key, true
		}
	}
	return "", false
}

// Records returns copies of all records in display order.
func (t *Turn) Records() []AgentRecord {
	out := make([]AgentRecord, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.records[key].clone())
	}
	return out
}

// upsert stores rec under rec.Key, keeping the position of an existing record.
// Returns true when the record was new.
func (t *Turn) upsert(rec AgentRecord) bool {
	stored := rec.clone()
	if _, ok := t.records[rec.Key]; ok {
		t.records[rec.Key] = &stored
		t.Version++
		return false
	}
	t.order = append(t.order, rec.Key)
	t.records[rec.Key] = &stored
	t.Version++
	return true
}

// Conversation is the ordered list of turns in the active chat.
type Conversation struct {
	ID    string
	Turns []*Turn
	// Version increases on every change anywhere in the conversation.
	Version uint64
}

// New creates an empty conversation.
func New() *Conversation {
	return &Conversation{ID: uuid.New().String()}
}

// AppendUser records a prompt and opens the system turn that will hold the
// backend's response to it. Returns the user turn.
func (c *Conversation) AppendUser(prompt string) *Turn {
	user := newTurn(TurnUser, prompt)
	c.Turns = append(c.Turns, user, newTurn(TurnSystem, ""))
	c.Version++
	return user
}

// appendSystem opens a system turn without a preceding prompt.
func (c *Conversation) appendSystem() *Turn {
	t := newTurn(TurnSystem, "")
	c.Turns = append(c.Turns, t)
	c.Version++
	return t
}

// Latest returns the last turn, or nil for an empty conversation.
func (c *Conversation) Latest() *Turn {
	if len(c.Turns) == 0 {
		return nil
	}
	return c.Turns[len(c.Turns)-1]
}

// PendingPrompt returns the latest user turn when its system turn has no
// records yet, i.e. the backend has not replied to it.
func (c *Conversation) PendingPrompt() (*Turn, bool) {
	n := len(c.Turns)
	if n < 2 {
		return nil, false
	}
	user, system := c.Turns[n-2], c.Turns[n-1]
	if user.Kind != TurnUser || system.Kind != TurnSystem || system.Len() > 0 {
		return nil, false
	}
	return user, true
}

// Reset clears every turn and starts a new conversation id.
func (c *Conversation) Reset() {
	c.ID = uuid.New().String()
	c.Turns = nil
	c.Version++
}

// Status is the turn-level UI state driven by the reconciler.
type Status struct {
	// Loading is true while the backend is working on the latest turn.
	Loading bool
	// AwaitingInput is true when the Human Input agent is waiting on the user.
	AwaitingInput bool
	// InputPrompt is the question shown with the input affordance.
	InputPrompt string
}
