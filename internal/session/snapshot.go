// ABOUTME: Read-only copies of session state for rendering
// ABOUTME: Snapshots never alias the session's internal slices or maps

package session

import (
	"github.com/2389/cortex-console/internal/conversation"
	"github.com/2389/cortex-console/internal/outputs"
	"github.com/2389/cortex-console/internal/research"
)

// TurnView is one turn as a renderer sees it.
type TurnView struct {
	ID      string
	Kind    conversation.TurnKind
	Prompt  string
	Records []conversation.AgentRecord
}

// Snapshot is a consistent copy of everything a chat view draws.
type Snapshot struct {
	ConversationID string
	Version        uint64
	Turns          []TurnView
	Status         conversation.Status
	Outputs        []outputs.Entry
	// Selected is the index of the output open in the detail panel, or
	// outputs.NoSelection.
	Selected int
	LiveURL  string
	// Research is keyed by the Deep Research Agent record key.
	Research map[string]research.State
}

// SelectedOutput returns the entry open in the detail panel.
func (s Snapshot) SelectedOutput() (outputs.Entry, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Outputs) {
		return outputs.Entry{}, false
	}
	return s.Outputs[s.Selected], true
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ConversationID: s.conv.ID,
		Version:        s.version.Load(),
		Turns:          make([]TurnView, 0, len(s.conv.Turns)),
		Status:         s.status,
		Outputs:        s.registry.Entries(),
		Selected:       s.selector.Current(),
		LiveURL:        s.gate.Current(),
		Research:       make(map[string]research.State, len(s.research)),
	}
	for _, t := range s.conv.Turns {
		snap.Turns = append(snap.Turns, TurnView{
			ID:      t.ID,
			Kind:    t.Kind,
			Prompt:  t.Prompt,
			Records: t.Records(),
		})
	}
	for key, tracker := range s.research {
		snap.Research[key] = tracker.State()
	}
	return snap
}
