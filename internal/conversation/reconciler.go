// ABOUTME: Event reconciler folding streamed agent updates into the latest system turn
// ABOUTME: Also promotes finished outputs to the registry and drives the preview gate

package conversation

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/2389/cortex-console/internal/event"
	"github.com/2389/cortex-console/internal/outputs"
)

// OutputPublisher receives agent results that are ready for the detail panel.
type OutputPublisher interface {
	Publish(e outputs.Entry) (int, bool)
}

// PreviewGate holds the live browser preview URL.
type PreviewGate interface {
	Offer(url string) bool
	Clear()
	Current() string
}

// Outcome reports what a single Apply changed.
type Outcome struct {
	TurnID   string
	Key      string
	Position int
	// Created is true when the event opened a new agent record.
	Created bool
	// Changed is true when the turn was written back.
	Changed bool
	// Published is true when the event's output went to the registry.
	Published bool
	// Replaced is true when the published output replaced an earlier one.
	Replaced bool
	// TurnComplete is true when the top-level agent finished the turn.
	TurnComplete bool
	// AwaitingInput is true when the backend is waiting on the user.
	AwaitingInput bool
}

var recordEqual = cmp.Options{
	cmpopts.IgnoreFields(AgentRecord{}, "UpdatedAt"),
	cmpopts.EquateEmpty(),
}

// Reconciler merges events into a conversation. It holds no turn state of its
// own; callers pass the conversation and status to mutate and serialize calls.
type Reconciler struct {
	outputs OutputPublisher
	preview PreviewGate
	logger  *slog.Logger
}

// NewReconciler creates a reconciler publishing to out and gating previews
// through gate. Pass nil logger for default.
func NewReconciler(out OutputPublisher, gate PreviewGate, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		outputs: out,
		preview: gate,
		logger:  logger.With("component", "reconciler"),
	}
}

// Apply folds ev, received at arrival, into the latest system turn of conv.
// It never panics: a failure while merging is logged and the frame dropped.
func (r *Reconciler) Apply(conv *Conversation, status *Status, ev event.Event, arrival time.Time) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("dropping event after merge failure",
				"agent", ev.AgentName,
				"panic", p)
			out = Outcome{}
		}
	}()

	turn := conv.Latest()
	if turn == nil || turn.Kind != TurnSystem {
		r.logger.Warn("event without an open system turn, opening one", "agent", ev.AgentName)
		turn = conv.appendSystem()
	}
	status.Loading = true

	// The backend re-sends one cumulative update per agent call without an
	// id, so an id-less event continues that agent's latest record.
	key := ev.Identity(arrival)
	if !ev.HasIdentity() {
		if k, ok := turn.latestAnonymous(ev.AgentName); ok {
			key = k
		} else {
			r.logger.Debug("first id-less event for agent, using arrival identity", "agent", ev.AgentName, "key", key)
		}
	}
	prev, existed := turn.Get(key)

	next := AgentRecord{
		Key:          key,
		AgentName:    ev.AgentName,
		Instructions: ev.Instructions,
		Steps:        ev.Steps,
		Output:       ev.Output,
		StatusCode:   ev.StatusCode,
		LiveURL:      ev.LiveURL,
		RecordID:     ev.RecordID,
		SourceCode:   ev.SourceCode,
		Metadata:     ev.Metadata,
		UpdatedAt:    arrival,
	}
	if ev.IsWebSurfer() {
		next.Steps = browserSteps(prev.Steps, ev.Steps)
	}

	// Only the web surfer may hold the preview slot.
	if !ev.IsWebSurfer() {
		r.preview.Clear()
	} else if ev.LiveURL != "" && r.preview.Current() == "" {
		r.preview.Offer(ev.LiveURL)
	}

	out.TurnID = turn.ID
	out.Key = key

	if ev.Publishable() {
		_, replaced := r.outputs.Publish(outputs.Entry{
			ID:        key,
			AgentName: ev.AgentName,
			Output:    ev.Output,
			UpdatedAt: arrival,
		})
		out.Published = true
		out.Replaced = replaced
		if ev.IsOrchestrator() {
			status.Loading = false
			out.TurnComplete = true
		}
	} else if ev.IsOrchestrator() && ev.StatusCode >= 400 {
		// A failed top-level run also ends the turn.
		status.Loading = false
		out.TurnComplete = true
	}

	if ev.IsHumanInput() {
		if ev.Output != "" {
			status.Loading = true
			status.AwaitingInput = false
			status.InputPrompt = ""
		} else {
			status.AwaitingInput = true
			status.InputPrompt = ev.Instructions
			status.Loading = false
		}
	}
	out.AwaitingInput = status.AwaitingInput

	if existed && cmp.Equal(prev, next, recordEqual) {
		out.Position = turn.Position(key)
		return out
	}

	out.Created = turn.upsert(next)
	out.Changed = true
	out.Position = turn.Position(key)
	conv.Version++

	r.logger.Debug("agent record updated",
		"turn_id", turn.ID,
		"key", key,
		"agent", ev.AgentName,
		"status_code", ev.StatusCode,
		"created", out.Created)

	return out
}

// browserSteps keeps the web surfer's plan step and its current steps. The
// plan comes from this update when present, otherwise from the previous one;
// current steps only ever come from this update.
func browserSteps(prev, steps []string) []string {
	plan, ok := firstWithPrefix(steps, "Plan")
	if !ok {
		plan, ok = firstWithPrefix(prev, "Plan")
	}

	out := make([]string, 0, len(steps))
	if ok {
		out = append(out, plan)
	}
	for _, s := range steps {
		if strings.HasPrefix(s, "Current") {
			out = append(out, s)
		}
	}
	return out
}

func firstWithPrefix(steps []string, prefix string) (string, bool) {
	for _, s := range steps {
		if strings.HasPrefix(s, prefix) {
			return s, true
		}
	}
	return "", false
}
