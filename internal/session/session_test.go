// ABOUTME: Tests for the session state container
// ABOUTME: Drives raw frames through HandleFrame and checks snapshots and notifications

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/cortex-console/internal/conversation"
	"github.com/2389/cortex-console/internal/event"
	"github.com/2389/cortex-console/internal/metrics"
	"github.com/2389/cortex-console/internal/outputs"
)

func frame(t *testing.T, ev event.Event) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := New(Options{PreviewDelay: 10 * time.Millisecond, Metrics: metrics.New()})
	t.Cleanup(s.Close)
	return s
}

func TestSession_SubmitOpensTurns(t *testing.T) {
	s := newTestSession(t)

	turnID, err := s.Submit("write a haiku")
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Turns, 2)
	assert.Equal(t, turnID, snap.Turns[0].ID)
	assert.Equal(t, conversation.TurnUser, snap.Turns[0].Kind)
	assert.Equal(t, "write a haiku", snap.Turns[0].Prompt)
	assert.Equal(t, conversation.TurnSystem, snap.Turns[1].Kind)
	assert.True(t, snap.Status.Loading)

	key, prompt, ok := s.PendingPrompt()
	assert.True(t, ok)
	assert.Equal(t, turnID, key)
	assert.Equal(t, "write a haiku", prompt)
}

func TestSession_SubmitRejectsBlank(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Submit("   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Empty(t, s.Snapshot().Turns)
}

func TestSession_HandleFrameMergesAndPublishes(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Submit("compute")
	require.NoError(t, err)

	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentCoder, RecordID: "c1", Steps: []string{"thinking"},
	}))
	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentCoder, RecordID: "c1", Steps: []string{"thinking", "done"},
		Output: "42", StatusCode: 200,
	}))

	snap := s.Snapshot()
	records := snap.Turns[1].Records
	require.Len(t, records, 1)
	assert.Equal(t, "42", records[0].Output)
	assert.Equal(t, []string{"thinking", "done"}, records[0].Steps)
	require.Len(t, snap.Outputs, 1)
	assert.Equal(t, "c1", snap.Outputs[0].ID)
	assert.True(t, snap.Status.Loading, "only the orchestrator ends the turn")

	_, _, pending := s.PendingPrompt()
	assert.False(t, pending, "backend already answered")
}

func TestSession_OrchestratorEndsTurn(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Submit("compute")
	require.NoError(t, err)

	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentOrchestrator, RecordID: "o1", Output: "all done", StatusCode: 200,
	}))

	assert.False(t, s.Snapshot().Status.Loading)
}

func TestSession_MalformedFrameIsDropped(t *testing.T) {
	m := metrics.New()
	s := New(Options{Metrics: m})
	t.Cleanup(s.Close)
	_, err := s.Submit("compute")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		s.HandleFrame(context.Background(), []byte("not json at all"))
		s.HandleFrame(context.Background(), []byte(`{"steps":["no agent"]}`))
	})

	snap := s.Snapshot()
	require.Len(t, snap.Turns, 2)
	assert.Empty(t, snap.Turns[1].Records)

	expected := `
# HELP cortex_console_frames_malformed_total Frames dropped because they could not be decoded.
# TYPE cortex_console_frames_malformed_total counter
cortex_console_frames_malformed_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "cortex_console_frames_malformed_total"))
}

func TestSession_HumanInputRoundTrip(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Submit("book a flight")
	require.NoError(t, err)

	_, err = s.Answer("too early")
	assert.ErrorIs(t, err, ErrNotAwaitingInput)

	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentHumanInput, MessageID: "m1", Instructions: "Which airport?",
	}))

	snap := s.Snapshot()
	assert.True(t, snap.Status.AwaitingInput)
	assert.Equal(t, "Which airport?", snap.Status.InputPrompt)
	assert.False(t, snap.Status.Loading)

	key, err := s.Answer("SFO")
	require.NoError(t, err)
	assert.NotEmpty(t, key)

	snap = s.Snapshot()
	assert.False(t, snap.Status.AwaitingInput)
	assert.True(t, snap.Status.Loading)
}

func TestSession_ResearchTracker(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Submit("research quantum")
	require.NoError(t, err)

	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentResearch,
		RecordID:  "r1",
		Steps: []string{
			`{"type":"plan_created","tasks":[{"id":"t1","description":"survey"}]}`,
			`{"type":"task_started","task_id":"t1"}`,
		},
	}))
	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentResearch,
		RecordID:  "r1",
		Steps: []string{
			`{"type":"plan_created","tasks":[{"id":"t1","description":"survey"}]}`,
			`{"type":"task_started","task_id":"t1"}`,
			`{"type":"findings_discovered","findings":["qubits are fragile"]}`,
		},
	}))

	state, ok := s.Snapshot().Research["r1"]
	require.True(t, ok)
	require.Len(t, state.Tasks, 1)
	assert.True(t, state.Tasks[0].Current)
	assert.Equal(t, []string{"qubits are fragile"}, state.Findings)
}

func TestSession_IDLessUpdatesStayBounded(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Submit("research and browse")
	require.NoError(t, err)

	var steps []string
	for i := 0; i < 20; i++ {
		steps = append(steps, fmt.Sprintf(`{"type":"thought","content":"idea %d"}`, i))
		s.HandleFrame(context.Background(), frame(t, event.Event{
			AgentName: event.AgentResearch,
			Steps:     append([]string(nil), steps...),
		}))
	}
	for i := 0; i < 5; i++ {
		s.HandleFrame(context.Background(), frame(t, event.Event{
			AgentName: event.AgentWebSurfer,
			Steps:     []string{"Plan: look around", fmt.Sprintf("Current: page %d", i)},
		}))
	}

	snap := s.Snapshot()
	records := snap.Turns[1].Records
	require.Len(t, records, 2)
	assert.Equal(t, event.AgentResearch, records[0].AgentName)
	assert.Equal(t, []string{"Plan: look around", "Current: page 4"}, records[1].Steps)

	require.Len(t, snap.Research, 1)
	state := snap.Research[records[0].Key]
	assert.Len(t, state.Thoughts, 10)
	assert.Equal(t, "idea 19", state.Thoughts[len(state.Thoughts)-1])
}

func TestSession_DisconnectStopsLoading(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Submit("compute")
	require.NoError(t, err)

	s.HandleDisconnect(errors.New("socket closed"))

	assert.False(t, s.Snapshot().Status.Loading)
}

func TestSession_LiveURLAfterDelay(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Submit("browse")
	require.NoError(t, err)

	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentWebSurfer, RecordID: "w1", LiveURL: "https://live.example/1",
		Steps: []string{"Plan: open site", "Current: loading"},
	}))
	assert.Empty(t, s.Snapshot().LiveURL, "url waits for the delay")

	assert.Eventually(t, func() bool {
		return s.Snapshot().LiveURL == "https://live.example/1"
	}, time.Second, 5*time.Millisecond)

	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentCoder, RecordID: "c1", Steps: []string{"coding"},
	}))
	assert.Empty(t, s.Snapshot().LiveURL, "other agents close the preview")
}

func TestSession_NewChatResetsEverything(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Submit("compute")
	require.NoError(t, err)
	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentCoder, RecordID: "c1", Output: "42", StatusCode: 200,
	}))
	_, ok := s.Select(0)
	require.True(t, ok)

	oldID := s.Snapshot().ConversationID
	s.NewChat()

	snap := s.Snapshot()
	assert.NotEqual(t, oldID, snap.ConversationID)
	assert.Empty(t, snap.Turns)
	assert.Empty(t, snap.Outputs)
	assert.Equal(t, outputs.NoSelection, snap.Selected)
	assert.Equal(t, conversation.Status{}, snap.Status)

	// The old selection does not come back with the first new output.
	_, err = s.Submit("again")
	require.NoError(t, err)
	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentCoder, RecordID: "c2", Output: "43", StatusCode: 200,
	}))
	assert.Equal(t, outputs.NoSelection, s.Snapshot().Selected)
}

func TestSession_SelectionNavigation(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Submit("compute")
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		s.HandleFrame(context.Background(), frame(t, event.Event{
			AgentName: event.AgentCoder, RecordID: id, Output: "out " + id, StatusCode: 200,
		}))
	}

	tr, ok := s.Select(1)
	require.True(t, ok)
	assert.Equal(t, outputs.Transition{Exit: outputs.NoSelection, Enter: 1}, tr)

	_, ok = s.Next()
	require.True(t, ok)
	_, ok = s.Next()
	assert.False(t, ok, "no wrap past the last output")

	entry, ok := s.Snapshot().SelectedOutput()
	require.True(t, ok)
	assert.Equal(t, "c", entry.ID)

	assert.True(t, s.ClearSelection())
	assert.False(t, s.ClearSelection())
}

func TestSession_SubscribeFollowsNewChat(t *testing.T) {
	s := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	s.NewChat()
	_, err := s.Submit("hello")
	require.NoError(t, err)

	var reasons []conversation.ChangeReason
	timeout := time.After(time.Second)
	for len(reasons) < 2 {
		select {
		case c := <-ch:
			reasons = append(reasons, c.Reason)
		case <-timeout:
			t.Fatalf("got %v, want reset then turn", reasons)
		}
	}
	assert.Equal(t, []conversation.ChangeReason{conversation.ChangeReset, conversation.ChangeTurn}, reasons)
}

func TestSession_ClosedIgnoresFrames(t *testing.T) {
	s := New(Options{})
	_, err := s.Submit("compute")
	require.NoError(t, err)
	s.Close()

	s.HandleFrame(context.Background(), frame(t, event.Event{
		AgentName: event.AgentCoder, RecordID: "c1", Output: "42", StatusCode: 200,
	}))
	_, err = s.Submit("again")

	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, s.Snapshot().Outputs)
}
