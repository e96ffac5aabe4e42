// ABOUTME: Wire format for agent updates streamed by the cortex_on backend
// ABOUTME: One JSON object per WebSocket text frame, decoded with a single repair pass

package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// ErrMalformed is returned when a frame cannot be decoded into an Event,
// even after a repair attempt.
var ErrMalformed = errors.New("malformed event")

// Agent names emitted by the backend.
const (
	AgentOrchestrator = "Orchestrator"
	AgentPlanner      = "Planner Agent"
	AgentCoder        = "Coder Agent"
	AgentWebSurfer    = "Web Surfer"
	AgentHumanInput   = "Human Input"
	AgentResearch     = "Deep Research Agent"
)

// StatusOK is the status_code an agent reports once its output is final.
const StatusOK = 200

// Event is one agent update. Every frame is interpreted as an update to the
// latest system turn.
type Event struct {
	AgentName    string         `json:"agent_name"`
	Instructions string         `json:"instructions"`
	Steps        []string       `json:"steps"`
	Output       string         `json:"output"`
	StatusCode   int            `json:"status_code"`
	LiveURL      string         `json:"live_url,omitempty"`
	RecordID     string         `json:"record_id,omitempty"`
	MessageID    string         `json:"message_id,omitempty"`
	SourceCode   string         `json:"source_code,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Decode parses a single frame. Frames that fail strict decoding get one
// pass through jsonrepair before being rejected.
func Decode(data []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(data, &ev)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		ev = Event{}
		if err := json.Unmarshal([]byte(repaired), &ev); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if ev.AgentName == "" {
		return Event{}, fmt.Errorf("%w: missing agent_name", ErrMalformed)
	}
	if ev.Steps == nil {
		ev.Steps = []string{}
	}
	return ev, nil
}

// Identity returns the key of the agent invocation this event belongs to.
// record_id is authoritative; message_id is what the Human Input agent
// stamps. Without either, a key is synthesized from the agent name and the
// arrival time; the reconciler uses it only for an agent's first id-less
// record in a turn and folds later id-less updates into that record.
func (e Event) Identity(arrival time.Time) string {
	if e.RecordID != "" {
		return e.RecordID
	}
	if e.MessageID != "" {
		return e.MessageID
	}
	return e.AgentName + "@" + strconv.FormatInt(arrival.UnixNano(), 10)
}

// HasIdentity reports whether the backend supplied an id for this event.
func (e Event) HasIdentity() bool {
	return e.RecordID != "" || e.MessageID != ""
}

// IsWebSurfer reports whether the event comes from the web-browsing agent.
func (e Event) IsWebSurfer() bool { return e.AgentName == AgentWebSurfer }

// IsHumanInput reports whether the event asks the user for input.
func (e Event) IsHumanInput() bool { return e.AgentName == AgentHumanInput }

// IsOrchestrator reports whether the event comes from the top-level agent.
func (e Event) IsOrchestrator() bool { return e.AgentName == AgentOrchestrator }

// IsResearch reports whether the event carries structured research steps.
func (e Event) IsResearch() bool { return e.AgentName == AgentResearch }

// Publishable reports whether the event's output belongs in the output
// registry: a final (200) non-empty output from any agent other than the web
// surfer or human input.
func (e Event) Publishable() bool {
	return e.Output != "" &&
		!e.IsWebSurfer() &&
		!e.IsHumanInput() &&
		e.StatusCode == StatusOK
}
