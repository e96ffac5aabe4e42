// ABOUTME: Parser for structured progress steps emitted by the research agent
// ABOUTME: Each step decodes into one SubEvent variant, with raw text as the fallback

package research

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Kind tags the variant held by a SubEvent.
type Kind int

const (
	KindRawText Kind = iota
	KindPlanCreated
	KindTaskStarted
	KindTaskCompleted
	KindSearchCompleted
	KindContentExtracted
	KindFindingsDiscovered
	KindThought
)

var kindNames = map[string]Kind{
	"plan_created":        KindPlanCreated,
	"task_started":        KindTaskStarted,
	"task_completed":      KindTaskCompleted,
	"search_completed":    KindSearchCompleted,
	"content_extracted":   KindContentExtracted,
	"findings_discovered": KindFindingsDiscovered,
	"thought":             KindThought,
}

func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "raw_text"
}

// Task is one entry of a research plan.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Source is a page the agent found or read.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// SubEvent is a decoded research step. Which fields are set depends on Kind.
type SubEvent struct {
	Kind Kind

	// KindPlanCreated
	Tasks []Task
	// KindTaskStarted, KindTaskCompleted
	TaskID      string
	Description string
	// KindSearchCompleted, KindContentExtracted
	Query   string
	Sources []Source
	// KindFindingsDiscovered
	Findings []string
	// KindThought
	Thought string

	// KindRawText
	Text    string
	Current bool
}

// wireSubEvent is the JSON shape of a structured step.
type wireSubEvent struct {
	Type        string   `json:"type"`
	Tasks       []Task   `json:"tasks"`
	TaskID      string   `json:"task_id"`
	Description string   `json:"description"`
	Query       string   `json:"query"`
	Results     []Source `json:"results"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Findings    []string `json:"findings"`
	Content     string   `json:"content"`
}

// Parse decodes one step. Steps that are not a recognizable structured
// sub-event never fail; they come back as KindRawText.
func Parse(step string) SubEvent {
	trimmed := strings.TrimSpace(step)
	if strings.HasPrefix(trimmed, "{") {
		if w, ok := decodeWire(trimmed); ok {
			if ev, ok := w.toSubEvent(); ok {
				return ev
			}
		}
	}
	return rawText(step)
}

func decodeWire(s string) (wireSubEvent, bool) {
	var w wireSubEvent
	if err := json.Unmarshal([]byte(s), &w); err == nil {
		return w, true
	}
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return wireSubEvent{}, false
	}
	w = wireSubEvent{}
	if err := json.Unmarshal([]byte(repaired), &w); err != nil {
		return wireSubEvent{}, false
	}
	return w, true
}

func (w wireSubEvent) toSubEvent() (SubEvent, bool) {
	kind, ok := kindNames[w.Type]
	if !ok {
		return SubEvent{}, false
	}

	ev := SubEvent{Kind: kind}
	switch kind {
	case KindPlanCreated:
		ev.Tasks = w.Tasks
	case KindTaskStarted, KindTaskCompleted:
		ev.TaskID = w.TaskID
		ev.Description = w.Description
	case KindSearchCompleted:
		ev.Query = w.Query
		ev.Sources = w.Results
	case KindContentExtracted:
		if w.URL != "" {
			ev.Sources = []Source{{URL: w.URL, Title: w.Title}}
		}
	case KindFindingsDiscovered:
		ev.Findings = w.Findings
	case KindThought:
		ev.Thought = w.Content
		if ev.Thought == "" {
			return SubEvent{}, false
		}
	}
	return ev, true
}

func rawText(step string) SubEvent {
	lower := strings.ToLower(step)
	return SubEvent{
		Kind:    KindRawText,
		Text:    step,
		Current: strings.Contains(lower, "working") || strings.Contains(lower, "processing"),
	}
}
