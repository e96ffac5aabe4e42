// ABOUTME: Derived research progress state built from a stream of sub-events
// ABOUTME: Findings and thoughts are capped so a long research turn stays bounded

package research

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// MaxFindings is how many of the most recent findings are kept.
	MaxFindings = 10
	// MaxThoughts is how many of the most recent distinct thoughts are kept.
	MaxThoughts = 10
)

// TaskState is a plan task with its progress flags.
type TaskState struct {
	Task
	Completed bool
	Current   bool
}

// State is a point-in-time copy of a tracker.
type State struct {
	Tasks         []TaskState
	Sources       []Source
	Findings      []string
	Thoughts      []string
	CurrentAction string
}

// Tracker folds sub-events for one research invocation. It is not safe for
// concurrent use; the owning session serializes access.
type Tracker struct {
	tasks         []TaskState
	sources       []Source
	sourceSeen    map[string]bool
	findings      []string
	thoughts      *lru.Cache[string, struct{}]
	currentAction string

	// seen is how many steps of the record have been folded already.
	seen int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.reset()
	return t
}

func (t *Tracker) reset() {
	thoughts, err := lru.New[string, struct{}](MaxThoughts)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	t.tasks = nil
	t.sources = nil
	t.sourceSeen = make(map[string]bool)
	t.findings = nil
	t.thoughts = thoughts
	t.currentAction = ""
	t.seen = 0
}

// Feed folds the steps of the latest record update. Steps arrive cumulatively,
// so only the ones past the previous update are parsed. A shorter list than
// before means the record restarted and the tracker starts over.
func (t *Tracker) Feed(steps []string) int {
	if len(steps) < t.seen {
		t.reset()
	}
	fresh := steps[t.seen:]
	for _, step := range fresh {
		t.Apply(Parse(step))
	}
	t.seen = len(steps)
	return len(fresh)
}

// Apply folds one sub-event.
func (t *Tracker) Apply(ev SubEvent) {
	switch ev.Kind {
	case KindPlanCreated:
		t.tasks = make([]TaskState, 0, len(ev.Tasks))
		for _, task := range ev.Tasks {
			t.tasks = append(t.tasks, TaskState{Task: task})
		}
	case KindTaskStarted:
		i := t.taskIndex(ev.TaskID)
		if i < 0 {
			t.tasks = append(t.tasks, TaskState{Task: Task{ID: ev.TaskID, Description: ev.Description}})
			i = len(t.tasks) - 1
		}
		for j := range t.tasks {
			t.tasks[j].Current = j == i
		}
		t.currentAction = t.tasks[i].Description
	case KindTaskCompleted:
		if i := t.taskIndex(ev.TaskID); i >= 0 {
			t.tasks[i].Completed = true
			t.tasks[i].Current = false
		}
	case KindSearchCompleted, KindContentExtracted:
		for _, src := range ev.Sources {
			if src.URL == "" || t.sourceSeen[src.URL] {
				continue
			}
			t.sourceSeen[src.URL] = true
			t.sources = append(t.sources, src)
		}
	case KindFindingsDiscovered:
		t.findings = append(t.findings, ev.Findings...)
		if over := len(t.findings) - MaxFindings; over > 0 {
			t.findings = append([]string(nil), t.findings[over:]...)
		}
	case KindThought:
		if !t.thoughts.Contains(ev.Thought) {
			t.thoughts.Add(ev.Thought, struct{}{})
		}
	case KindRawText:
		if ev.Current {
			t.currentAction = ev.Text
		}
	}
}

func (t *Tracker) taskIndex(id string) int {
	if id == "" {
		return -1
	}
	for i, task := range t.tasks {
		if task.ID == id {
			return i
		}
	}
	return -1
}

// State returns a copy of the tracker's derived state.
func (t *Tracker) State() State {
	s := State{
		Tasks:         append([]TaskState(nil), t.tasks...),
		Sources:       append([]Source(nil), t.sources...),
		Findings:      append([]string(nil), t.findings...),
		Thoughts:      t.thoughts.Keys(),
		CurrentAction: t.currentAction,
	}
	return s
}
