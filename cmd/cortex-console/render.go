// ABOUTME: Terminal rendering of session snapshots for the chat command
// ABOUTME: Prints only what changed since the last snapshot: new steps, outputs, status and preview

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/2389/cortex-console/internal/conversation"
	"github.com/2389/cortex-console/internal/event"
	"github.com/2389/cortex-console/internal/outputs"
	"github.com/2389/cortex-console/internal/research"
	"github.com/2389/cortex-console/internal/session"
)

const wrapWidth = 100

var (
	dim     = color.New(color.FgHiBlack)
	warn    = color.New(color.FgYellow)
	bad     = color.New(color.FgRed)
	heading = color.New(color.FgCyan, color.Bold)
)

// agentColor gives each backend agent a stable color.
func agentColor(name string) *color.Color {
	switch name {
	case event.AgentOrchestrator:
		return color.New(color.FgMagenta, color.Bold)
	case event.AgentPlanner:
		return color.New(color.FgBlue)
	case event.AgentCoder:
		return color.New(color.FgGreen)
	case event.AgentWebSurfer:
		return color.New(color.FgCyan)
	case event.AgentHumanInput:
		return color.New(color.FgYellow)
	case event.AgentResearch:
		return color.New(color.FgHiBlue)
	default:
		return color.New(color.FgWhite)
	}
}

// printer turns a stream of snapshots into incremental terminal output. It
// remembers what it already printed per conversation.
type printer struct {
	mu  sync.Mutex
	out io.Writer
	md  *glamour.TermRenderer

	convID   string
	steps    map[string]int
	outputs  map[string]string
	findings map[string]bool
	actions  map[string]string
	status   conversation.Status
	liveURL  string
}

// newPrinter creates a printer. With markdown false, outputs print as-is.
func newPrinter(out io.Writer, markdown bool) *printer {
	p := &printer{out: out}
	if markdown {
		// Falls back to plain text when the renderer can't be built.
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrapWidth)); err == nil {
			p.md = r
		}
	}
	p.reset("")
	return p
}

func (p *printer) reset(convID string) {
	p.convID = convID
	p.steps = make(map[string]int)
	p.outputs = make(map[string]string)
	p.findings = make(map[string]bool)
	p.actions = make(map[string]string)
	p.status = conversation.Status{}
	p.liveURL = ""
}

// follow renders every change until ctx ends.
func (p *printer) follow(ctx context.Context, sess *session.Session) {
	changes := sess.Subscribe(ctx)
	for range changes {
		p.render(sess.Snapshot())
	}
}

// render prints whatever is new in snap.
func (p *printer) render(snap session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.ConversationID != p.convID {
		if p.convID != "" {
			heading.Fprintln(p.out, "-- new chat --")
		}
		p.reset(snap.ConversationID)
	}

	for _, turn := range snap.Turns {
		if turn.Kind != conversation.TurnSystem {
			continue
		}
		for _, rec := range turn.Records {
			if rec.AgentName == event.AgentResearch {
				p.renderResearch(rec, snap.Research[rec.Key])
				continue
			}
			p.renderSteps(rec)
		}
	}

	for i, entry := range snap.Outputs {
		if p.outputs[entry.ID] == entry.Output {
			continue
		}
		p.outputs[entry.ID] = entry.Output
		p.renderOutput(i, entry)
	}

	if snap.LiveURL != p.liveURL {
		if snap.LiveURL == "" {
			dim.Fprintln(p.out, "live preview closed")
		} else {
			warn.Fprintf(p.out, "live preview: %s\n", snap.LiveURL)
		}
		p.liveURL = snap.LiveURL
	}

	p.renderStatus(snap.Status)
}

func (p *printer) renderSteps(rec conversation.AgentRecord) {
	printed, seen := p.steps[rec.Key]
	if !seen && rec.Instructions != "" && rec.AgentName != event.AgentHumanInput {
		agentColor(rec.AgentName).Fprintf(p.out, "%s: ", rec.AgentName)
		fmt.Fprintln(p.out, rec.Instructions)
	}

	// Web surfer steps are replaced rather than appended, so the list may
	// shrink; show the newest step when it does.
	if len(rec.Steps) < printed {
		printed = len(rec.Steps) - 1
		if printed < 0 {
			printed = 0
		}
	}
	for _, step := range rec.Steps[printed:] {
		agentColor(rec.AgentName).Fprintf(p.out, "  %s ", rec.AgentName)
		dim.Fprintln(p.out, step)
	}
	p.steps[rec.Key] = len(rec.Steps)

	if rec.StatusCode >= 400 && !seen {
		bad.Fprintf(p.out, "%s failed with status %d\n", rec.AgentName, rec.StatusCode)
	}
}

func (p *printer) renderResearch(rec conversation.AgentRecord, state research.State) {
	if state.CurrentAction != "" && p.actions[rec.Key] != state.CurrentAction {
		p.actions[rec.Key] = state.CurrentAction
		agentColor(rec.AgentName).Fprintf(p.out, "  %s ", rec.AgentName)
		dim.Fprintln(p.out, state.CurrentAction)
	}
	for _, f := range state.Findings {
		if p.findings[f] {
			continue
		}
		p.findings[f] = true
		fmt.Fprintf(p.out, "  * %s\n", f)
	}
}

func (p *printer) renderOutput(index int, entry outputs.Entry) {
	agentColor(entry.AgentName).Fprintf(p.out, "[%d] %s output\n", index+1, entry.AgentName)
	fmt.Fprintln(p.out, p.markdown(entry.Output))
}

func (p *printer) renderStatus(st conversation.Status) {
	prev := p.status
	p.status = st

	if st.AwaitingInput && (!prev.AwaitingInput || st.InputPrompt != prev.InputPrompt) {
		warn.Fprintf(p.out, "? %s\n", st.InputPrompt)
	}
	if prev.Loading && !st.Loading && !st.AwaitingInput {
		dim.Fprintln(p.out, "done")
	}
}

func (p *printer) markdown(s string) string {
	if p.md == nil {
		return s
	}
	rendered, err := p.md.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(rendered, "\n")
}

// println prints a line from the input loop without tearing rendered output.
func (p *printer) println(c *color.Color, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c == nil {
		fmt.Fprintf(p.out, format+"\n", args...)
		return
	}
	c.Fprintf(p.out, format+"\n", args...)
}

// showOutput prints one output in full.
func (p *printer) showOutput(index int, entry outputs.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderOutput(index, entry)
}

// listOutputs prints a one-line summary per output, marking the selection.
func (p *printer) listOutputs(snap session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(snap.Outputs) == 0 {
		dim.Fprintln(p.out, "no outputs yet")
		return
	}
	for i, entry := range snap.Outputs {
		marker := " "
		if i == snap.Selected {
			marker = ">"
		}
		fmt.Fprintf(p.out, "%s [%d] %-20s %s\n", marker, i+1, entry.AgentName, summarize(entry.Output, 60))
	}
}

// showResearch prints every research tracker's plan, sources and thoughts.
func (p *printer) showResearch(snap session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(snap.Research) == 0 {
		dim.Fprintln(p.out, "no research in this chat")
		return
	}
	for key, st := range snap.Research {
		heading.Fprintf(p.out, "research %s\n", key)
		for _, task := range st.Tasks {
			mark := "[ ]"
			switch {
			case task.Completed:
				mark = "[x]"
			case task.Current:
				mark = "[>]"
			}
			fmt.Fprintf(p.out, "  %s %s\n", mark, task.Description)
		}
		for _, src := range st.Sources {
			dim.Fprintf(p.out, "  source: %s %s\n", src.Title, src.URL)
		}
		for _, th := range st.Thoughts {
			dim.Fprintf(p.out, "  thought: %s\n", th)
		}
	}
}

// summarize returns the first line of s, cut to max runes.
func summarize(s string, max int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	r := []rune(line)
	if len(r) <= max {
		return line
	}
	return string(r[:max-3]) + "..."
}
