// Package progress follows the line-oriented output of a spawned process and
// reports checkpoint milestones and the dev-server ready signal.
package progress

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/jeanhaley32/reflexctl/internal/constants"
)

// EventKind distinguishes the events produced by a Monitor.
type EventKind int

const (
	// EventLine is emitted for every line read.
	EventLine EventKind = iota
	// EventMilestone is emitted when the next checkpoint is observed.
	EventMilestone
	// EventReady is emitted when the server-ready marker is observed.
	EventReady
)

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventMilestone:
		return "milestone"
	case EventReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Event is a single observation from the stream.
type Event struct {
	Kind EventKind

	// Line is the raw line and LineNo its 1-based position in the stream.
	Line   string
	LineNo int

	// Checkpoint, Index and Total are set on milestones. Index is 1-based.
	Checkpoint string
	Index      int
	Total      int

	// URL is set on ready events.
	URL string
}

// BuildCheckpoints are the phases of a static export build, in order.
var BuildCheckpoints = []string{
	"Linting and checking ",
	"Compiled successfully",
	"Route (pages)",
	"Collecting page data",
	"automatically rendered as static HTML",
	`Copying "static build" directory`,
	`Copying "public" directory`,
	"Finalizing page optimization",
	"Export successful",
}

// readyPattern matches the dev-server ready marker, with or without the dash
// some toolchain versions print after its first word.
var readyPattern = func() *regexp.Regexp {
	head, rest, _ := strings.Cut(constants.ReadyMarker, " ")
	return regexp.MustCompile(regexp.QuoteMeta(head) + `\s*(?:-\s*)?` + regexp.QuoteMeta(rest))
}()

// Monitor matches stream lines against an ordered checkpoint list.
type Monitor struct {
	checkpoints []string
}

// New creates a Monitor for the given ordered checkpoints. A nil list only
// reports lines and ready events.
func New(checkpoints []string) *Monitor {
	return &Monitor{checkpoints: append([]string(nil), checkpoints...)}
}

// state is the per-observation progress: checkpoints not yet seen and the
// running line counter.
type state struct {
	pending []string
	total   int
	lines   int
}

func (s *state) done() bool {
	return len(s.pending) == 0
}

// Observe reads r line by line on its own goroutine and emits events on the
// returned channel. The channel is closed when r is exhausted or ctx is
// cancelled. A stream that ends before every checkpoint was seen is not an
// error. After the last checkpoint the stream keeps being drained so the
// writer never blocks.
func (m *Monitor) Observe(ctx context.Context, r io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		st := &state{pending: append([]string(nil), m.checkpoints...), total: len(m.checkpoints)}
		emit := func(ev Event) bool {
			if ctx.Err() != nil {
				return false
			}
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			st.lines++

			if !emit(Event{Kind: EventLine, Line: line, LineNo: st.lines}) {
				return
			}

			if !st.done() && strings.Contains(line, st.pending[0]) {
				cp := st.pending[0]
				st.pending = st.pending[1:]
				ev := Event{
					Kind:       EventMilestone,
					Line:       line,
					LineNo:     st.lines,
					Checkpoint: cp,
					Index:      st.total - len(st.pending),
					Total:      st.total,
				}
				if !emit(ev) {
					return
				}
			}

			if url, ok := ReadyURL(line); ok {
				if !emit(Event{Kind: EventReady, Line: line, LineNo: st.lines, URL: url}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			// Keep the pipe flowing after an oversized line.
			_, _ = io.Copy(io.Discard, r)
		}
	}()

	return events
}

// ReadyURL reports whether line is the server-ready signal and extracts the
// launch URL from it: the text after "url: " when present, otherwise the last
// whitespace separated token.
func ReadyURL(line string) (string, bool) {
	if !readyPattern.MatchString(line) {
		return "", false
	}
	if i := strings.LastIndex(line, "url: "); i >= 0 {
		return strings.TrimSpace(line[i+len("url: "):]), true
	}
	fields := strings.Fields(line)
	return fields[len(fields)-1], true
}

// Tail keeps the last n lines seen.
type Tail struct {
	n     int
	lines []string
}

// NewTail creates a Tail holding at most n lines.
func NewTail(n int) *Tail {
	return &Tail{n: n}
}

// Add records a line, dropping the oldest once full.
func (t *Tail) Add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

// Lines returns the retained lines, oldest first.
func (t *Tail) Lines() []string {
	return append([]string(nil), t.lines...)
}
