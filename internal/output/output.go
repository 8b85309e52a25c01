// Package output renders invocation results for terminals and keeps the
// recent results shown in the output pane.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fentz26/toolbench/internal/models"
)

// DefaultCapacity is the number of results a Log keeps.
const DefaultCapacity = 50

// Entry is one result together with the time it arrived.
type Entry struct {
	Result models.InvokeResult
	At     time.Time
}

// Summary returns a one-line description of res, for example
// "✓ db_query · 12ms · 1.2 kB".
func Summary(res models.InvokeResult) string {
	mark := "✓"
	if !res.Success {
		mark = "✗"
	}
	parts := []string{mark + " " + res.ToolName}
	if res.ExecutionTime > 0 {
		parts = append(parts, res.ExecutionTime.Round(time.Millisecond).String())
	}
	if res.Success && res.Data != nil {
		parts = append(parts, humanize.Bytes(uint64(len(Body(res)))))
	}
	return strings.Join(parts, " · ")
}

// Body returns the payload of res: the error message on failure,
// otherwise the data, indented as JSON unless it is a plain string.
func Body(res models.InvokeResult) string {
	if !res.Success {
		return res.Error
	}
	switch v := res.Data.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Format renders res as a summary line followed by its body.
func Format(res models.InvokeResult) string {
	body := Body(res)
	if body == "" {
		return Summary(res)
	}
	return Summary(res) + "\n" + body
}

// Write prints res to w, as the raw JSON result when asJSON is set.
func Write(w io.Writer, res models.InvokeResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprintln(w, Format(res))
	return err
}

// Log is a bounded list of recent results. It follows the selection: while
// a tool is selected only that tool's results are visible.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	focus    string
	now      func() time.Time
}

// NewLog creates a Log keeping at most capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity, now: time.Now}
}

// Append adds res, dropping the oldest entry when full.
func (l *Log) Append(res models.InvokeResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Result: res, At: l.now()})
	if len(l.entries) > l.capacity {
		l.entries = append([]Entry(nil), l.entries[len(l.entries)-l.capacity:]...)
	}
}

// OnSelect focuses the log on tool, or on everything when tool is nil.
// It has the shape of a selection handler.
func (l *Log) OnSelect(tool *models.ParsedTool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tool == nil {
		l.focus = ""
		return
	}
	l.focus = tool.FullIdentifier
}

// Focus returns the identifier the log is focused on.
func (l *Log) Focus() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.focus
}

// Entries returns the visible entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if l.focus == "" || e.Result.ToolName == l.focus {
			out = append(out, e)
		}
	}
	return out
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Render formats the visible entries, newest last, each headed by its
// relative arrival time.
func (l *Log) Render() string {
	entries := l.Entries()
	if len(entries) == 0 {
		return "No results yet."
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", humanize.Time(e.At), Format(e.Result))
	}
	return b.String()
}
