package model

import (
	"fmt"
	"strings"
	"time"
)

// TraceLevel indicates the severity of a trace entry
type TraceLevel string

const (
	TraceInfo    TraceLevel = "info"
	TraceWarning TraceLevel = "warning"
)

// TraceEntry records one orchestration step
type TraceEntry struct {
	Step     string        `json:"step"`
	Duration time.Duration `json:"duration"`
	Summary  string        `json:"summary,omitempty"`
	Level    TraceLevel    `json:"level"`
}

// Trace is the append-only log of steps taken while processing one claim.
// It is owned by a single run and never shared between goroutines.
type Trace struct {
	entries []TraceEntry
}

// Append adds an informational entry
func (t *Trace) Append(step string, duration time.Duration, summary string) {
	t.entries = append(t.entries, TraceEntry{Step: step, Duration: duration, Summary: summary, Level: TraceInfo})
}

// AppendWarning adds a warning entry for a degraded or repaired step
func (t *Trace) AppendWarning(step string, duration time.Duration, summary string) {
	t.entries = append(t.entries, TraceEntry{Step: step, Duration: duration, Summary: summary, Level: TraceWarning})
}

// Entries returns a copy of the recorded entries in append order
func (t *Trace) Entries() []TraceEntry {
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of recorded entries
func (t *Trace) Len() int {
	return len(t.entries)
}

// Format renders the trace as indented human-readable lines
func (t *Trace) Format() string {
	var b strings.Builder
	for _, e := range t.entries {
		fmt.Fprintf(&b, "  [%s] %.2fs", e.Step, e.Duration.Seconds())
		if e.Level == TraceWarning {
			b.WriteString(" (warning)")
		}
		if e.Summary != "" {
			b.WriteString(" | " + e.Summary)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
