// Package trace writes step-by-step pipeline output when --trace is set: the
// remote prompt with its token estimate, the raw model response, and every
// candidate of every attempt with its policy verdict. A Tracer with a nil
// writer, or a nil *Tracer, discards everything.
package trace

import (
	"fmt"
	"io"
	"strings"
)

// Tracer writes sectioned trace output.
type Tracer struct {
	w io.Writer
}

// New returns a Tracer that writes to w.
func New(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// Enabled reports whether output is written anywhere.
func (t *Tracer) Enabled() bool {
	return t != nil && t.w != nil
}

// Attempt opens the section for one orchestrator attempt (1-based).
func (t *Tracer) Attempt(n int) {
	t.section(fmt.Sprintf("Attempt %d", n))
}

// Candidate writes a normalized candidate message and its verdict. Reasons
// are printed on the verdict line, separated by "; ".
func (t *Tracer) Candidate(message string, valid bool, reasons []string) {
	if !t.Enabled() {
		return
	}
	verdict := "valid"
	if !valid {
		verdict = "rejected"
	}
	fmt.Fprintf(t.w, "%s\n  %s", strings.TrimRight(message, "\n"), verdict)
	if len(reasons) > 0 {
		fmt.Fprintf(t.w, ": %s", strings.Join(reasons, "; "))
	}
	fmt.Fprintln(t.w)
}

// Prompt writes the user prompt sent to a remote model and its estimated
// token count.
func (t *Tracer) Prompt(text string, estimate int) {
	t.block("Remote prompt", text)
	if t.Enabled() {
		fmt.Fprintf(t.w, "Estimated prompt tokens: %d\n", estimate)
	}
}

// Response writes the raw content a remote model returned.
func (t *Tracer) Response(content string) {
	t.block("Remote response", content)
}

func (t *Tracer) section(name string) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, "\n[commitmate:trace] === %s ===\n", name)
}

func (t *Tracer) block(name, text string) {
	if !t.Enabled() {
		return
	}
	t.section(name)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	fmt.Fprint(t.w, text)
}
