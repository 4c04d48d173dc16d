// Package ui renders commit messages and runs the interactive prompts
// (choice list, single-line input, multi-line editor, confirmation).
package ui

import (
	"fmt"
	"io"
	"strings"

	"commitmate/cli/internal/commitmsg"
)

// Console writes styled, non-interactive output.
type Console struct {
	Out    io.Writer
	styles Styles
}

// NewConsole returns a console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{Out: out, styles: NewStyles(NewRenderer(out))}
}

func (c *Console) s() Styles { return c.styles }

// Message renders msg in a box: subject first, then bullets.
func (c *Console) Message(msg commitmsg.Message) {
	st := c.s()
	lines := []string{st.Subject.Render(msg.Subject)}
	prefix := msg.Prefix
	if prefix == "" {
		prefix = "-"
	}
	for _, b := range msg.Bullets {
		lines = append(lines, st.Bullet.Render(prefix+" "+b))
	}
	fmt.Fprintln(c.Out, st.Box.Render(strings.Join(lines, "\n")))
}

// Reasons lists policy rejection reasons.
func (c *Console) Reasons(reasons []string) {
	st := c.s()
	for _, r := range reasons {
		fmt.Fprintln(c.Out, st.Warn.Render("  ✗ "+r))
	}
}

// Title prints a section heading.
func (c *Console) Title(s string) {
	fmt.Fprintln(c.Out, c.s().Title.Render(s))
}

// Info prints a dimmed line.
func (c *Console) Info(format string, args ...any) {
	fmt.Fprintln(c.Out, c.s().Dim.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintln(c.Out, c.s().Warn.Render(fmt.Sprintf(format, args...)))
}

// Success prints a success line.
func (c *Console) Success(format string, args ...any) {
	fmt.Fprintln(c.Out, c.s().Success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Row prints a label/value pair with the label padded to width.
func (c *Console) Row(label, value string, width int) {
	st := c.s()
	fmt.Fprintf(c.Out, "%s %s\n", st.Dim.Render(fmt.Sprintf("%-*s", width, label+":")), value)
}
