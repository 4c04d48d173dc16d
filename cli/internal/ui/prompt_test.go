package ui

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"commitmate/cli/internal/commitmsg"
)

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func send(m tea.Model, msgs ...tea.Msg) tea.Model {
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

func TestChooseModel(t *testing.T) {
	t.Parallel()
	opts := []string{"Accept", "Edit", "Regenerate"}
	tests := []struct {
		name       string
		msgs       []tea.Msg
		wantChosen int
		wantCancel bool
	}{
		{"enter selects first", []tea.Msg{key(tea.KeyEnter)}, 0, false},
		{"down twice", []tea.Msg{key(tea.KeyDown), keys("j"), key(tea.KeyEnter)}, 2, false},
		{"up wraps", []tea.Msg{key(tea.KeyUp), key(tea.KeyEnter)}, 2, false},
		{"digit picks", []tea.Msg{keys("2")}, 1, false},
		{"digit out of range ignored", []tea.Msg{keys("7"), key(tea.KeyEnter)}, 0, false},
		{"esc cancels", []tea.Msg{key(tea.KeyEsc)}, -1, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := send(newChooseModel("Next?", opts, Styles{}), tt.msgs...).(chooseModel)
			if m.chosen != tt.wantChosen || m.cancelled != tt.wantCancel {
				t.Errorf("chosen=%d cancelled=%v, want %d %v", m.chosen, m.cancelled, tt.wantChosen, tt.wantCancel)
			}
		})
	}
}

func TestChooseModel_viewMarksCursor(t *testing.T) {
	t.Parallel()
	m := send(newChooseModel("Next?", []string{"a", "b"}, Styles{}), key(tea.KeyDown)).(chooseModel)
	view := m.View()
	if !strings.Contains(view, "▶ 2. b") || !strings.Contains(view, "  1. a") {
		t.Errorf("View = %q", view)
	}
}

func TestInputModel(t *testing.T) {
	t.Parallel()
	m := send(newInputModel("Subject", "feat: add", Styles{}),
		keys(" login"), key(tea.KeyEnter)).(inputModel)
	if !m.done || m.input.Value() != "feat: add login" {
		t.Errorf("done=%v value=%q", m.done, m.input.Value())
	}

	m = send(newInputModel("Subject", "x", Styles{}), key(tea.KeyEsc)).(inputModel)
	if !m.cancelled {
		t.Error("esc did not cancel")
	}
}

func TestMultilineModel(t *testing.T) {
	t.Parallel()
	m := send(newMultilineModel("Bullets", "", Styles{}),
		keys("first"), key(tea.KeyEnter), keys("second"), key(tea.KeyCtrlD)).(multilineModel)
	if !m.done {
		t.Fatal("ctrl+d did not submit")
	}
	if got := m.area.Value(); got != "first\nsecond" {
		t.Errorf("value = %q", got)
	}
}

func TestConfirmModel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		def        bool
		msg        tea.Msg
		want       bool
		wantCancel bool
	}{
		{"y", false, keys("y"), true, false},
		{"upper Y", false, keys("Y"), true, false},
		{"n", true, keys("n"), false, false},
		{"enter takes default true", true, key(tea.KeyEnter), true, false},
		{"enter takes default false", false, key(tea.KeyEnter), false, false},
		{"ctrl+c", true, key(tea.KeyCtrlC), false, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := send(newConfirmModel("Abort?", tt.def, Styles{}), tt.msg).(confirmModel)
			if m.value != tt.want || m.cancelled != tt.wantCancel {
				t.Errorf("value=%v cancelled=%v, want %v %v", m.value, m.cancelled, tt.want, tt.wantCancel)
			}
		})
	}
}

func TestConfirmModel_ignoresOtherKeys(t *testing.T) {
	t.Parallel()
	m := send(newConfirmModel("Abort?", false, Styles{}), keys("x")).(confirmModel)
	if m.done || m.cancelled {
		t.Errorf("unexpected state: %+v", m)
	}
	if !strings.Contains(m.View(), "[y/N]") {
		t.Errorf("View = %q", m.View())
	}
}

func TestConsole_message(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Message(commitmsg.Message{Subject: "feat(ui): add button", Bullets: []string{"render label"}, Prefix: "*"})
	c.Reasons([]string{"description required"})
	out := buf.String()
	for _, want := range []string{"feat(ui): add button", "* render label", "✗ description required"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("NO_COLOR output has escapes: %q", out)
	}
}
