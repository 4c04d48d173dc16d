package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
)

// ErrCancelled is returned when the operator leaves a prompt with Esc or Ctrl+C.
var ErrCancelled = errors.New("input cancelled")

// Prompter runs one bubbletea program per prompt on In/Out.
type Prompter struct {
	In     io.Reader
	Out    io.Writer
	styles Styles
}

// NewPrompter returns a prompter reading keys from in and drawing on out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{In: in, Out: out, styles: NewStyles(NewRenderer(out))}
}

func (p *Prompter) run(m tea.Model) (tea.Model, error) {
	prog := tea.NewProgram(m, tea.WithInput(p.In), tea.WithOutput(p.Out))
	final, err := prog.Run()
	if err != nil {
		return nil, errors.Wrap(err, "run prompt")
	}
	return final, nil
}

// Choose shows options and returns the selected index.
func (p *Prompter) Choose(label string, options []string) (int, error) {
	final, err := p.run(newChooseModel(label, options, p.styles))
	if err != nil {
		return -1, err
	}
	m := final.(chooseModel)
	if m.cancelled {
		return -1, ErrCancelled
	}
	return m.chosen, nil
}

// Input reads one line, pre-filled with initial.
func (p *Prompter) Input(label, initial string) (string, error) {
	final, err := p.run(newInputModel(label, initial, p.styles))
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.input.Value(), nil
}

// Multiline opens an editor pre-filled with initial. Ctrl+D submits.
func (p *Prompter) Multiline(label, initial string) (string, error) {
	final, err := p.run(newMultilineModel(label, initial, p.styles))
	if err != nil {
		return "", err
	}
	m := final.(multilineModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.area.Value(), nil
}

// Confirm asks a yes/no question; Enter takes def.
func (p *Prompter) Confirm(label string, def bool) (bool, error) {
	final, err := p.run(newConfirmModel(label, def, p.styles))
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.cancelled {
		return false, ErrCancelled
	}
	return m.value, nil
}

type chooseModel struct {
	label     string
	options   []string
	cursor    int
	chosen    int
	done      bool
	cancelled bool
	styles    Styles
}

func newChooseModel(label string, options []string, st Styles) chooseModel {
	return chooseModel{label: label, options: options, chosen: -1, styles: st}
}

func (m chooseModel) Init() tea.Cmd { return nil }

func (m chooseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k", "shift+tab":
		if m.cursor > 0 {
			m.cursor--
		} else {
			m.cursor = len(m.options) - 1
		}
	case "down", "j", "tab":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		} else {
			m.cursor = 0
		}
	case "enter":
		if len(m.options) == 0 {
			return m, nil
		}
		m.chosen = m.cursor
		m.done = true
		return m, tea.Quit
	default:
		s := key.String()
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if i := int(s[0] - '1'); i < len(m.options) {
				m.cursor = i
				m.chosen = i
				m.done = true
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m chooseModel) View() string {
	if m.done {
		return m.styles.Dim.Render(m.label+" "+m.options[m.chosen]) + "\n"
	}
	if m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.label) + "\n")
	for i, opt := range m.options {
		line := fmt.Sprintf("%d. %s", i+1, opt)
		if i == m.cursor {
			b.WriteString(m.styles.Cursor.Render(Arrow(true)+line) + "\n")
			continue
		}
		b.WriteString(Arrow(false) + line + "\n")
	}
	b.WriteString(m.styles.Dim.Render("↑/↓ move • enter select • esc cancel") + "\n")
	return b.String()
}

type inputModel struct {
	label     string
	input     textinput.Model
	done      bool
	cancelled bool
	styles    Styles
}

func newInputModel(label, initial string, st Styles) inputModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200
	ti.Width = 72
	ti.SetValue(initial)
	ti.CursorEnd()
	ti.Focus()
	return inputModel{label: label, input: ti, styles: st}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return m.styles.Title.Render(m.label) + "\n" + m.input.View() + "\n" +
		m.styles.Dim.Render("enter confirm • esc cancel") + "\n"
}

type multilineModel struct {
	label     string
	area      textarea.Model
	done      bool
	cancelled bool
	styles    Styles
}

func newMultilineModel(label, initial string, st Styles) multilineModel {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetWidth(80)
	ta.SetHeight(6)
	ta.SetValue(initial)
	ta.Focus()
	return multilineModel{label: label, area: ta, styles: st}
}

func (m multilineModel) Init() tea.Cmd { return textarea.Blink }

func (m multilineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyCtrlD:
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.area, cmd = m.area.Update(msg)
	return m, cmd
}

func (m multilineModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return m.styles.Title.Render(m.label) + "\n" + m.area.View() + "\n" +
		m.styles.Dim.Render("one item per line • ctrl+d save • esc cancel") + "\n"
}

type confirmModel struct {
	label     string
	def       bool
	value     bool
	done      bool
	cancelled bool
	styles    Styles
}

func newConfirmModel(label string, def bool, st Styles) confirmModel {
	return confirmModel{label: label, def: def, styles: st}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "y":
		m.value, m.done = true, true
		return m, tea.Quit
	case "n":
		m.value, m.done = false, true
		return m, tea.Quit
	case "enter":
		m.value, m.done = m.def, true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	hint := "[y/N]"
	if m.def {
		hint = "[Y/n]"
	}
	return m.styles.Title.Render(m.label) + " " + m.styles.Dim.Render(hint) + "\n"
}
