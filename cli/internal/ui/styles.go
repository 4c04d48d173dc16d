package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	ColorCyan     = lipgloss.Color("#00FFFF")
	ColorGreen    = lipgloss.Color("#00FF00")
	ColorYellow   = lipgloss.Color("#FFFF00")
	ColorRed      = lipgloss.Color("#FF0000")
	ColorMagenta  = lipgloss.Color("#FF00FF")
	ColorWhite    = lipgloss.Color("#FFFFFF")
	ColorDarkGray = lipgloss.Color("8")
)

// Styles are the console styles bound to one output.
type Styles struct {
	Title   lipgloss.Style
	Subject lipgloss.Style
	Bullet  lipgloss.Style
	Dim     lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Cursor  lipgloss.Style
	Box     lipgloss.Style
}

// NewRenderer returns a lipgloss renderer for w. NO_COLOR forces plain output.
func NewRenderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}

// NewStyles builds the styles for r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Foreground(ColorCyan).Bold(true),
		Subject: r.NewStyle().Foreground(ColorWhite).Bold(true),
		Bullet:  r.NewStyle().Foreground(ColorWhite),
		Dim:     r.NewStyle().Foreground(ColorDarkGray),
		Warn:    r.NewStyle().Foreground(ColorYellow),
		Error:   r.NewStyle().Foreground(ColorRed).Bold(true),
		Success: r.NewStyle().Foreground(ColorGreen).Bold(true),
		Cursor:  r.NewStyle().Foreground(ColorMagenta).Bold(true),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDarkGray).
			Padding(0, 1),
	}
}

// Arrow returns an arrow indicator for selection
func Arrow(selected bool) string {
	if selected {
		return "▶ "
	}
	return "  "
}
