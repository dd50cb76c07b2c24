package shared

import (
	"github.com/charmbracelet/lipgloss"
)

// CLI style colors using lipgloss
var (
	// StatusOK styles success indicators
	StatusOK = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // green

	// StatusWarn styles warning indicators
	StatusWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	// StatusError styles error indicators
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	// StatusInfo styles informational text
	StatusInfo = lipgloss.NewStyle().Foreground(lipgloss.Color("39")) // blue

	// Muted styles secondary/less important text
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray

	// Header styles section headers
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")) // blue bold
)

// Symbols for status indicators
const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
	SymbolInfo  = "•"
)

// Printer renders status lines, styled only when writing to a terminal.
type Printer struct {
	Styled bool
}

func (p Printer) render(style lipgloss.Style, s string) string {
	if !p.Styled {
		return s
	}
	return style.Render(s)
}

// OK renders a success message with a checkmark.
func (p Printer) OK(msg string) string {
	return p.render(StatusOK, SymbolOK) + " " + msg
}

// Warn renders a warning message.
func (p Printer) Warn(msg string) string {
	return p.render(StatusWarn, SymbolWarn) + " " + msg
}

// Error renders an error message.
func (p Printer) Error(msg string) string {
	return p.render(StatusError, SymbolError) + " " + msg
}

// Info renders a bullet line.
func (p Printer) Info(msg string) string {
	return p.render(StatusInfo, SymbolInfo) + " " + msg
}

// Status renders a label like [OK] or [FAIL].
func (p Printer) Status(ok bool, label string) string {
	if ok {
		return p.render(StatusOK, "["+label+"]")
	}
	return p.render(StatusError, "["+label+"]")
}

// Heading renders a section header.
func (p Printer) Heading(s string) string {
	return p.render(Header, s)
}

// Dim renders secondary text.
func (p Printer) Dim(s string) string {
	return p.render(Muted, s)
}
