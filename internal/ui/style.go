package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Палитра монитора: циан для акцента, зелёный и красный для направления
// сделки.
var (
	colorCyan    = lipgloss.Color("#00E5FF")
	colorGreen   = lipgloss.Color("#2AFFAA")
	colorRed     = lipgloss.Color("#FF5555")
	colorYellow  = lipgloss.Color("#FFB500")
	colorText    = lipgloss.Color("#ECEFF4")
	colorMuted   = lipgloss.Color("#6C7280")
	colorSurface = lipgloss.Color("#262831")
)

// Styles собирает готовые lipgloss-стили монитора в одном месте.
type Styles struct {
	Title   lipgloss.Style
	Status  lipgloss.Style
	Buy     lipgloss.Style
	Sell    lipgloss.Style
	Warn    lipgloss.Style
	Waiting lipgloss.Style
	Help    lipgloss.Style
	Frame   lipgloss.Style
	Table   table.Styles
}

func DefaultStyles() Styles {
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(colorCyan)
	ts.Selected = ts.Selected.
		Foreground(colorText).
		Background(colorSurface).
		Bold(false)

	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorCyan),
		Status:  lipgloss.NewStyle().Foreground(colorMuted),
		Buy:     lipgloss.NewStyle().Foreground(colorGreen),
		Sell:    lipgloss.NewStyle().Foreground(colorRed),
		Warn:    lipgloss.NewStyle().Foreground(colorYellow),
		Waiting: lipgloss.NewStyle().Foreground(colorYellow),
		Help:    lipgloss.NewStyle().Foreground(colorMuted),
		Frame:   lipgloss.NewStyle().Padding(0, 1),
		Table:   ts,
	}
}
