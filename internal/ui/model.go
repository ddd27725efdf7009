// Package ui renders the relay's state as a small text dashboard with one
// tab each for sessions, processed messages and recent injections.
package ui

import (
	"fmt"
	"strings"
)

const (
	tabSessions   = "Sessions"
	tabProcessed  = "Processed"
	tabInjections = "Injections"
)

type Model struct {
	tabs      []string
	activeTab int
	sections  map[string][]string
}

type Sections struct {
	Sessions   []string
	Processed  []string
	Injections []string
}

func NewModelFromSections(input Sections) Model {
	return Model{
		tabs:      []string{tabSessions, tabProcessed, tabInjections},
		activeTab: 0,
		sections: map[string][]string{
			tabSessions:   fallbackRows(input.Sessions, "no sessions registered"),
			tabProcessed:  fallbackRows(input.Processed, "no processed messages"),
			tabInjections: fallbackRows(input.Injections, "no injections recorded"),
		},
	}
}

func (m Model) NextTab() Model {
	if len(m.tabs) == 0 {
		return m
	}
	m.activeTab = (m.activeTab + 1) % len(m.tabs)
	return m
}

func (m Model) PrevTab() Model {
	if len(m.tabs) == 0 {
		return m
	}
	m.activeTab = (m.activeTab - 1 + len(m.tabs)) % len(m.tabs)
	return m
}

func (m Model) SelectTab(index int) Model {
	if index >= 0 && index < len(m.tabs) {
		m.activeTab = index
	}
	return m
}

// withActiveTab carries the selected tab over to a freshly loaded model.
func (m Model) withActiveTab(from Model) Model {
	return m.SelectTab(from.activeTab)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString("tprelay status\n")
	b.WriteString("keys: tab/shift+tab move | 1/2/3 or name jump | r or enter refresh | q quit\n\n")
	if len(m.tabs) == 0 {
		return b.String()
	}

	active := m.activeTab
	if active < 0 || active >= len(m.tabs) {
		active = 0
	}

	for i, tab := range m.tabs {
		if i == active {
			fmt.Fprintf(&b, "[ %s ] ", tab)
		} else {
			fmt.Fprintf(&b, "  %s   ", tab)
		}
	}
	b.WriteString("\n\n")

	for _, row := range m.sections[m.tabs[active]] {
		b.WriteString("- ")
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String()
}

func fallbackRows(rows []string, fallback string) []string {
	if len(rows) == 0 {
		return []string{fallback}
	}
	return rows
}
