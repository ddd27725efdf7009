package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"tprelay/internal/processed"
	"tprelay/internal/sessions"
)

func sampleModel() Model {
	return NewModelFromSections(Sections{
		Sessions:   []string{"XYZ789 tmux=claude-xyz commands=1/10 active expires 23 hours from now"},
		Injections: []string{"XYZ789 tmux:claude-xyz via tmux confirmations=none \"run the build\" 1 minute ago"},
	})
}

func TestModelRendersThreeTabs(t *testing.T) {
	view := sampleModel().View()
	for _, tab := range []string{"Sessions", "Processed", "Injections"} {
		if !strings.Contains(view, tab) {
			t.Fatalf("expected tab %q in view: %q", tab, view)
		}
	}
	if !strings.Contains(view, "XYZ789 tmux=claude-xyz") {
		t.Fatalf("expected session row in first tab: %q", view)
	}
}

func TestEmptySectionsShowFallback(t *testing.T) {
	view := sampleModel().SelectTab(1).View()
	if !strings.Contains(view, "no processed messages") {
		t.Fatalf("expected empty-state row: %q", view)
	}
}

func TestZeroValueModelDoesNotPanic(t *testing.T) {
	var model Model
	_ = model.NextTab()
	_ = model.PrevTab()
	if !strings.Contains(model.View(), "tprelay status") {
		t.Fatalf("expected header in zero-value view")
	}
}

func TestViewHandlesOutOfRangeActiveTab(t *testing.T) {
	model := sampleModel()
	model.activeTab = 999
	if !strings.Contains(model.View(), "[ Sessions ]") {
		t.Fatalf("expected fallback to first tab")
	}
}

func TestRunInteractiveSwitchesTabsRefreshesAndQuits(t *testing.T) {
	input := strings.NewReader("3\nr\nq\n")
	var output bytes.Buffer

	reloads := 0
	reload := func() (Model, error) {
		reloads++
		return NewModelFromSections(Sections{Injections: []string{"fresh row"}}), nil
	}

	if err := RunInteractive(sampleModel(), reload, input, &output); err != nil {
		t.Fatalf("RunInteractive failed: %v", err)
	}

	text := output.String()
	if reloads != 1 {
		t.Fatalf("expected one reload, got %d", reloads)
	}
	if !strings.Contains(text, "[ Injections ]") || !strings.Contains(text, "- fresh row") {
		t.Fatalf("expected refreshed injections tab in output: %q", text)
	}
}

func TestRunInteractiveReportsRefreshError(t *testing.T) {
	var output bytes.Buffer
	reload := func() (Model, error) { return Model{}, errors.New("database is locked") }

	if err := RunInteractive(sampleModel(), reload, strings.NewReader("r\nq\n"), &output); err != nil {
		t.Fatalf("RunInteractive failed: %v", err)
	}
	if !strings.Contains(output.String(), "refresh failed: database is locked") {
		t.Fatalf("expected refresh error in output: %q", output.String())
	}
}

func TestApplyPicksTabsByNameAndRefreshesOnBlankLine(t *testing.T) {
	reloads := 0
	reload := func() (Model, error) {
		reloads++
		return NewModelFromSections(Sections{Processed: []string{"uid:5:101 injected"}}), nil
	}

	model, notice, quit := apply(sampleModel(), reload, "proc")
	if quit || notice != "" || !strings.Contains(model.View(), "[ Processed ]") {
		t.Fatalf("expected processed tab selected by name, notice=%q", notice)
	}

	model, _, _ = apply(model, reload, "   ")
	if reloads != 1 {
		t.Fatalf("expected a blank line to refresh, got %d reloads", reloads)
	}
	if view := model.View(); !strings.Contains(view, "[ Processed ]") || !strings.Contains(view, "- uid:5:101 injected") {
		t.Fatalf("expected refreshed rows on the same tab: %q", view)
	}

	if _, notice, _ := apply(model, reload, "zzz"); notice != "unknown command: zzz" {
		t.Fatalf("unexpected notice: %q", notice)
	}
	if _, _, quit := apply(model, nil, "Q"); !quit {
		t.Fatalf("expected q to quit")
	}
	if same, notice, _ := apply(model, nil, "r"); notice != "" || same.View() != model.View() {
		t.Fatalf("expected refresh without a reloader to keep the model")
	}
}

func TestRows(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	sessionRows := SessionRows([]sessions.Session{{
		Token:        "ABC123",
		TmuxSession:  "work",
		CommandCount: 10,
		CommandLimit: 10,
		ExpiresAt:    now.Add(time.Hour),
	}}, now)
	if len(sessionRows) != 1 || !strings.Contains(sessionRows[0], "exhausted") {
		t.Fatalf("unexpected session rows: %v", sessionRows)
	}

	processedRows := ProcessedRows([]processed.Marker{{
		Key:         "uid:1:2",
		Token:       "ABC123",
		Outcome:     processed.OutcomeInjected,
		ProcessedAt: now.Add(-2 * time.Minute),
	}}, now)
	if len(processedRows) != 1 || !strings.Contains(processedRows[0], "outcome=injected 2 minutes ago") {
		t.Fatalf("unexpected processed rows: %v", processedRows)
	}

	injectionRows := InjectionRows([]sessions.Injection{{
		Token:    "ABC123",
		Target:   "tmux:work",
		Strategy: "tmux",
		Command:  strings.Repeat("x", 60),
	}}, now)
	if len(injectionRows) != 1 || !strings.Contains(injectionRows[0], "…") {
		t.Fatalf("expected long command to be shortened: %v", injectionRows)
	}
}
