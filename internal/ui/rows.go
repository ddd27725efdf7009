package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tprelay/internal/processed"
	"tprelay/internal/sessions"
)

func SessionRows(list []sessions.Session, now time.Time) []string {
	rows := make([]string, 0, len(list))
	for _, session := range list {
		state := "active"
		switch {
		case session.Expired(now):
			state = "expired"
		case session.Exhausted():
			state = "exhausted"
		}
		rows = append(rows, fmt.Sprintf("%s tmux=%s commands=%d/%d %s expires %s",
			session.Token,
			session.TmuxSession,
			session.CommandCount,
			session.CommandLimit,
			state,
			humanize.RelTime(session.ExpiresAt, now, "ago", "from now"),
		))
	}
	return rows
}

func ProcessedRows(markers []processed.Marker, now time.Time) []string {
	rows := make([]string, 0, len(markers))
	for _, marker := range markers {
		rows = append(rows, fmt.Sprintf("%s token=%s outcome=%s %s",
			marker.Key,
			marker.Token,
			marker.Outcome,
			humanize.RelTime(marker.ProcessedAt, now, "ago", "from now"),
		))
	}
	return rows
}

func InjectionRows(entries []sessions.Injection, now time.Time) []string {
	rows := make([]string, 0, len(entries))
	for _, entry := range entries {
		confirmations := "none"
		if len(entry.Confirmations) > 0 {
			confirmations = strings.Join(entry.Confirmations, ",")
		}
		rows = append(rows, fmt.Sprintf("%s %s via %s confirmations=%s %q %s",
			entry.Token,
			entry.Target,
			entry.Strategy,
			confirmations,
			preview(entry.Command, 48),
			humanize.RelTime(entry.InjectedAt, now, "ago", "from now"),
		))
	}
	return rows
}

func preview(command string, limit int) string {
	command = strings.Join(strings.Fields(command), " ")
	runes := []rune(command)
	if len(runes) <= limit {
		return command
	}
	return string(runes[:limit-1]) + "…"
}
