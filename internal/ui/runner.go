package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Reloader re-reads relay state for the r command and for blank lines.
type Reloader func() (Model, error)

// RunInteractive renders the model and reads one command per line until
// q or end of input.
func RunInteractive(initial Model, reload Reloader, in io.Reader, out io.Writer) error {
	model := initial
	scanner := bufio.NewScanner(in)

	for {
		if _, err := fmt.Fprint(out, model.View(), "\ncommand> "); err != nil {
			return fmt.Errorf("write ui view: %w", err)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read ui command: %w", err)
			}
			return nil
		}

		next, notice, quit := apply(model, reload, scanner.Text())
		if quit {
			return nil
		}
		model = next
		if notice == "" {
			continue
		}
		if _, err := fmt.Fprintln(out, notice); err != nil {
			return fmt.Errorf("write ui notice: %w", err)
		}
	}
}

// apply runs one command line against the model. Tabs can be picked by
// number or by name prefix.
func apply(model Model, reload Reloader, line string) (Model, string, bool) {
	command := strings.ToLower(strings.TrimSpace(line))
	switch command {
	case "q", "quit", "exit":
		return model, "", true
	case "tab", "right", "l":
		return model.NextTab(), "", false
	case "backtab", "left", "h":
		return model.PrevTab(), "", false
	case "", "r", "refresh":
		if reload == nil {
			return model, "", false
		}
		fresh, err := reload()
		if err != nil {
			return model, fmt.Sprintf("refresh failed: %v", err), false
		}
		return fresh.withActiveTab(model), "", false
	}

	if len(command) == 1 && command[0] >= '1' && command[0] <= '9' {
		return model.SelectTab(int(command[0] - '1')), "", false
	}
	for i, tab := range model.tabs {
		if strings.HasPrefix(strings.ToLower(tab), command) {
			return model.SelectTab(i), "", false
		}
	}
	return model, "unknown command: " + command, false
}
