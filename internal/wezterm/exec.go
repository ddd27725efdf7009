package wezterm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

func defaultExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- name is always "wezterm" and args come from this package.
	command := exec.CommandContext(ctx, name, args...)
	output, err := command.Output()
	if err != nil {
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, stderr)
	}
	return output, nil
}
