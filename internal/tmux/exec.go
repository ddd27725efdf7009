package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

func defaultExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- callers pass the fixed tmux binary and argument lists.
	command := exec.CommandContext(ctx, name, args...)
	output, err := command.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s %v failed: %w (%s)", name, args, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}
