package extract

import (
	"fmt"
	"regexp"
)

type denyRule struct {
	name    string
	pattern *regexp.Regexp
}

// The deny-list is advisory. It catches obvious accidents in a reply, it
// is not a sandbox.
var denyRules = []denyRule{
	{"recursive delete", regexp.MustCompile(`\brm\s+(?:-{1,2}[\w-]+\s+)*(?:-[a-zA-Z]*[rR]|--recursive\b)`)},
	{"privilege escalation", regexp.MustCompile(`(?:^|[\s;&|(])(?:sudo|doas|su)\s`)},
	{"filesystem format", regexp.MustCompile(`\bmkfs(?:\.\w+)?\b`)},
	{"raw device write", regexp.MustCompile(`\bdd\s+.*\bof=/dev/`)},
	{"destructive redirection", regexp.MustCompile(`>\s*/dev/(?:sd|hd|nvme|disk|xvd)\w*`)},
	{"world-writable root", regexp.MustCompile(`\bchmod\s+-R\s+0?777\s+/`)},
	{"fork bomb", regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`)},
	{"download piped to shell", regexp.MustCompile(`\b(?:curl|wget)\b[^|\n]*\|\s*(?:sudo\s+)?(?:ba|z|da|k)?sh\b`)},
}

// CheckSafety reports ErrUnsafeCommand when command matches the deny-list.
func CheckSafety(command string) error {
	for _, rule := range denyRules {
		if rule.pattern.MatchString(command) {
			return fmt.Errorf("%w: %s", ErrUnsafeCommand, rule.name)
		}
	}
	return nil
}
