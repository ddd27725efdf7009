package inject

import (
	"regexp"
	"strings"
)

// Prompt is what the target program appears to be waiting for, judged from
// the tail of its visible output.
type Prompt int

const (
	Unrecognized Prompt = iota
	ProceedMultiOption
	ProceedSingleOption
	YesNo
	PressEnter
	InProgress
	Settled
	ErrorSeen
)

func (p Prompt) String() string {
	switch p {
	case ProceedMultiOption:
		return "proceed-multi-option"
	case ProceedSingleOption:
		return "proceed-single-option"
	case YesNo:
		return "yes-no"
	case PressEnter:
		return "press-enter"
	case InProgress:
		return "in-progress"
	case Settled:
		return "settled"
	case ErrorSeen:
		return "error"
	default:
		return "unrecognized"
	}
}

// Screen is a classified capture. Option holds the menu number to press
// for ProceedMultiOption.
type Screen struct {
	Prompt Prompt
	Option string
}

const tailLines = 15

var (
	proceedPattern    = regexp.MustCompile(`(?i)proceed\s*\?|do you want to|would you like to`)
	optionPattern     = regexp.MustCompile(`(?:^|[^\w.])(\d)\s*[.)]\s*`)
	dontAskPattern    = regexp.MustCompile(`(?i)don['’]?t[\s-]*ask|do not ask|always allow|allow all|during this session`)
	yesNoPattern      = regexp.MustCompile(`(?i)[(\[]\s*y(?:es)?\s*/\s*n(?:o)?\s*[)\]]`)
	pressEnterPattern = regexp.MustCompile(`(?i)press (?:enter|return)|hit enter`)
	inProgressPattern = regexp.MustCompile(`(?i)in progress|esc to interrupt|thinking|working\.\.\.|running\.\.\.|[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]`)
	errorPattern      = regexp.MustCompile(`(?im)^\s*(?:error|fatal)\b|api error|command not found|permission denied|traceback \(most recent call last\)`)
	settledPattern    = regexp.MustCompile(`^[\s│|╭╰─]*[>❯$%#]\s*[│|]?\s*$`)
)

// Classify reads the last lines of a pane capture and names the prompt on
// screen. An idle input prompt on the final line wins, since anything above
// it is already answered. Otherwise checks run in priority order: menus,
// yes/no, press-enter, progress, errors, then an idle prompt near the end.
func Classify(output string) Screen {
	lines := tail(output, tailLines)
	if len(lines) == 0 {
		return Screen{Prompt: Unrecognized}
	}
	if settledPattern.MatchString(lines[len(lines)-1]) {
		return Screen{Prompt: Settled}
	}
	text := strings.Join(lines, "\n")

	if proceedPattern.MatchString(text) {
		options := menuOptions(text)
		for _, option := range options {
			if dontAskPattern.MatchString(option.label) {
				return Screen{Prompt: ProceedMultiOption, Option: option.number}
			}
		}
		if len(options) > 0 {
			return Screen{Prompt: ProceedSingleOption, Option: "1"}
		}
	}
	if yesNoPattern.MatchString(text) {
		return Screen{Prompt: YesNo}
	}
	if pressEnterPattern.MatchString(text) {
		return Screen{Prompt: PressEnter}
	}
	if inProgressPattern.MatchString(text) {
		return Screen{Prompt: InProgress}
	}
	if errorPattern.MatchString(text) {
		return Screen{Prompt: ErrorSeen}
	}

	start := len(lines) - 3
	if start < 0 {
		start = 0
	}
	for _, line := range lines[start:] {
		if settledPattern.MatchString(line) {
			return Screen{Prompt: Settled}
		}
	}
	return Screen{Prompt: Unrecognized}
}

type menuOption struct {
	number string
	label  string
}

func menuOptions(text string) []menuOption {
	matches := optionPattern.FindAllStringSubmatchIndex(text, -1)
	options := make([]menuOption, 0, len(matches))
	for i, match := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		label := text[match[1]:end]
		if newline := strings.IndexByte(label, '\n'); newline >= 0 {
			label = label[:newline]
		}
		options = append(options, menuOption{
			number: text[match[2]:match[3]],
			label:  strings.TrimSpace(label),
		})
	}
	return options
}

func tail(output string, n int) []string {
	raw := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

type Action int

const (
	ActionNone Action = iota
	ActionSend
	ActionDone
	ActionAbort
	ActionWaitLonger
)

// Step is the response to one classified screen.
type Step struct {
	Action Action
	Keys   []string
}

// Decide maps a classified screen to the keys to press and whether the
// confirmation loop should keep going.
func Decide(screen Screen) Step {
	switch screen.Prompt {
	case ProceedMultiOption:
		return Step{Action: ActionSend, Keys: []string{screen.Option}}
	case ProceedSingleOption:
		return Step{Action: ActionSend, Keys: []string{"1"}}
	case YesNo:
		return Step{Action: ActionSend, Keys: []string{"y", "Enter"}}
	case PressEnter:
		return Step{Action: ActionSend, Keys: []string{"Enter"}}
	case InProgress:
		return Step{Action: ActionNone}
	case Settled:
		return Step{Action: ActionDone}
	case ErrorSeen:
		return Step{Action: ActionAbort}
	default:
		return Step{Action: ActionWaitLonger}
	}
}
