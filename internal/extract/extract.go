// Package extract turns a reply email into a session token and the command
// the operator typed above the quoted original message.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultProduct  = "TaskPing"
	MaxCommandBytes = 8 * 1024
)

var (
	ErrNoToken       = errors.New("no session token in subject")
	ErrNoCommand     = errors.New("no command found")
	ErrUnsafeCommand = errors.New("unsafe command")
)

type Result struct {
	Token   string
	Command string
}

type Extractor struct {
	product      string
	tokenPattern *regexp.Regexp
	footer       *regexp.Regexp
	maxBytes     int
}

func New(product string) *Extractor {
	product = strings.TrimSpace(product)
	if product == "" {
		product = DefaultProduct
	}
	quoted := regexp.QuoteMeta(product)
	return &Extractor{
		product:      product,
		tokenPattern: regexp.MustCompile(`(?i)\[\s*` + quoted + `\s+#([A-Za-z0-9]+)\s*\]`),
		footer:       regexp.MustCompile(`(?i)\[\s*` + quoted + `\s+#`),
		maxBytes:     MaxCommandBytes,
	}
}

func (e *Extractor) Product() string {
	return e.product
}

// Token returns the first bracketed session token in subject, upper-cased.
func (e *Extractor) Token(subject string) (string, bool) {
	match := e.tokenPattern.FindStringSubmatch(subject)
	if match == nil {
		return "", false
	}
	return strings.ToUpper(match[1]), true
}

// Extract pulls the token from subject and the command from the body. Plain
// text is used when present; otherwise the HTML part is reduced to text.
func (e *Extractor) Extract(subject, text, html string) (Result, error) {
	token, ok := e.Token(subject)
	if !ok {
		return Result{}, ErrNoToken
	}

	body := text
	if strings.TrimSpace(body) == "" && strings.TrimSpace(html) != "" {
		body = HTMLToText(html)
	}

	command := CollapseRepetition(e.Clean(body))
	if command == "" {
		return Result{Token: token}, ErrNoCommand
	}
	if err := CheckSafety(command); err != nil {
		return Result{Token: token, Command: command}, err
	}
	return Result{Token: token, Command: command}, nil
}

// Clean keeps the lines above the first quoted-reply boundary or signature,
// joins them and caps the result at the extractor's size limit.
func (e *Extractor) Clean(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")

	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		next := ""
		if i+1 < len(lines) {
			next = strings.TrimSpace(lines[i+1])
		}
		if e.isBoundary(trimmed, next) || isSignature(trimmed) {
			break
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}

	return truncate(strings.TrimSpace(strings.Join(kept, "\n")), e.maxBytes)
}

var boundaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^-{2,}\s*(original|forwarded)\s+message\s*-{2,}`),
	regexp.MustCompile(`^_{10,}$`),
	regexp.MustCompile(`(?i)^on\s.+\swrote:$`),
	regexp.MustCompile(`^在.+写道[：:]?$`),
	regexp.MustCompile(`(?i)^le\s.+a\sécrit\s?:$`),
	regexp.MustCompile(`(?i)^am\s.+schrieb.*:$`),
	regexp.MustCompile(`(?i)^(from|von|de|发件人)\s*[:：]\s*\S+`),
	regexp.MustCompile(`(?i)^(session id|session token|token)\s*[:：]`),
}

var wroteSuffix = regexp.MustCompile(`(?i)wrote:$`)

func (e *Extractor) isBoundary(line, next string) bool {
	if strings.HasPrefix(line, ">") {
		return true
	}
	if e.footer.MatchString(line) {
		return true
	}
	for _, pattern := range boundaryPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	// Clients wrap long attribution lines: "On Tue, 5 May 2026 at 10:02," / "Ops <ops@x> wrote:".
	if len(line) > 3 && strings.EqualFold(line[:3], "on ") && wroteSuffix.MatchString(next) {
		return true
	}
	return false
}

var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^--\s*$`),
	regexp.MustCompile(`(?i)^sent from my\s`),
	regexp.MustCompile(`(?i)^sent via\s`),
	regexp.MustCompile(`(?i)^get outlook for\s`),
	regexp.MustCompile(`^发自我的`),
	regexp.MustCompile(`^从我的.+发送`),
}

func isSignature(line string) bool {
	for _, pattern := range signaturePatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

func truncate(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

func (r Result) String() string {
	return fmt.Sprintf("token=%s command=%q", r.Token, r.Command)
}
