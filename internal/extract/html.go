package extract

import (
	"strings"

	"golang.org/x/net/html"
)

var skippedElements = map[string]bool{
	"head":       true,
	"script":     true,
	"style":      true,
	"title":      true,
	"blockquote": true,
}

var blockElements = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "ul": true, "ol": true, "hr": true,
}

// HTMLToText reduces an HTML body to plain lines. Quoted originals inside
// blockquote elements are dropped entirely.
func HTMLToText(source string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(source))

	var (
		b         strings.Builder
		skipDepth int
		skipTag   string
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return tidyLines(b.String())
		case html.StartTagToken:
			token := tokenizer.Token()
			if skipDepth > 0 {
				if token.Data == skipTag {
					skipDepth++
				}
				continue
			}
			if skippedElements[token.Data] {
				skipTag = token.Data
				skipDepth = 1
				continue
			}
			if blockElements[token.Data] {
				b.WriteString("\n")
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			if skipDepth > 0 {
				if token.Data == skipTag {
					skipDepth--
				}
				continue
			}
			if blockElements[token.Data] {
				b.WriteString("\n")
			}
		case html.SelfClosingTagToken:
			if skipDepth > 0 {
				continue
			}
			if blockElements[tokenizer.Token().Data] {
				b.WriteString("\n")
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			b.WriteString(collapseSpaces(string(tokenizer.Text())))
		}
	}
}

func collapseSpaces(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		if text != "" {
			return " "
		}
		return ""
	}
	out := strings.Join(fields, " ")
	if strings.TrimLeft(text[:1], " \t\r\n") == "" {
		out = " " + out
	}
	if strings.TrimRight(text[len(text)-1:], " \t\r\n") == "" {
		out += " "
	}
	return out
}

func tidyLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(kept) > 0 {
				kept = append(kept, "")
			}
			blank = true
			continue
		}
		blank = false
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
