package scenario

import (
	"regexp"
	"strings"
)

// stepKeywords open a Gherkin step. Rendered as bullets.
var stepKeywords = map[string]bool{
	"given": true, "when": true, "then": true, "and": true, "but": true,
	"dado": true, "dada": true, "quando": true, "então": true, "entao": true, "e": true, "mas": true,
}

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletRe   = regexp.MustCompile(`^[-*+]\s+(.*)$`)
	numberedRe = regexp.MustCompile(`^\d+[.)]\s+(.*)$`)
	boldRe     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	codeRe     = regexp.MustCompile("`([^`]+)`")
	titleRe    = regexp.MustCompile(`(?i)^(t[ií]tulo|title):\s*(.*)$`)

	emphasis = strings.NewReplacer("**", "", "__", "")
)

// RenderJiraMarkup converts generated markdown-ish text into Jira wiki
// markup: headings become hN., Gherkin steps and list items become
// bullets, scenario marker lines become h3. headings.
func RenderJiraMarkup(text string) string {
	var out []string
	for line := range strings.Lines(text) {
		out = append(out, renderLine(strings.TrimRight(line, "\r\n")))
	}

	// Collapse runs of blank lines
	var b strings.Builder
	blank := false
	for _, line := range out {
		if line == "" {
			if blank || b.Len() == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}

	if defaultSplitter.IsMarker(trimmed) {
		clean := emphasis.Replace(trimmed)
		return "h3. " + strings.TrimSpace(strings.TrimLeft(clean, "#"))
	}
	if m := headingRe.FindStringSubmatch(trimmed); m != nil {
		level := len(m[1]) + 1
		if level > 5 {
			level = 5
		}
		return "h" + string(rune('0'+level)) + ". " + inline(strings.Trim(m[2], "*_ "))
	}
	if m := titleRe.FindStringSubmatch(trimmed); m != nil {
		return "h2. " + inline(m[2])
	}

	item := trimmed
	isBullet := false
	if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
		item, isBullet = m[1], true
	} else if m := numberedRe.FindStringSubmatch(trimmed); m != nil {
		return "# " + inline(m[1])
	}

	if isBullet || isStep(item) {
		return "* " + inline(item)
	}
	return inline(trimmed)
}

// isStep reports whether line starts with a Gherkin step keyword
func isStep(line string) bool {
	first, _, _ := strings.Cut(strings.Trim(line, "*_ "), " ")
	first = strings.TrimRight(first, ":,*_")
	return stepKeywords[strings.ToLower(first)]
}

// inline rewrites markdown emphasis and code spans
func inline(s string) string {
	s = boldRe.ReplaceAllString(s, "*$1*")
	s = codeRe.ReplaceAllString(s, "{{$1}}")
	return s
}
