// Package scenario splits generated test-case documents into individually
// addressable scenarios and renders them as Jira wiki markup.
package scenario

import (
	"fmt"
	"iter"
	"strings"

	"github.com/steveyegge/qa-agent/internal/types"
)

// DefaultMarkers are the line prefixes that open a new scenario.
// Matching is case-insensitive.
var DefaultMarkers = []string{
	"Scenario:",
	"Scenario Outline:",
	"Cenário:",
	"Cenario:",
	"Esquema do Cenário:",
}

// Splitter partitions documents on scenario-marker lines
type Splitter struct {
	markers []string
}

// NewSplitter returns a splitter for the given markers, or DefaultMarkers
// when none are given
func NewSplitter(markers ...string) *Splitter {
	var cleaned []string
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		cleaned = DefaultMarkers
	}
	return &Splitter{markers: cleaned}
}

var defaultSplitter = NewSplitter()

// Split splits text with the default markers
func Split(text string) iter.Seq[types.Scenario] {
	return defaultSplitter.Split(text)
}

// Split returns the scenarios of text in document order.
//
// The sequence is lazy (text is scanned as scenarios are pulled) and can be
// ranged over any number of times. Lines before the first marker are dropped.
func (s *Splitter) Split(text string) iter.Seq[types.Scenario] {
	return func(yield func(types.Scenario) bool) {
		var cur *block
		ordinal := 0

		for line := range strings.Lines(text) {
			line = strings.TrimRight(line, "\r\n")

			if summary, ok := s.matchMarker(line); ok {
				if cur != nil && !yield(cur.scenario()) {
					return
				}
				ordinal++
				cur = &block{ordinal: ordinal, summary: summary}
				continue
			}
			if cur != nil {
				cur.lines = append(cur.lines, line)
			}
		}

		if cur != nil {
			yield(cur.scenario())
		}
	}
}

// IsMarker reports whether line opens a new scenario
func (s *Splitter) IsMarker(line string) bool {
	_, ok := s.matchMarker(line)
	return ok
}

// matchMarker returns the text after the marker token when line is a
// marker line
func (s *Splitter) matchMarker(line string) (string, bool) {
	trimmed := undecorate(line)

	for _, marker := range s.markers {
		if len(trimmed) < len(marker) || !strings.EqualFold(trimmed[:len(marker)], marker) {
			continue
		}
		rest := strings.TrimSpace(trimmed[len(marker):])
		rest = strings.TrimSpace(strings.Trim(rest, "*"))
		return rest, true
	}
	return "", false
}

// undecorate trims line and removes a markdown heading prefix and an opening
// bold marker, so "## Scenario: x" and "**Scenario:** x" match. List bullets
// and quotes are left alone: they belong to a scenario's body.
func undecorate(line string) string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
	return strings.TrimPrefix(trimmed, "**")
}

type block struct {
	ordinal int
	summary string
	lines   []string
}

func (b *block) scenario() types.Scenario {
	summary := b.summary
	if summary == "" {
		summary = fmt.Sprintf("Scenario %d", b.ordinal)
	}

	lines := b.lines
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	return types.Scenario{
		Ordinal: b.ordinal,
		Summary: summary,
		Body:    strings.Join(lines, "\n"),
	}
}
