package agent

import (
	"encoding/json"
	"strings"
)

// decisionKey is the field the strategist must put its move under.
const decisionKey = "move"

// ParseDecision extracts the move from a decision block of the form
// {"move": "e2e4"} embedded in free-form text. It reports false when no
// block decodes or the decoded block has no string move field. The move is
// returned as written; an empty string with true means the block was found
// but the move was blank.
func ParseDecision(text string) (string, bool) {
	for _, span := range decisionSpans(text) {
		var fields map[string]any
		if err := json.Unmarshal([]byte(span), &fields); err != nil {
			continue
		}
		raw, ok := fields[decisionKey]
		if !ok {
			continue
		}
		move, ok := raw.(string)
		if !ok {
			continue
		}
		return move, true
	}
	return "", false
}

// decisionSpans lists candidate blocks, most likely first: balanced
// top-level spans from the end of the text backwards, then the greedy span
// from the first '{' to the last '}'.
func decisionSpans(text string) []string {
	spans := topLevelSpans(text)
	for i, j := 0, len(spans)-1; i < j; i, j = i+1, j-1 {
		spans[i], spans[j] = spans[j], spans[i]
	}

	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first >= 0 && last > first {
		greedy := text[first : last+1]
		if len(spans) == 0 || spans[len(spans)-1] != greedy {
			spans = append(spans, greedy)
		}
	}
	return spans
}

// topLevelSpans returns every balanced {...} span not nested in another,
// ignoring braces inside JSON string literals.
func topLevelSpans(text string) []string {
	var (
		spans    []string
		depth    int
		start    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, text[start:i+1])
			}
		}
	}
	return spans
}
