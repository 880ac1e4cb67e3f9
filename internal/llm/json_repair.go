package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// RepairStats describes what RepairJSON had to do to a payload
type RepairStats struct {
	OriginalBytes int      `json:"original_bytes"`
	RepairedBytes int      `json:"repaired_bytes"`
	Strategies    []string `json:"strategies"`
	WasRepaired   bool     `json:"was_repaired"`
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)(\s*:)`)
)

// RepairJSON attempts to turn a malformed JSON object emitted by a model into valid JSON.
// Strategies run in order and stop as soon as the payload parses:
// 1. Remove trailing commas
// 2. Close an unterminated string and unbalanced braces/brackets
// 3. Quote bare object keys
// 4. Hand the remainder to the jsonrepair library
func RepairJSON(raw string) (string, RepairStats, error) {
	stats := RepairStats{OriginalBytes: len(raw)}

	if json.Valid([]byte(raw)) {
		stats.RepairedBytes = len(raw)
		return raw, stats, nil
	}
	stats.WasRepaired = true

	repaired := strings.TrimSpace(raw)
	steps := []struct {
		name string
		fn   func(string) string
	}{
		{"trailing_commas", func(s string) string { return trailingCommaRe.ReplaceAllString(s, "$1") }},
		{"completion", completeJSON},
		{"key_quotes", func(s string) string { return unquotedKeyRe.ReplaceAllString(s, `$1"$2"$3`) }},
	}

	for _, step := range steps {
		next := step.fn(repaired)
		if next == repaired {
			continue
		}
		repaired = next
		stats.Strategies = append(stats.Strategies, step.name)
		if json.Valid([]byte(repaired)) {
			stats.RepairedBytes = len(repaired)
			return repaired, stats, nil
		}
	}

	libraryRepaired, err := jsonrepair.JSONRepair(repaired)
	if err == nil && json.Valid([]byte(libraryRepaired)) {
		stats.Strategies = append(stats.Strategies, "jsonrepair_library")
		stats.RepairedBytes = len(libraryRepaired)
		return libraryRepaired, stats, nil
	}

	stats.RepairedBytes = len(repaired)
	return repaired, stats, fmt.Errorf("JSON repair failed after %d strategies", len(stats.Strategies))
}

// completeJSON closes an unterminated string literal and any open objects or arrays,
// last opened first closed. Braces inside string literals are not counted.
func completeJSON(s string) string {
	var stack []byte
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
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
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		if escaped {
			b.WriteByte('\\')
		}
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
