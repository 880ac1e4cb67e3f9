package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bluewise/internal/metrics"
)

// ErrNoJSONObject is returned when model text contains no '{' at all
var ErrNoJSONObject = errors.New("no JSON object found in model output")

// stripFences removes a leading ``` fence with its optional language tag, a trailing fence,
// and a bare leading "json" tag.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexAny(s, "\n{"); i >= 0 && strings.TrimSpace(s[:i]) != "" && !strings.ContainsAny(s[:i], " \t") {
			s = s[i:]
		}
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		rest := s[4:]
		if rest == "" || rest[0] == '{' || rest[0] == ' ' || rest[0] == '\n' || rest[0] == '\r' || rest[0] == '\t' {
			s = strings.TrimSpace(rest)
		}
	}
	return s
}

// ExtractObject returns the first balanced JSON object in text. The scan tracks string
// literals and escapes so braces inside strings do not affect depth. complete is false
// when the text ends before the object closes; the returned slice then runs to the end.
func ExtractObject(text string) (object string, complete bool, err error) {
	s := stripFences(text)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false, ErrNoJSONObject
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true, nil
			}
		}
	}
	return s[start:], false, nil
}

// ExtractJSON recovers one JSON object from model text and decodes it into target.
// A slice that does not parse goes through RepairJSON once. Any error means the caller
// must fall back to its default payload; target is only written on success.
func ExtractJSON(text string, target any) error {
	object, complete, err := ExtractObject(text)
	if err != nil {
		metrics.RecordJSONRecovery("fallback")
		return err
	}

	if complete && json.Valid([]byte(object)) {
		if err := json.Unmarshal([]byte(object), target); err != nil {
			metrics.RecordJSONRecovery("fallback")
			return fmt.Errorf("failed to decode model JSON: %w", err)
		}
		return nil
	}

	repaired, stats, err := RepairJSON(object)
	if err != nil {
		metrics.RecordJSONRecovery("fallback")
		return fmt.Errorf("failed to repair model JSON: %w", err)
	}
	log.Debug().
		Strs("strategies", stats.Strategies).
		Int("original_bytes", stats.OriginalBytes).
		Int("repaired_bytes", stats.RepairedBytes).
		Msg("Repaired model JSON")

	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		metrics.RecordJSONRecovery("fallback")
		return fmt.Errorf("failed to decode repaired model JSON: %w", err)
	}
	metrics.RecordJSONRecovery("repaired")
	return nil
}

// ParseArguments decodes tool-call arguments. Unparseable input yields an
// empty map rather than an error.
func ParseArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	var parsed map[string]any
	if err := ExtractJSON(raw, &parsed); err != nil || parsed == nil {
		log.Warn().Err(err).Int("bytes", len(raw)).Msg("Tool arguments unparseable, using empty object")
		return args
	}
	return parsed
}

// CleanText trims fences from free text used as a fallback payload
func CleanText(text string) string {
	return strings.TrimSpace(stripFences(text))
}
