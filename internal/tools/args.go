package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Args are decoded tool-call arguments
type Args map[string]any

// String returns a trimmed string argument, or "" when absent or not a string
func (a Args) String(key string) string {
	if v, ok := a[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Int returns an integer argument, or 0 when absent or not numeric
func (a Args) Int(key string) int64 {
	v, ok := a[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i
		}
	}
	return 0
}

// Float returns a numeric argument and whether it was present
func (a Args) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Bool returns a boolean argument, false when absent
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Has reports whether key carries a non-empty value
func (a Args) Has(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Clone returns a shallow copy
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// clamp returns def when v is zero, else v bounded to [lo, hi]
func clamp(v int64, def, lo, hi int) int {
	if v == 0 {
		return def
	}
	if v < int64(lo) {
		return lo
	}
	if v > int64(hi) {
		return hi
	}
	return int(v)
}

// normalizeArgs drops keys the schema does not declare, drops nulls, and coerces
// scalar values the model commonly sends with the wrong JSON type.
func normalizeArgs(schema map[string]any, args Args) Args {
	props, _ := schema["properties"].(map[string]any)
	out := make(Args, len(args))
	for key, value := range args {
		prop, ok := props[key].(map[string]any)
		if !ok || value == nil {
			continue
		}
		typ, _ := prop["type"].(string)
		coerced, keep := coerce(typ, value)
		if !keep {
			continue
		}
		if enum, ok := prop["enum"].([]any); ok {
			coerced = matchEnum(enum, coerced)
		}
		out[key] = coerced
	}
	return out
}

func coerce(typ string, value any) (any, bool) {
	switch typ {
	case "integer":
		switch v := value.(type) {
		case string:
			s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "#"))
			if s == "" {
				return nil, false
			}
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, true
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
				return int64(f), true
			}
		case float64:
			if v == math.Trunc(v) {
				return int64(v), true
			}
		}
	case "number":
		if s, ok := value.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				return nil, false
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	case "boolean":
		if s, ok := value.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "yes", "1":
				return true, true
			case "false", "no", "0":
				return false, true
			case "":
				return nil, false
			}
		}
	case "string":
		switch v := value.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case int64:
			return strconv.FormatInt(v, 10), true
		case bool:
			return strconv.FormatBool(v), true
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, false
			}
		}
	}
	return value, true
}

// matchEnum maps a case or spacing variant of an enum member onto the member itself
func matchEnum(enum []any, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	folded := strings.ToLower(strings.TrimSpace(s))
	for _, member := range enum {
		if m, ok := member.(string); ok && m == folded {
			return m
		}
	}
	return value
}
