package transform

import (
	"math"
	"strconv"
	"strings"
)

// Coercion helpers for the weakly typed upstream payload. JSON numbers
// arrive as float64, but ids and flags occasionally show up as strings or
// are missing entirely, so every accessor takes `any` and degrades to a
// zero value instead of failing.

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == math.Trunc(s) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt(v any) int {
	return int(asFloat(v))
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	case float64:
		return b != 0
	default:
		return false
	}
}

// asObject returns v as a map when it is a JSON object, nil otherwise.
// Arrays, scalars and null all collapse to nil, which keeps object-typed
// document fields object-or-null on the wire.
func asObject(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}

// asArray returns v as a slice when it is a JSON array, with nil and
// non-array values normalized to an empty slice. Array-typed document
// fields are always arrays on the wire.
func asArray(v any) []any {
	a, ok := v.([]any)
	if !ok {
		return []any{}
	}
	return a
}

// cleanArray drops null entries and entries that are empty arrays or empty
// objects, returning a non-nil slice.
func cleanArray(v any) []any {
	in := asArray(v)
	out := make([]any, 0, len(in))
	for _, item := range in {
		switch it := item.(type) {
		case nil:
			continue
		case []any:
			if len(it) == 0 {
				continue
			}
		case map[string]any:
			if len(it) == 0 {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

// truncate bounds s to max runes without splitting a multi-byte character.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
