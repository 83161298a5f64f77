// Package sanitize normalizes raw sensor values into safe numeric values.
// Host integrations deliver readings as untyped payloads (MQTT strings,
// JSON numbers, placeholder states like "unavailable"), so every accessor
// takes any and returns nil instead of failing.
package sanitize

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxAbsValue is the absolute bound beyond which a numeric reading is
// considered sensor garbage.
const MaxAbsValue = 10000.0

// Float converts v to a float64, returning nil for anything that is not a
// finite number within ±MaxAbsValue. Accepted inputs: Go numeric types and
// numeric strings. Booleans are rejected even though they are
// numeric-adjacent. Placeholder states ("", "unavailable", "unknown", "none")
// are treated as absent.
func Float(v any) *float64 {
	f, ok := toFloat(v, true)
	if !ok {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > MaxAbsValue {
		return nil
	}
	return &f
}

// Number is the strict variant of Float: it accepts only Go numeric types,
// never strings. Used for feedback validation where a string-typed value
// indicates a caller bug rather than a sensor placeholder.
func Number(v any) *float64 {
	f, ok := toFloat(v, false)
	if !ok {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Humidity converts v to a relative-humidity percentage. Values outside
// (0, 100] are treated as absent.
func Humidity(v any) *float64 {
	f := Float(v)
	if f == nil || *f <= 0 || *f > 100 {
		return nil
	}
	return f
}

// Timestamp converts v to a time.Time. Accepts time.Time values and RFC3339
// strings; anything else is absent.
func Timestamp(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return &t
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

func toFloat(v any, allowString bool) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case bool:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case *float64:
		if n == nil {
			return 0, false
		}
		return *n, true
	case string:
		if !allowString {
			return 0, false
		}
		s := strings.TrimSpace(n)
		switch strings.ToLower(s) {
		case "", "unavailable", "unknown", "none", "null":
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
