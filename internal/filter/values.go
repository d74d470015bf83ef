package filter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// toFloat64 converts numeric values, including numeric strings, to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

// toString converts scalar values to their canonical string form.
// Ids are compared as decimal strings so large snowflakes keep their precision.
func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case snowflake.ID:
		return s.String(), true
	case json.Number:
		return s.String(), true
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return "", false
		}
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case uint64:
		return strconv.FormatUint(s, 10), true
	default:
		return "", false
	}
}

// toList converts list values to a slice of scalars.
func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []snowflake.ID:
		out := make([]any, len(l))
		for i, id := range l {
			out[i] = id.String()
		}
		return out, true
	case []float64:
		out := make([]any, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

// toStringList converts a list value to strings, failing if any element is not a scalar.
func toStringList(v any) ([]string, bool) {
	items, ok := toList(v)
	if !ok {
		return nil, false
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := toString(item)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// toRange converts a two element list to an inclusive numeric range.
func toRange(v any) (float64, float64, bool) {
	items, ok := toList(v)
	if !ok || len(items) != 2 {
		return 0, 0, false
	}
	lo, ok1 := toFloat64(items[0])
	hi, ok2 := toFloat64(items[1])
	if !ok1 || !ok2 || lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}
