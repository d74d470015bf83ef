package filter

import (
	"slices"
	"strings"

	"github.com/robalyx/starboard/internal/evalctx"
)

// DefaultMaxRegexLength is the hard cap on pattern length at evaluation time,
// independent of the tier limit enforced when a tree is saved.
const DefaultMaxRegexLength = 1000

// Evaluator decides whether a context satisfies a condition tree.
// It is safe for concurrent use.
type Evaluator struct {
	registry       *Registry
	regex          *regexCache
	maxRegexLength int
}

// NewEvaluator creates an evaluator over the given registry.
// A nil registry uses Default(); a non-positive maxRegexLength uses DefaultMaxRegexLength.
func NewEvaluator(registry *Registry, maxRegexLength int) *Evaluator {
	if registry == nil {
		registry = Default()
	}
	if maxRegexLength <= 0 {
		maxRegexLength = DefaultMaxRegexLength
	}
	return &Evaluator{
		registry:       registry,
		regex:          newRegexCache(),
		maxRegexLength: maxRegexLength,
	}
}

// Registry returns the registry the evaluator resolves fields with.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// Evaluate returns whether ctx satisfies node. A nil node means no filter and
// is satisfied. Evaluation never fails: unresolvable fields, type mismatches and
// invalid patterns make the leaf false. The tree must be acyclic, see Validate.
func (e *Evaluator) Evaluate(node *Node, ctx *evalctx.Context) bool {
	if node == nil {
		return true
	}

	switch node.Kind {
	case KindAnd:
		for _, child := range node.Children {
			if !e.Evaluate(child, ctx) {
				return false
			}
		}
		return true
	case KindOr:
		for _, child := range node.Children {
			if e.Evaluate(child, ctx) {
				return true
			}
		}
		return false
	case KindNot:
		var child *Node
		if len(node.Children) > 0 {
			child = node.Children[0]
		}
		return !e.Evaluate(child, ctx)
	case KindLeaf:
		return e.evaluateLeaf(node, ctx)
	default:
		return false
	}
}

func (e *Evaluator) evaluateLeaf(node *Node, ctx *evalctx.Context) bool {
	if ctx == nil {
		return false
	}

	field, ok := e.registry.Lookup(node.Field)
	if !ok {
		return false
	}

	value, ok := field.Get(ctx)
	if !ok {
		return false
	}

	return e.compare(node.Op, value, node.Value)
}

func (e *Evaluator) compare(op Comparator, actual, expected any) bool {
	switch op {
	case OpEqual:
		return equal(actual, expected)
	case OpNotEqual:
		if !equatable(actual, expected) {
			return false
		}
		return !equal(actual, expected)
	case OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		a, ok1 := actual.(float64)
		b, ok2 := toFloat64(expected)
		if !ok1 || !ok2 {
			return false
		}
		switch op {
		case OpLessThan:
			return a < b
		case OpLessEqual:
			return a <= b
		case OpGreaterThan:
			return a > b
		default:
			return a >= b
		}
	case OpBetween:
		a, ok := actual.(float64)
		lo, hi, ok2 := toRange(expected)
		return ok && ok2 && a >= lo && a <= hi
	case OpIn, OpNotIn:
		items, ok := toList(expected)
		if !ok {
			return false
		}
		if _, isList := actual.([]string); isList {
			return false
		}
		found := slices.ContainsFunc(items, func(item any) bool { return equal(actual, item) })
		if op == OpIn {
			return found
		}
		return !found
	case OpHasAny, OpHasNone:
		have, ok := actual.([]string)
		want, ok2 := toStringList(expected)
		if !ok || !ok2 {
			return false
		}
		found := slices.ContainsFunc(want, func(w string) bool { return slices.Contains(have, w) })
		if op == OpHasAny {
			return found
		}
		return !found
	case OpContains:
		needle, ok := toString(expected)
		if !ok {
			return false
		}
		switch a := actual.(type) {
		case string:
			return strings.Contains(strings.ToLower(a), strings.ToLower(needle))
		case []string:
			return slices.Contains(a, needle)
		default:
			return false
		}
	case OpRegex:
		text, ok := actual.(string)
		pattern, ok2 := expected.(string)
		if !ok || !ok2 || len(pattern) > e.maxRegexLength {
			return false
		}
		re := e.regex.get(pattern)
		return re != nil && re.MatchString(text)
	default:
		return false
	}
}

// equatable reports whether equality between the two values is meaningful.
func equatable(actual, expected any) bool {
	switch actual.(type) {
	case bool:
		_, ok := expected.(bool)
		return ok
	case float64:
		_, ok := toFloat64(expected)
		return ok
	case string:
		_, ok := toString(expected)
		return ok
	default:
		return false
	}
}

func equal(actual, expected any) bool {
	switch a := actual.(type) {
	case bool:
		b, ok := expected.(bool)
		return ok && a == b
	case float64:
		b, ok := toFloat64(expected)
		return ok && a == b
	case string:
		b, ok := toString(expected)
		return ok && a == b
	default:
		return false
	}
}
