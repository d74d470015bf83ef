package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidTree is wrapped by every validation failure.
var ErrInvalidTree = errors.New("invalid filter tree")

// Limits bounds the shape of a condition tree.
type Limits struct {
	MaxDepth       int `koanf:"max_depth"`
	MaxWidth       int `koanf:"max_width"`
	MaxNodes       int `koanf:"max_nodes"`
	MaxRegexLength int `koanf:"max_regex_length"`
}

// DefaultLimits are the limits applied to free guilds.
var DefaultLimits = Limits{
	MaxDepth:       8,
	MaxWidth:       16,
	MaxNodes:       64,
	MaxRegexLength: 200,
}

// ValidationError describes why a tree was rejected.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidTree, e.Reason)
	}
	return fmt.Sprintf("%s at %s: %s", ErrInvalidTree, e.Path, e.Reason)
}

// Unwrap returns ErrInvalidTree.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidTree
}

// Validate checks node against the built-in registry.
func Validate(node *Node, limits Limits) error {
	return Default().Validate(node, limits)
}

// Validate checks that the tree is acyclic, within limits, and that every leaf
// names a known field with a comparator and value that fit the field's type.
// A nil tree is valid.
func (r *Registry) Validate(node *Node, limits Limits) error {
	v := &validator{
		registry: r,
		limits:   limits,
		onPath:   make(map[*Node]struct{}),
	}
	return v.walk(node, "root", 1)
}

type validator struct {
	registry *Registry
	limits   Limits
	onPath   map[*Node]struct{}
	nodes    int
}

func (v *validator) fail(path, format string, args ...any) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func (v *validator) walk(node *Node, path string, depth int) error {
	if node == nil {
		if depth == 1 {
			return nil
		}
		return v.fail(path, "nil child")
	}

	if _, cyclic := v.onPath[node]; cyclic {
		return v.fail(path, "cycle detected")
	}

	v.nodes++
	if v.limits.MaxNodes > 0 && v.nodes > v.limits.MaxNodes {
		return v.fail(path, "tree has more than %d nodes", v.limits.MaxNodes)
	}
	if v.limits.MaxDepth > 0 && depth > v.limits.MaxDepth {
		return v.fail(path, "tree is deeper than %d", v.limits.MaxDepth)
	}

	switch node.Kind {
	case KindLeaf:
		if len(node.Children) > 0 {
			return v.fail(path, "leaf has children")
		}
		return v.checkLeaf(node, path)
	case KindAnd, KindOr:
		if v.limits.MaxWidth > 0 && len(node.Children) > v.limits.MaxWidth {
			return v.fail(path, "%s has more than %d children", node.Kind, v.limits.MaxWidth)
		}
	case KindNot:
		if len(node.Children) != 1 {
			return v.fail(path, "not requires exactly one child, got %d", len(node.Children))
		}
	default:
		return v.fail(path, "unknown node kind %d", node.Kind)
	}

	v.onPath[node] = struct{}{}
	defer delete(v.onPath, node)

	for i, child := range node.Children {
		if err := v.walk(child, path+".children["+strconv.Itoa(i)+"]", depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) checkLeaf(node *Node, path string) error {
	field, ok := v.registry.Lookup(node.Field)
	if !ok {
		return v.fail(path, "unknown field %q", node.Field)
	}

	switch node.Op {
	case OpEqual, OpNotEqual:
		if field.Kind == ValueList {
			return v.opMismatch(path, node, field)
		}
		if !equatable(zeroOf(field.Kind), node.Value) {
			return v.fail(path, "value %v does not fit %s field %q", node.Value, field.Kind, node.Field)
		}
	case OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		if field.Kind != ValueNumber {
			return v.opMismatch(path, node, field)
		}
		if _, ok := toFloat64(node.Value); !ok {
			return v.fail(path, "%s requires a number", node.Op)
		}
	case OpBetween:
		if field.Kind != ValueNumber {
			return v.opMismatch(path, node, field)
		}
		if _, _, ok := toRange(node.Value); !ok {
			return v.fail(path, "between requires [min, max] with min <= max")
		}
	case OpIn, OpNotIn:
		if field.Kind == ValueList {
			return v.opMismatch(path, node, field)
		}
		if _, ok := toStringList(node.Value); !ok {
			return v.fail(path, "%s requires a list of scalars", node.Op)
		}
	case OpHasAny, OpHasNone:
		if field.Kind != ValueList {
			return v.opMismatch(path, node, field)
		}
		if _, ok := toStringList(node.Value); !ok {
			return v.fail(path, "%s requires a list of scalars", node.Op)
		}
	case OpContains:
		if field.Kind != ValueString && field.Kind != ValueList {
			return v.opMismatch(path, node, field)
		}
		if _, ok := toString(node.Value); !ok {
			return v.fail(path, "contains requires a string")
		}
	case OpRegex:
		if field.Kind != ValueString {
			return v.opMismatch(path, node, field)
		}
		pattern, ok := node.Value.(string)
		if !ok {
			return v.fail(path, "regex requires a string pattern")
		}
		if v.limits.MaxRegexLength > 0 && len(pattern) > v.limits.MaxRegexLength {
			return v.fail(path, "regex is longer than %d characters", v.limits.MaxRegexLength)
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return v.fail(path, "regex does not compile: %v", err)
		}
	default:
		return v.fail(path, "unknown comparator %q", node.Op)
	}
	return nil
}

func (v *validator) opMismatch(path string, node *Node, field Field) error {
	return v.fail(path, "comparator %s cannot be applied to %s field %q", node.Op, field.Kind, node.Field)
}

func zeroOf(kind ValueKind) any {
	switch kind {
	case ValueBool:
		return false
	case ValueNumber:
		return float64(0)
	default:
		return ""
	}
}
