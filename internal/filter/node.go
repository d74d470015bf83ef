package filter

import (
	"fmt"
	"slices"
)

// NodeKind is the closed set of condition node variants.
type NodeKind uint8

const (
	KindLeaf NodeKind = iota + 1
	KindAnd
	KindOr
	KindNot
)

func (k NodeKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k NodeKind) MarshalText() ([]byte, error) {
	if k < KindLeaf || k > KindNot {
		return nil, fmt.Errorf("unknown node kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *NodeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "leaf":
		*k = KindLeaf
	case "and":
		*k = KindAnd
	case "or":
		*k = KindOr
	case "not":
		*k = KindNot
	default:
		return fmt.Errorf("unknown node kind %q", text)
	}
	return nil
}

// Comparator is the operator applied by a leaf node.
type Comparator string

const (
	OpEqual        Comparator = "eq"
	OpNotEqual     Comparator = "ne"
	OpLessThan     Comparator = "lt"
	OpLessEqual    Comparator = "lte"
	OpGreaterThan  Comparator = "gt"
	OpGreaterEqual Comparator = "gte"
	OpBetween      Comparator = "between"
	OpIn           Comparator = "in"
	OpNotIn        Comparator = "not_in"
	OpHasAny       Comparator = "has_any"
	OpHasNone      Comparator = "has_none"
	OpContains     Comparator = "contains"
	OpRegex        Comparator = "regex"
)

// Node is a condition tree node. Leaf nodes use Field, Op and Value;
// And/Or use Children; Not uses exactly one child.
type Node struct {
	Kind     NodeKind   `json:"kind"`
	Field    string     `json:"field,omitempty"`
	Op       Comparator `json:"op,omitempty"`
	Value    any        `json:"value,omitempty"`
	Children []*Node    `json:"children,omitempty"`
}

// Leaf creates a comparison node.
func Leaf(field string, op Comparator, value any) *Node {
	return &Node{Kind: KindLeaf, Field: field, Op: op, Value: value}
}

// And creates a conjunction. An empty conjunction is true.
func And(children ...*Node) *Node {
	return &Node{Kind: KindAnd, Children: children}
}

// Or creates a disjunction. An empty disjunction is false.
func Or(children ...*Node) *Node {
	return &Node{Kind: KindOr, Children: children}
}

// Not negates a node.
func Not(child *Node) *Node {
	return &Node{Kind: KindNot, Children: []*Node{child}}
}

// Fields returns the sorted, de-duplicated field paths referenced by the tree.
func Fields(node *Node) []string {
	seen := make(map[string]struct{})
	visited := make(map[*Node]struct{})

	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if _, ok := visited[n]; ok {
			return
		}
		visited[n] = struct{}{}

		if n.Kind == KindLeaf {
			seen[n.Field] = struct{}{}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(node)

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}
