package enum

// ScopeKind selects what an override matches against.
// The numeric order is the application priority: later kinds win.
type ScopeKind int

const (
	ScopeKindCategory ScopeKind = iota + 1
	ScopeKindChannel
	ScopeKindRole
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeKindCategory:
		return "category"
	case ScopeKindChannel:
		return "channel"
	case ScopeKindRole:
		return "role"
	default:
		return "unknown"
	}
}

// Rank returns the priority of the scope. Unknown scopes rank lowest.
func (k ScopeKind) Rank() int {
	switch k {
	case ScopeKindCategory, ScopeKindChannel, ScopeKindRole:
		return int(k)
	default:
		return 0
	}
}
