package enum

// Tier is a guild's entitlement level.
type Tier int

const (
	TierFree Tier = iota
	TierPremium
)

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierPremium:
		return "premium"
	default:
		return "unknown"
	}
}

// TierFromString parses a tier name, falling back to free for anything unknown.
func TierFromString(s string) Tier {
	if s == "premium" {
		return TierPremium
	}
	return TierFree
}
