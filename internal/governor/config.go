package governor

import (
	"time"

	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
)

// Limit allows Count units per fixed window of Period.
type Limit struct {
	Count  int           `koanf:"count"`
	Period time.Duration `koanf:"period"`
}

// Unlimited reports whether the limit never denies.
func (l Limit) Unlimited() bool {
	return l.Count <= 0 || l.Period <= 0
}

// Policy holds the free and premium limits of one resource kind.
type Policy struct {
	Free    Limit `koanf:"free"`
	Premium Limit `koanf:"premium"`
}

// For returns the limit that applies to tier.
func (p Policy) For(tier enum.Tier) Limit {
	if tier == enum.TierPremium {
		return p.Premium
	}
	return p.Free
}

// Config configures a Governor.
type Config struct {
	Policies      map[enum.ResourceKind]Policy
	FreeQuotas    types.Quotas
	PremiumQuotas types.Quotas
	// IdleAfter is how long a window must be unused before Sweep reclaims it.
	IdleAfter time.Duration
}

// DefaultPolicies returns the built-in cooldown table.
func DefaultPolicies() map[enum.ResourceKind]Policy {
	return map[enum.ResourceKind]Policy{
		enum.ResourceKindPostUpdate: {
			Free:    Limit{Count: 4, Period: 10 * time.Second},
			Premium: Limit{Count: 8, Period: 10 * time.Second},
		},
		enum.ResourceKindAutostarSend: {
			Free:    Limit{Count: 1, Period: 10 * time.Second},
			Premium: Limit{Count: 100, Period: 10 * time.Second},
		},
		enum.ResourceKindOldMessageEdit: {
			Free:    Limit{Count: 3, Period: time.Minute},
			Premium: Limit{Count: 10, Period: time.Minute},
		},
	}
}

// DefaultConfig returns a configuration with the built-in policies and quotas.
func DefaultConfig() Config {
	free, premium := types.DefaultQuotas()
	return Config{
		Policies:      DefaultPolicies(),
		FreeQuotas:    free,
		PremiumQuotas: premium,
		IdleAfter:     10 * time.Minute,
	}
}
