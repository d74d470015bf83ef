// Package governor enforces cooldown windows and tier quotas.
package governor

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"go.uber.org/zap"
)

// Key identifies one cooldown window.
type Key struct {
	GuildID    snowflake.ID
	Kind       enum.ResourceKind
	ResourceID string
}

func (k Key) String() string {
	return k.GuildID.String() + ":" + strconv.Itoa(int(k.Kind)) + ":" + k.ResourceID
}

// Decision is the outcome of a consume attempt.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	Reason     string
}

// Err returns nil for allowed decisions and a *DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason, RetryAfter: d.RetryAfter}
}

// LockReader returns the cached premium lock of a guild.
type LockReader interface {
	Get(key string) (*types.PremiumLock, bool)
}

// Observer is notified about denials.
type Observer interface {
	Denied(kind string)
}

// PremiumLockKey is the cache key of a guild's premium lock.
func PremiumLockKey(guildID snowflake.ID) string {
	return "premium:" + guildID.String()
}

// window is an immutable snapshot of a fixed window counter.
type window struct {
	start  time.Time
	count  int
	period time.Duration
}

// tombstone marks a window that Sweep has reclaimed.
var tombstone = &window{}

// Governor tracks cooldown windows per key and checks quotas against premium locks.
// Windows are updated with compare-and-swap, so no lock is shared between keys.
type Governor struct {
	config   Config
	clock    clockwork.Clock
	locks    LockReader
	observer Observer
	logger   *zap.Logger
	windows  *xsync.MapOf[string, *atomic.Pointer[window]]
}

// New creates a Governor. The lock reader may be nil, in which case every guild is free.
func New(config Config, clock clockwork.Clock, locks LockReader, observer Observer, logger *zap.Logger) *Governor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.Policies == nil {
		config.Policies = DefaultPolicies()
	}
	return &Governor{
		config:   config,
		clock:    clock,
		locks:    locks,
		observer: observer,
		logger:   logger.Named("governor"),
		windows:  xsync.NewMapOf[string, *atomic.Pointer[window]](),
	}
}

// Tier returns the cached tier of a guild. Guilds without a lock are free.
func (g *Governor) Tier(guildID snowflake.ID) enum.Tier {
	if g.locks == nil {
		return enum.TierFree
	}
	lock, ok := g.locks.Get(PremiumLockKey(guildID))
	if !ok || lock == nil {
		return enum.TierFree
	}
	return lock.Tier
}

// Quotas returns the ceilings that apply to tier.
func (g *Governor) Quotas(tier enum.Tier) types.Quotas {
	if tier == enum.TierPremium {
		return g.config.PremiumQuotas
	}
	return g.config.FreeQuotas
}

// TryConsume consumes cost units from the window of key using the policy of its kind.
func (g *Governor) TryConsume(key Key, tier enum.Tier, cost int) Decision {
	policy, ok := g.config.Policies[key.Kind]
	if !ok {
		return Decision{Allowed: true}
	}
	return g.TryConsumeLimit(key, policy.For(tier), cost)
}

// TryConsumeLimit consumes cost units from the window of key under an explicit limit.
// A window resets once the current time is past its start plus the period.
func (g *Governor) TryConsumeLimit(key Key, limit Limit, cost int) Decision {
	if limit.Unlimited() {
		return Decision{Allowed: true}
	}
	if cost <= 0 {
		cost = 1
	}

	now := g.clock.Now()
	k := key.String()

	if cost > limit.Count {
		return g.deny(key, limit.Period, fmt.Sprintf("%s allows at most %d per %s", key.Kind, limit.Count, limit.Period))
	}

	ptr := g.slot(k)
	for {
		cur := ptr.Load()
		if cur == tombstone {
			ptr = g.slot(k)
			continue
		}

		start, count := now, 0
		if cur != nil && !now.After(cur.start.Add(limit.Period)) {
			start, count = cur.start, cur.count
		}

		if count+cost > limit.Count {
			retry := start.Add(limit.Period).Sub(now)
			if retry <= 0 {
				retry = time.Millisecond
			}
			return g.deny(key, retry, fmt.Sprintf("%s is on cooldown", key.Kind))
		}

		next := &window{start: start, count: count + cost, period: limit.Period}
		if ptr.CompareAndSwap(cur, next) {
			return Decision{Allowed: true, Remaining: limit.Count - next.count}
		}
	}
}

func (g *Governor) deny(key Key, retry time.Duration, reason string) Decision {
	if g.observer != nil {
		g.observer.Denied(key.Kind.String())
	}
	g.logger.Debug("Cooldown denied",
		zap.Uint64("guildID", uint64(key.GuildID)),
		zap.String("kind", key.Kind.String()),
		zap.String("resourceID", key.ResourceID),
		zap.Duration("retryAfter", retry))

	return Decision{Allowed: false, RetryAfter: retry, Reason: reason}
}

// slot returns the live window pointer of a key, replacing reclaimed ones.
func (g *Governor) slot(k string) *atomic.Pointer[window] {
	if ptr, ok := g.windows.Load(k); ok && ptr.Load() != tombstone {
		return ptr
	}
	ptr, _ := g.windows.Compute(k, func(old *atomic.Pointer[window], loaded bool) (*atomic.Pointer[window], bool) {
		if loaded && old.Load() != tombstone {
			return old, false
		}
		return new(atomic.Pointer[window]), false
	})
	return ptr
}

// Sweep reclaims windows that expired and stayed unused for IdleAfter.
// It returns the number of windows removed.
func (g *Governor) Sweep() int {
	now := g.clock.Now()
	removed := 0

	g.windows.Range(func(k string, ptr *atomic.Pointer[window]) bool {
		cur := ptr.Load()
		if cur != nil && cur != tombstone {
			idle := max(cur.period, g.config.IdleAfter)
			if !now.After(cur.start.Add(idle)) {
				return true
			}
			if !ptr.CompareAndSwap(cur, tombstone) {
				return true
			}
		} else if cur == nil && !ptr.CompareAndSwap(nil, tombstone) {
			return true
		}

		g.windows.Compute(k, func(old *atomic.Pointer[window], loaded bool) (*atomic.Pointer[window], bool) {
			return old, loaded && old == ptr
		})
		removed++
		return true
	})

	if removed > 0 {
		g.logger.Debug("Swept idle cooldown windows", zap.Int("removed", removed))
	}
	return removed
}

// Size returns the number of tracked windows.
func (g *Governor) Size() int {
	return g.windows.Size()
}

// CheckQuota verifies that requested, the resulting amount of a resource,
// stays within the ceiling of the guild's cached tier.
func (g *Governor) CheckQuota(kind enum.QuotaKind, guildID snowflake.ID, requested int) error {
	tier := g.Tier(guildID)
	ceiling := g.Quotas(tier).Ceiling(kind)
	if ceiling <= 0 || requested <= ceiling {
		return nil
	}

	if g.observer != nil {
		g.observer.Denied(kind.String())
	}
	return &DeniedError{
		Reason: fmt.Sprintf("%s tier allows at most %d %s, requested %d", tier, ceiling, kind, requested),
		quota:  true,
	}
}

// CheckCreate verifies that one more resource of kind fits the guild's quota,
// using the counts cached on its premium lock.
func (g *Governor) CheckCreate(kind enum.QuotaKind, guildID snowflake.ID) error {
	current := 0
	if g.locks != nil {
		if lock, ok := g.locks.Get(PremiumLockKey(guildID)); ok && lock != nil {
			switch kind {
			case enum.QuotaKindStarboards:
				current = lock.Counts.Starboards
			case enum.QuotaKindAutostarChannels:
				current = lock.Counts.AutostarChannels
			default:
			}
		}
	}
	return g.CheckQuota(kind, guildID, current+1)
}
