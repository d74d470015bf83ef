package engine

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/governor"
	"go.uber.org/zap"
)

// premiumLock returns the cached premium lock of a guild, loading it on a miss.
func (e *Engine) premiumLock(ctx context.Context, guildID snowflake.ID) (*types.PremiumLock, error) {
	return e.locks.GetOrLoad(ctx, governor.PremiumLockKey(guildID), func(ctx context.Context) (*types.PremiumLock, error) {
		return e.loadPremiumLock(ctx, guildID)
	})
}

// freshPremiumLock returns a lock whose counts can be trusted, refreshing dirty ones.
func (e *Engine) freshPremiumLock(ctx context.Context, guildID snowflake.ID) (*types.PremiumLock, error) {
	lock, err := e.premiumLock(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !lock.Dirty {
		return lock, nil
	}
	return e.RefreshPremiumLocks(ctx, guildID)
}

func (e *Engine) loadPremiumLock(ctx context.Context, guildID snowflake.ID) (*types.PremiumLock, error) {
	var (
		tier enum.Tier
		err  error
	)
	if e.entitlements != nil {
		tier, err = e.entitlements.Refresh(ctx, guildID)
	} else {
		tier, err = e.store.LoadPremiumTier(ctx, guildID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load premium tier: %w (guildID=%d)", persistence(err), guildID)
	}

	counts, err := e.store.CountResources(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to count resources: %w (guildID=%d)", persistence(err), guildID)
	}

	return &types.PremiumLock{
		GuildID:     guildID,
		Tier:        tier,
		Counts:      counts,
		RefreshedAt: e.clock.Now(),
	}, nil
}

// RefreshPremiumLocks reloads a guild's tier and resource counts.
// Invalidates: premium:{guild}.
func (e *Engine) RefreshPremiumLocks(ctx context.Context, guildID snowflake.ID) (*types.PremiumLock, error) {
	e.locks.Invalidate(governor.PremiumLockKey(guildID))
	lock, err := e.premiumLock(ctx, guildID)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Refreshed premium lock",
		zap.Uint64("guildID", uint64(guildID)),
		zap.String("tier", lock.Tier.String()),
		zap.Int("starboards", lock.Counts.Starboards),
		zap.Int("autostarChannels", lock.Counts.AutostarChannels))
	return lock, nil
}

// OnTierChange applies an entitlement change pushed by the billing side. The
// cached lock takes the new tier at once and is marked dirty so quota checks
// recount resources first.
// Invalidates: premium:{guild}.
func (e *Engine) OnTierChange(guildID snowflake.ID, tier enum.Tier) {
	key := governor.PremiumLockKey(guildID)

	current, ok := e.locks.Get(key)
	e.locks.Invalidate(key)
	if ok && current != nil {
		next := *current
		next.Tier = tier
		next.Dirty = true
		e.locks.Put(key, &next)
	}

	e.logger.Info("Guild tier changed",
		zap.Uint64("guildID", uint64(guildID)),
		zap.String("tier", tier.String()))
}

// markDirty flags the cached lock of a guild for recounting.
func (e *Engine) markDirty(guildID snowflake.ID) {
	key := governor.PremiumLockKey(guildID)
	current, ok := e.locks.Get(key)
	if !ok || current == nil || current.Dirty {
		return
	}
	e.locks.Invalidate(key)
	next := *current
	next.Dirty = true
	e.locks.Put(key, &next)
}

// CheckQuota verifies that requested, the resulting amount of a resource, fits
// the guild's tier.
func (e *Engine) CheckQuota(ctx context.Context, kind enum.QuotaKind, guildID snowflake.ID, requested int) error {
	if _, err := e.freshPremiumLock(ctx, guildID); err != nil {
		return err
	}
	return e.governor.CheckQuota(kind, guildID, requested)
}

// CheckCreate verifies that one more target of kind fits the guild's tier.
func (e *Engine) CheckCreate(ctx context.Context, kind enum.QuotaKind, guildID snowflake.ID) error {
	if _, err := e.freshPremiumLock(ctx, guildID); err != nil {
		return err
	}
	return e.governor.CheckCreate(kind, guildID)
}
