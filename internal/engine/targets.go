package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/entry"
	"go.uber.org/zap"
)

func targetsKey(guildID snowflake.ID) string {
	return "targets:" + guildID.String()
}

// guildTargets returns the cached targets of a guild, loading them on a miss.
func (e *Engine) guildTargets(ctx context.Context, guildID snowflake.ID) ([]*types.TargetConfig, error) {
	return e.targets.GetOrLoad(ctx, targetsKey(guildID), func(ctx context.Context) ([]*types.TargetConfig, error) {
		targets, err := e.store.LoadGuildTargets(ctx, guildID)
		if err != nil {
			return nil, fmt.Errorf("failed to load guild targets: %w (guildID=%d)", persistence(err), guildID)
		}
		return targets, nil
	})
}

// target returns one cached target of a guild.
func (e *Engine) target(ctx context.Context, guildID snowflake.ID, targetID int64) (*types.TargetConfig, error) {
	targets, err := e.guildTargets(ctx, guildID)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if t.ID == targetID {
			return t, nil
		}
	}

	// The cached list may predate the target
	t, err := e.store.LoadTargetConfig(ctx, targetID)
	if errors.Is(err, types.ErrTargetNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load target: %w (targetID=%d)", persistence(err), targetID)
	}
	if t.GuildID != guildID {
		return nil, fmt.Errorf("%w (guildID=%d, targetID=%d)", types.ErrTargetNotFound, guildID, targetID)
	}
	return t, nil
}

// InvalidateConfig must be called after a target or any of its overrides changed.
// A zero targetID drops every target of the guild.
// Invalidates: targets:{guild}, config:{guild}:{target}:*, and marks premium:{guild} dirty.
func (e *Engine) InvalidateConfig(guildID snowflake.ID, targetID int64) {
	e.targets.Invalidate(targetsKey(guildID))

	var removed int
	if targetID == 0 {
		removed = e.resolver.InvalidateGuild(guildID)
	} else {
		removed = e.resolver.InvalidateTarget(guildID, targetID)
	}
	e.markDirty(guildID)

	e.logger.Debug("Invalidated configuration",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int64("targetID", targetID),
		zap.Int("removed", removed))
}

// DeleteTarget must be called after a target was deleted from the store.
// Invalidates: targets:{guild}, config:{guild}:{target}:*, and marks premium:{guild} dirty.
func (e *Engine) DeleteTarget(guildID snowflake.ID, targetID int64) {
	e.InvalidateConfig(guildID, targetID)
	e.logger.Info("Target deleted",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int64("targetID", targetID))
}

// OnConfigChange applies a target edit or deletion announced by another process.
func (e *Engine) OnConfigChange(guildID snowflake.ID, targetID int64, deleted bool) {
	if deleted {
		e.DeleteTarget(guildID, targetID)
		return
	}
	e.InvalidateConfig(guildID, targetID)
}

// ValidateTarget checks a target before it is written. Filter problems unwrap to
// types.ErrConfigResolution and quota problems to types.ErrQuotaExceeded.
// A target without an id is treated as new and counted against the creation quota.
func (e *Engine) ValidateTarget(ctx context.Context, target *types.TargetConfig) error {
	lock, err := e.freshPremiumLock(ctx, target.GuildID)
	if err != nil {
		return err
	}

	limits := e.config.Filter
	limits.MaxRegexLength = e.governor.Quotas(lock.Tier).RegexLength
	registry := e.evaluator.Registry()
	for _, node := range target.Filters() {
		if err := registry.Validate(node, limits); err != nil {
			return fmt.Errorf("%w: %w", types.ErrConfigResolution, err)
		}
	}

	if err := validateSettings(&target.Settings); err != nil {
		return err
	}
	for i, o := range target.Overrides {
		if o.Scope.Rank() == 0 || len(o.ScopeIDs) == 0 {
			return fmt.Errorf("%w: override %d has no scope", types.ErrConfigResolution, i)
		}
		patched := o.Patch.Apply(target.Settings)
		if err := validateSettings(&patched); err != nil {
			return fmt.Errorf("override %d: %w", i, err)
		}
	}

	if err := e.governor.CheckQuota(enum.QuotaKindOverridesPerTarget, target.GuildID, len(target.Overrides)); err != nil {
		return err
	}
	emojis := len(target.Settings.UpvoteEmojis) + len(target.Settings.DownvoteEmojis)
	for _, o := range target.Overrides {
		emojis = max(emojis, o.Patch.EmojiCount())
	}
	if err := e.governor.CheckQuota(enum.QuotaKindVoteEmojis, target.GuildID, emojis); err != nil {
		return err
	}

	if target.ID == 0 {
		kind := enum.QuotaKindStarboards
		if target.Kind == enum.TargetKindAutostar {
			kind = enum.QuotaKindAutostarChannels
		}
		return e.governor.CheckCreate(kind, target.GuildID)
	}
	return nil
}

func validateSettings(s *types.Settings) error {
	switch {
	case s.RequiredUpvotes < 1:
		return fmt.Errorf("%w: required upvotes must be at least 1", types.ErrConfigResolution)
	case s.RemoveBelow > s.RequiredUpvotes:
		return fmt.Errorf("%w: removal threshold %d exceeds required upvotes %d",
			types.ErrConfigResolution, s.RemoveBelow, s.RequiredUpvotes)
	case s.MaxChars > 0 && s.MinChars > s.MaxChars:
		return fmt.Errorf("%w: min chars exceed max chars", types.ErrConfigResolution)
	case s.OlderThan > 0 && s.NewerThan > 0 && s.OlderThan > s.NewerThan:
		return fmt.Errorf("%w: older-than exceeds newer-than", types.ErrConfigResolution)
	case s.CooldownEnabled && (s.CooldownCount < 1 || s.CooldownPeriod <= 0):
		return fmt.Errorf("%w: invalid vote cooldown", types.ErrConfigResolution)
	}
	return nil
}

// moderationTarget resolves the lifecycle view of a target from its base settings.
func (e *Engine) moderationTarget(ctx context.Context, guildID snowflake.ID, targetID int64) (entry.Target, error) {
	t, err := e.target(ctx, guildID, targetID)
	if err != nil {
		return entry.Target{}, err
	}
	lock, err := e.premiumLock(ctx, guildID)
	if err != nil {
		return entry.Target{}, err
	}
	return entryTarget(t, &t.Settings, lock.Tier), nil
}

// SetFrozen freezes or unfreezes the entry of a message on a starboard.
func (e *Engine) SetFrozen(ctx context.Context, guildID snowflake.ID, targetID int64, messageID snowflake.ID, frozen bool) ([]types.Action, error) {
	return e.moderate(ctx, guildID, targetID, messageID, func(t entry.Target) (entry.Result, error) {
		return e.entries.SetFrozen(ctx, t, messageID, frozen)
	})
}

// SetTrashed trashes or restores the entry of a message on a starboard.
func (e *Engine) SetTrashed(ctx context.Context, guildID snowflake.ID, targetID int64, messageID snowflake.ID, trashed bool) ([]types.Action, error) {
	return e.moderate(ctx, guildID, targetID, messageID, func(t entry.Target) (entry.Result, error) {
		return e.entries.SetTrashed(ctx, t, messageID, trashed)
	})
}

// SetForced forces or unforces the entry of a message onto a starboard.
func (e *Engine) SetForced(ctx context.Context, guildID snowflake.ID, targetID int64, messageID snowflake.ID, forced bool) ([]types.Action, error) {
	return e.moderate(ctx, guildID, targetID, messageID, func(t entry.Target) (entry.Result, error) {
		return e.entries.SetForced(ctx, t, messageID, forced)
	})
}

func (e *Engine) moderate(
	ctx context.Context, guildID snowflake.ID, targetID int64, messageID snowflake.ID,
	apply func(t entry.Target) (entry.Result, error),
) ([]types.Action, error) {
	t, err := e.moderationTarget(ctx, guildID, targetID)
	if err != nil {
		return nil, err
	}
	res, err := apply(t)
	if err != nil {
		if errors.Is(err, types.ErrEntryNotFound) {
			return nil, err
		}
		return nil, persistence(err)
	}
	e.logger.Info("Entry moderated",
		zap.Uint64("messageID", uint64(messageID)),
		zap.Int64("targetID", targetID),
		zap.Int("actions", len(res.Actions)))
	return res.Actions, nil
}

// RecordPost stores the id of a post the sink created.
func (e *Engine) RecordPost(ctx context.Context, guildID snowflake.ID, targetID int64, messageID, postID snowflake.ID) ([]types.Action, error) {
	t, err := e.moderationTarget(ctx, guildID, targetID)
	if err != nil {
		return nil, err
	}
	res, err := e.entries.RecordPost(ctx, t, messageID, postID)
	if err != nil {
		return nil, persistence(err)
	}
	return res.Actions, nil
}

// PostFailed reopens an entry whose post could not be created.
func (e *Engine) PostFailed(ctx context.Context, guildID snowflake.ID, targetID int64, messageID snowflake.ID) error {
	t, err := e.moderationTarget(ctx, guildID, targetID)
	if err != nil {
		return err
	}
	if _, err := e.entries.PostFailed(ctx, t, messageID); err != nil {
		return persistence(err)
	}
	return nil
}
