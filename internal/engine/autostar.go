package engine

import (
	"slices"

	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/evalctx"
	"github.com/robalyx/starboard/internal/governor"
	"go.uber.org/zap"
)

// handleAutostar reacts to a new message in an autostar channel. Valid messages
// get the vote emojis added, invalid ones are deleted when the target asks for it.
func (e *Engine) handleAutostar(evctx *evalctx.Context, target *types.TargetConfig, tier enum.Tier) []types.Action {
	// Forum starters are attributed to their forum, so forum autostar targets see them here
	if target.Kind != enum.TargetKindAutostar || evctx.Channel.ID != target.ChannelID {
		return nil
	}

	cfg := e.resolver.Resolve(target, evctx)
	settings := &cfg.Settings
	if !settings.Enabled {
		return nil
	}
	// Bot messages are left alone rather than deleted
	if evctx.Author != nil && evctx.Author.Bot && !settings.AllowBots {
		return nil
	}

	src := source(evctx)
	reason := requirementFailure(evctx, settings)
	if reason == "" && !cfg.Eligible {
		reason = "filter rejected message"
	}

	if reason != "" {
		if !settings.DeleteInvalid {
			return nil
		}
		e.logger.Debug("Deleting invalid autostar message",
			zap.Uint64("messageID", uint64(src.MessageID)),
			zap.Int64("targetID", target.ID),
			zap.String("reason", reason))

		a := types.NewAction(enum.ActionKindDeleteMessage, target.GuildID, target.ID)
		a.ChannelID = src.ChannelID
		a.MessageID = src.MessageID
		a.AuthorID = src.AuthorID
		return []types.Action{a}
	}

	emojis := slices.Concat(settings.UpvoteEmojis, settings.DownvoteEmojis)
	if len(emojis) == 0 {
		return nil
	}

	key := governor.Key{
		GuildID:    target.GuildID,
		Kind:       enum.ResourceKindAutostarSend,
		ResourceID: target.ChannelID.String(),
	}
	if d := e.governor.TryConsume(key, tier, 1); !d.Allowed {
		e.logger.Debug("Autostar skipped by cooldown",
			zap.Int64("targetID", target.ID),
			zap.Duration("retryAfter", d.RetryAfter))
		return nil
	}

	a := types.NewAction(enum.ActionKindAddReactions, target.GuildID, target.ID)
	a.ChannelID = src.ChannelID
	a.MessageID = src.MessageID
	a.AuthorID = src.AuthorID
	a.Emojis = emojis
	return []types.Action{a}
}
