package engine

import (
	"context"
	"slices"
	"strconv"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/entry"
	"github.com/robalyx/starboard/internal/evalctx"
	"github.com/robalyx/starboard/internal/governor"
	"go.uber.org/zap"
)

// handleVote applies a reaction to the entry of one starboard.
// Removals skip every gate: the entry's stored (voter, emoji) pair decides whether
// the vote was counted, so a vote stays removable after the voter loses a role or
// the message becomes unknown. Adds are subject to the target being enabled and
// eligible, the vote emojis, the voter rules, the message requirements and the
// vote cooldown.
func (e *Engine) handleVote(
	ctx context.Context, evctx *evalctx.Context, target *types.TargetConfig, tier enum.Tier,
) ([]types.Action, error) {
	if target.Kind != enum.TargetKindStarboard || evctx.Channel.ID == target.ChannelID {
		return nil, nil
	}

	cfg := e.resolver.Resolve(target, evctx)
	settings := &cfg.Settings

	add := evctx.Kind == enum.EventKindReactionAdd
	up := settings.IsUpvote(evctx.Emoji)
	if add {
		if !settings.Enabled || !cfg.Eligible {
			return nil, nil
		}
		if !up && !settings.IsDownvote(evctx.Emoji) {
			return nil, nil
		}
		if reason := voterRejection(evctx, settings); reason != "" {
			e.logger.Debug("Vote ignored",
				zap.Uint64("messageID", uint64(evctx.Message.ID)),
				zap.Int64("targetID", target.ID),
				zap.String("reason", reason))
			return nil, nil
		}
		if reason := requirementFailure(evctx, settings); reason != "" {
			e.logger.Debug("Vote ignored",
				zap.Uint64("messageID", uint64(evctx.Message.ID)),
				zap.Int64("targetID", target.ID),
				zap.String("reason", reason))
			return nil, nil
		}
		if !e.allowVoter(evctx, target, settings) {
			return nil, nil
		}
	}

	res, err := e.entries.ApplyVote(ctx, entryTarget(target, settings, tier), source(evctx), entry.Vote{
		VoterID: evctx.Voter.ID,
		Emoji:   evctx.Emoji,
		Up:      up,
		Add:     add,
	})
	if err != nil {
		return nil, persistence(err)
	}

	return e.withUploads(res.Actions, evctx, tier), nil
}

// allowVoter applies the per-voter cooldown configured on the target.
func (e *Engine) allowVoter(evctx *evalctx.Context, target *types.TargetConfig, settings *types.Settings) bool {
	if !settings.CooldownEnabled {
		return true
	}

	key := governor.Key{
		GuildID:    evctx.GuildID,
		Kind:       enum.ResourceKindStarboardVote,
		ResourceID: evctx.Voter.ID.String() + ":" + strconv.FormatInt(target.ID, 10),
	}
	limit := governor.Limit{Count: settings.CooldownCount, Period: settings.CooldownPeriod}
	return e.governor.TryConsumeLimit(key, limit, 1).Allowed
}

// withUploads appends an attachment upload after every created post. The post id
// is filled in by the dispatcher once the post exists.
func (e *Engine) withUploads(actions []types.Action, evctx *evalctx.Context, tier enum.Tier) []types.Action {
	if len(evctx.Message.Attachments) == 0 {
		return actions
	}

	limit := e.governor.Quotas(tier).UploadBytes
	out := make([]types.Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, a)
		if a.Kind != enum.ActionKindCreatePost {
			continue
		}
		for _, att := range evctx.Message.Attachments {
			if limit > 0 && att.Size > limit {
				continue
			}
			upload := types.NewAction(enum.ActionKindUploadAttachment, a.GuildID, a.TargetID)
			upload.ChannelID = a.ChannelID
			upload.MessageID = a.MessageID
			upload.SourceID = a.SourceID
			upload.AuthorID = a.AuthorID
			upload.AttachmentURL = att.URL
			upload.SizeLimit = limit
			out = append(out, upload)
		}
	}
	return out
}

// handleEdit refreshes the post of an edited message.
func (e *Engine) handleEdit(
	ctx context.Context, evctx *evalctx.Context, target *types.TargetConfig, tier enum.Tier,
) ([]types.Action, error) {
	if target.Kind != enum.TargetKindStarboard || evctx.Channel.ID == target.ChannelID {
		return nil, nil
	}

	cfg := e.resolver.Resolve(target, evctx)
	if !cfg.Settings.Enabled || !cfg.Settings.LinkEdits {
		return nil, nil
	}

	res, err := e.entries.HandleEdit(ctx, entryTarget(target, &cfg.Settings, tier), source(evctx))
	if err != nil {
		return nil, persistence(err)
	}
	return res.Actions, nil
}

// allowEdit rate limits edits of old messages per channel. Recent messages are
// always allowed.
func (e *Engine) allowEdit(evctx *evalctx.Context, tier enum.Tier) bool {
	age, ok := evctx.Age()
	if !ok || e.config.OldMessageAge <= 0 || age < e.config.OldMessageAge {
		return true
	}

	key := governor.Key{
		GuildID:    evctx.GuildID,
		Kind:       enum.ResourceKindOldMessageEdit,
		ResourceID: evctx.Channel.ID.String(),
	}
	return e.governor.TryConsume(key, tier, 1).Allowed
}

// handleDelete removes the post of a deleted message.
func (e *Engine) handleDelete(
	ctx context.Context, evctx *evalctx.Context, target *types.TargetConfig, tier enum.Tier,
) ([]types.Action, error) {
	if target.Kind != enum.TargetKindStarboard {
		return nil, nil
	}

	res, err := e.entries.HandleDelete(ctx, entryTarget(target, &target.Settings, tier), evctx.Message.ID)
	if err != nil {
		return nil, persistence(err)
	}
	return res.Actions, nil
}

// source describes the message of an event. A forum starter lives in the thread
// that shares its id, not in the forum it is attributed to.
func source(evctx *evalctx.Context) entry.Source {
	src := entry.Source{
		MessageID: evctx.Message.ID,
		ChannelID: evctx.Channel.ID,
		NSFW:      evctx.Channel.NSFW,
	}
	if evctx.Message.IsForumStarter {
		src.ChannelID = evctx.Message.ID
	}
	if evctx.Author != nil {
		src.AuthorID = evctx.Author.ID
	}
	return src
}

// voterRejection returns why a voter may not vote on the message, or "" when they may.
func voterRejection(evctx *evalctx.Context, settings *types.Settings) string {
	voter := evctx.Voter
	switch {
	case voter.Bot:
		return "voter is a bot"
	case !settings.SelfVote && evctx.Author != nil && voter.ID == evctx.Author.ID:
		return "self vote"
	case len(settings.VoterRoles) > 0 && !hasAnyRole(voter.Roles, settings.VoterRoles):
		return "voter lacks a voter role"
	}
	return ""
}

// requirementFailure returns the first requirement the message fails, or "" when
// it meets all of them. Content requirements fail for messages whose content is unknown.
func requirementFailure(evctx *evalctx.Context, settings *types.Settings) string {
	if evctx.Author != nil && evctx.Author.Bot && !settings.AllowBots {
		return "author is a bot"
	}
	if len(settings.RequiredRoles) > 0 && !evctx.AuthorHasRole(settings.RequiredRoles) {
		return "author lacks a required role"
	}

	msg := &evctx.Message
	needsContent := settings.RequireImage || settings.MinChars > 0 || settings.MaxChars > 0
	if needsContent && !msg.Known {
		return "message content unknown"
	}
	switch {
	case settings.RequireImage && !msg.HasImage:
		return "message has no image"
	case msg.Length < settings.MinChars:
		return "message too short"
	case settings.MaxChars > 0 && msg.Length > settings.MaxChars:
		return "message too long"
	}

	if settings.OlderThan > 0 || settings.NewerThan > 0 {
		age, ok := evctx.Age()
		if !ok {
			return "message age unknown"
		}
		if settings.OlderThan > 0 && age < settings.OlderThan {
			return "message too new"
		}
		if settings.NewerThan > 0 && age > settings.NewerThan {
			return "message too old"
		}
	}
	return ""
}

func hasAnyRole(have, want []snowflake.ID) bool {
	for _, role := range want {
		if slices.Contains(have, role) {
			return true
		}
	}
	return false
}
