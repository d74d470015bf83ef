package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jonboulle/clockwork"
	"github.com/robalyx/starboard/internal/database/memstore"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/engine"
	"github.com/robalyx/starboard/internal/evalctx"
	"github.com/robalyx/starboard/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID          snowflake.ID = 100
	starboardChannel snowflake.ID = 200
	sourceChannel    snowflake.ID = 300
	autostarChannel  snowflake.ID = 400
	authorID         snowflake.ID = 500
	messageID        snowflake.ID = 600
)

type fixture struct {
	engine *engine.Engine
	store  *memstore.Store
	clock  *clockwork.FakeClock
}

func setupTest(t *testing.T) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	store := memstore.New()
	eng := engine.New(store, nil, engine.DefaultConfig(), nil, clock, zap.NewNop())
	return &fixture{engine: eng, store: store, clock: clock}
}

func (f *fixture) saveTarget(t *testing.T, kind enum.TargetKind, channelID snowflake.ID, mutate func(*types.TargetConfig)) *types.TargetConfig {
	t.Helper()

	target := &types.TargetConfig{
		GuildID:   guildID,
		Kind:      kind,
		ChannelID: channelID,
		Name:      "stars",
		Settings:  types.DefaultSettings(),
	}
	if mutate != nil {
		mutate(target)
	}
	saved, err := f.store.SaveTarget(context.Background(), target)
	require.NoError(t, err)
	return saved
}

func (f *fixture) reaction(kind enum.EventKind, voterID snowflake.ID, emoji string) *evalctx.RawEvent {
	return &evalctx.RawEvent{
		Kind:      kind,
		GuildID:   guildID,
		MessageID: messageID,
		Message: &evalctx.RawMessage{
			Content:   "look at this",
			CreatedAt: f.clock.Now().Add(-time.Minute),
			Attachments: []evalctx.Attachment{
				{ID: 1, Filename: "cat.png", ContentType: "image/png", URL: "https://cdn.example.com/cat.png", Size: 1024},
			},
		},
		Channel: evalctx.RawChannel{ID: sourceChannel, Type: enum.ChannelTypeText},
		Author:  &evalctx.Member{ID: authorID},
		Voter:   &evalctx.Member{ID: voterID},
		Emoji:   emoji,
	}
}

func (f *fixture) vote(t *testing.T, voterID snowflake.ID, add bool) []types.Action {
	t.Helper()

	kind := enum.EventKindReactionAdd
	if !add {
		kind = enum.EventKindReactionRemove
	}
	actions, err := f.engine.HandleEvent(context.Background(), f.reaction(kind, voterID, "⭐"))
	require.NoError(t, err)
	return actions
}

func kinds(actions []types.Action) []enum.ActionKind {
	out := make([]enum.ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestVoteLifecycle(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
		tc.Settings.RequiredUpvotes = 2
	})
	ctx := context.Background()

	assert.Empty(t, f.vote(t, 1, true))

	actions := f.vote(t, 2, true)
	require.Equal(t, []enum.ActionKind{enum.ActionKindCreatePost, enum.ActionKindUploadAttachment}, kinds(actions))
	assert.Equal(t, starboardChannel, actions[0].ChannelID)
	assert.Equal(t, sourceChannel, actions[0].SourceID)
	assert.Equal(t, 2, actions[0].VoteCount)
	assert.Equal(t, "https://cdn.example.com/cat.png", actions[1].AttachmentURL)
	assert.Equal(t, 8<<20, actions[1].SizeLimit)

	_, err := f.engine.RecordPost(ctx, guildID, target.ID, messageID, 999)
	require.NoError(t, err)

	actions = f.vote(t, 3, true)
	require.Equal(t, []enum.ActionKind{enum.ActionKindUpdatePost}, kinds(actions))
	assert.Equal(t, snowflake.ID(999), actions[0].PostID)
	assert.Equal(t, 3, actions[0].VoteCount)

	// Repeated add is not counted again
	assert.Empty(t, f.vote(t, 3, true))

	f.vote(t, 3, false)
	f.vote(t, 2, false)
	actions = f.vote(t, 1, false)
	require.Equal(t, []enum.ActionKind{enum.ActionKindDeletePost}, kinds(actions))

	stored, err := f.store.LoadStarredEntry(ctx, messageID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.EntryStateRemoved, stored.State)
	assert.Equal(t, 0, stored.VoteCount)
}

func TestVoteRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*types.TargetConfig)
		event  func(f *fixture) *evalctx.RawEvent
	}{
		{
			name: "self vote",
			event: func(f *fixture) *evalctx.RawEvent {
				return f.reaction(enum.EventKindReactionAdd, authorID, "⭐")
			},
		},
		{
			name: "bot voter",
			event: func(f *fixture) *evalctx.RawEvent {
				e := f.reaction(enum.EventKindReactionAdd, 1, "⭐")
				e.Voter.Bot = true
				return e
			},
		},
		{
			name: "bot author",
			event: func(f *fixture) *evalctx.RawEvent {
				e := f.reaction(enum.EventKindReactionAdd, 1, "⭐")
				e.Author.Bot = true
				return e
			},
		},
		{
			name: "other emoji",
			event: func(f *fixture) *evalctx.RawEvent {
				return f.reaction(enum.EventKindReactionAdd, 1, "🔥")
			},
		},
		{
			name: "reaction on the starboard itself",
			event: func(f *fixture) *evalctx.RawEvent {
				e := f.reaction(enum.EventKindReactionAdd, 1, "⭐")
				e.Channel.ID = starboardChannel
				return e
			},
		},
		{
			name:   "disabled target",
			mutate: func(tc *types.TargetConfig) { tc.Settings.Enabled = false },
			event: func(f *fixture) *evalctx.RawEvent {
				return f.reaction(enum.EventKindReactionAdd, 1, "⭐")
			},
		},
		{
			name:   "missing voter role",
			mutate: func(tc *types.TargetConfig) { tc.Settings.VoterRoles = []snowflake.ID{77} },
			event: func(f *fixture) *evalctx.RawEvent {
				return f.reaction(enum.EventKindReactionAdd, 1, "⭐")
			},
		},
		{
			name:   "message too short",
			mutate: func(tc *types.TargetConfig) { tc.Settings.MinChars = 50 },
			event: func(f *fixture) *evalctx.RawEvent {
				return f.reaction(enum.EventKindReactionAdd, 1, "⭐")
			},
		},
		{
			name:   "message too new",
			mutate: func(tc *types.TargetConfig) { tc.Settings.OlderThan = time.Hour },
			event: func(f *fixture) *evalctx.RawEvent {
				return f.reaction(enum.EventKindReactionAdd, 1, "⭐")
			},
		},
		{
			name: "filter rejects channel",
			mutate: func(tc *types.TargetConfig) {
				tc.Filter = filter.Leaf(filter.FieldChannelID, filter.OpNotEqual, sourceChannel.String())
			},
			event: func(f *fixture) *evalctx.RawEvent {
				return f.reaction(enum.EventKindReactionAdd, 1, "⭐")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setupTest(t)
			target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
				tc.Settings.RequiredUpvotes = 1
				if tt.mutate != nil {
					tt.mutate(tc)
				}
			})

			actions, err := f.engine.HandleEvent(context.Background(), tt.event(f))
			require.NoError(t, err)
			assert.Empty(t, actions)

			_, err = f.store.LoadStarredEntry(context.Background(), messageID, target.ID)
			assert.ErrorIs(t, err, types.ErrEntryNotFound)
		})
	}
}

func TestVoteRemovalBypassesGates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter *filter.Node
		add    func(e *evalctx.RawEvent)
		remove func(e *evalctx.RawEvent)
	}{
		{
			name:   "voter lost the role the filter required",
			filter: filter.Leaf(filter.FieldVoterRoles, filter.OpHasAny, []string{"77"}),
			add:    func(e *evalctx.RawEvent) { e.Voter.Roles = []snowflake.ID{77} },
			remove: func(e *evalctx.RawEvent) { e.Voter.Roles = nil },
		},
		{
			name:   "message unknown on removal",
			filter: filter.Leaf(filter.FieldMessageContent, filter.OpContains, "look"),
			remove: func(e *evalctx.RawEvent) {
				e.Message = nil
				e.Author = nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setupTest(t)
			target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
				tc.Settings.RequiredUpvotes = 5
				tc.Filter = tt.filter
			})
			ctx := context.Background()

			add := f.reaction(enum.EventKindReactionAdd, 1, "⭐")
			if tt.add != nil {
				tt.add(add)
			}
			_, err := f.engine.HandleEvent(ctx, add)
			require.NoError(t, err)

			stored, err := f.store.LoadStarredEntry(ctx, messageID, target.ID)
			require.NoError(t, err)
			require.Equal(t, 1, stored.VoteCount)

			remove := f.reaction(enum.EventKindReactionRemove, 1, "⭐")
			tt.remove(remove)
			_, err = f.engine.HandleEvent(ctx, remove)
			require.NoError(t, err)

			stored, err = f.store.LoadStarredEntry(ctx, messageID, target.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, stored.VoteCount)
		})
	}
}

func TestVoteCooldown(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
		tc.Settings.RequiredUpvotes = 10
		tc.Settings.UpvoteEmojis = []string{"⭐", "🌟"}
		tc.Settings.CooldownEnabled = true
		tc.Settings.CooldownCount = 1
		tc.Settings.CooldownPeriod = time.Minute
	})
	ctx := context.Background()

	_, err := f.engine.HandleEvent(ctx, f.reaction(enum.EventKindReactionAdd, 1, "⭐"))
	require.NoError(t, err)
	_, err = f.engine.HandleEvent(ctx, f.reaction(enum.EventKindReactionAdd, 1, "🌟"))
	require.NoError(t, err)

	stored, err := f.store.LoadStarredEntry(ctx, messageID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VoteCount)

	f.clock.Advance(time.Minute + time.Second)
	_, err = f.engine.HandleEvent(ctx, f.reaction(enum.EventKindReactionAdd, 1, "🌟"))
	require.NoError(t, err)

	stored, err = f.store.LoadStarredEntry(ctx, messageID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.VoteCount)
}

func TestOverrideAndInvalidation(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	disabled := false
	target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
		tc.Settings.RequiredUpvotes = 1
	})
	ctx := context.Background()

	// Warm the caches with the base configuration
	actions := f.vote(t, 1, true)
	require.Equal(t, enum.ActionKindCreatePost, actions[0].Kind)

	target.Overrides = []*types.Override{{
		Name:     "quiet channel",
		Scope:    enum.ScopeKindChannel,
		ScopeIDs: []snowflake.ID{sourceChannel},
		Patch:    types.SettingsPatch{Enabled: &disabled},
	}}
	_, err := f.store.SaveTarget(ctx, target)
	require.NoError(t, err)

	// Without invalidation the cached configuration is still used
	_, err = f.engine.HandleEvent(ctx, f.reaction(enum.EventKindReactionAdd, 2, "⭐"))
	require.NoError(t, err)
	stored, err := f.store.LoadStarredEntry(ctx, messageID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.VoteCount)

	f.engine.InvalidateConfig(guildID, target.ID)

	_, err = f.engine.HandleEvent(ctx, f.reaction(enum.EventKindReactionAdd, 3, "⭐"))
	require.NoError(t, err)
	stored, err = f.store.LoadStarredEntry(ctx, messageID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.VoteCount)
}

func TestDeleteTarget(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
		tc.Settings.RequiredUpvotes = 1
	})
	ctx := context.Background()

	actions := f.vote(t, 1, true)
	require.Equal(t, enum.ActionKindCreatePost, actions[0].Kind)

	require.NoError(t, f.store.DeleteTarget(ctx, target.ID))
	f.engine.DeleteTarget(guildID, target.ID)

	// The deleted target no longer receives votes
	assert.Empty(t, f.vote(t, 2, true))
	_, err := f.store.LoadStarredEntry(ctx, messageID, target.ID)
	require.ErrorIs(t, err, types.ErrEntryNotFound)
}

func TestOnConfigChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		deleted bool
	}{
		{name: "edited target is reloaded", deleted: false},
		{name: "deleted target is dropped", deleted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := setupTest(t)
			target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
				tc.Settings.RequiredUpvotes = 1
			})
			ctx := context.Background()

			actions := f.vote(t, 1, true)
			require.Equal(t, enum.ActionKindCreatePost, actions[0].Kind)

			if tt.deleted {
				require.NoError(t, f.store.DeleteTarget(ctx, target.ID))
			} else {
				target.Settings.Enabled = false
				_, err := f.store.SaveTarget(ctx, target)
				require.NoError(t, err)
			}

			// A zero target id reaches every target of the guild
			f.engine.OnConfigChange(guildID, 0, tt.deleted)

			assert.Empty(t, f.vote(t, 2, true))
		})
	}
}

func TestMultipleTargets(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	first := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
		tc.Settings.RequiredUpvotes = 1
	})
	second := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel+1, func(tc *types.TargetConfig) {
		tc.Settings.RequiredUpvotes = 1
	})
	f.saveTarget(t, enum.TargetKindAutostar, autostarChannel, nil)

	actions := f.vote(t, 1, true)

	var creates []int64
	for _, a := range actions {
		if a.Kind == enum.ActionKindCreatePost {
			creates = append(creates, a.TargetID)
		}
	}
	assert.Equal(t, []int64{first.ID, second.ID}, creates)
}

func TestPersistenceFailure(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
		tc.Settings.RequiredUpvotes = 1
	})
	ctx := context.Background()

	// Cold caches fail while loading targets
	f.store.Fail(errors.New("connection refused"))
	actions, err := f.engine.HandleEvent(ctx, f.reaction(enum.EventKindReactionAdd, 1, "⭐"))
	require.ErrorIs(t, err, types.ErrPersistenceUnavailable)
	assert.Empty(t, actions)

	f.store.Fail(nil)
	f.vote(t, 2, false)

	// Warm caches fail while saving the entry
	f.store.Fail(errors.New("connection refused"))
	actions, err = f.engine.HandleEvent(ctx, f.reaction(enum.EventKindReactionAdd, 1, "⭐"))
	require.ErrorIs(t, err, types.ErrPersistenceUnavailable)
	assert.Empty(t, actions)

	// Redelivery after recovery is applied once
	f.store.Fail(nil)
	actions = f.vote(t, 1, true)
	assert.Equal(t, enum.ActionKindCreatePost, actions[0].Kind)
	assert.Empty(t, f.vote(t, 1, true))

	stored, err := f.store.LoadStarredEntry(ctx, messageID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.VoteCount)
}

func TestEditAndDelete(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
		tc.Settings.RequiredUpvotes = 1
	})
	ctx := context.Background()

	f.vote(t, 1, true)
	_, err := f.engine.RecordPost(ctx, guildID, target.ID, messageID, 999)
	require.NoError(t, err)

	edit := f.reaction(enum.EventKindMessageUpdate, 0, "")
	edit.Voter = nil
	actions, err := f.engine.HandleEvent(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, []enum.ActionKind{enum.ActionKindUpdatePost}, kinds(actions))

	del := &evalctx.RawEvent{
		Kind:      enum.EventKindMessageDelete,
		GuildID:   guildID,
		MessageID: messageID,
		Channel:   evalctx.RawChannel{ID: sourceChannel, Type: enum.ChannelTypeText},
	}
	actions, err = f.engine.HandleEvent(ctx, del)
	require.NoError(t, err)
	require.Equal(t, []enum.ActionKind{enum.ActionKindDeletePost}, kinds(actions))
	assert.Equal(t, snowflake.ID(999), actions[0].PostID)

	// Deleted messages stay removed
	assert.Empty(t, f.vote(t, 2, true))
}

func TestOldMessageEdits(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, func(tc *types.TargetConfig) {
		tc.Settings.RequiredUpvotes = 1
	})
	ctx := context.Background()

	f.vote(t, 1, true)
	_, err := f.engine.RecordPost(ctx, guildID, target.ID, messageID, 999)
	require.NoError(t, err)

	edit := f.reaction(enum.EventKindMessageUpdate, 0, "")
	edit.Voter = nil
	edit.Message.CreatedAt = f.clock.Now().Add(-2 * time.Hour)

	// Free guilds get three old-message edits per minute and channel
	updates := 0
	for range 5 {
		actions, err := f.engine.HandleEvent(ctx, edit)
		require.NoError(t, err)
		updates += len(actions)
	}
	assert.Equal(t, 3, updates)
}

func TestModeration(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	target := f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, nil)
	ctx := context.Background()

	_, err := f.engine.SetForced(ctx, guildID, target.ID, messageID, true)
	require.ErrorIs(t, err, types.ErrEntryNotFound)

	f.vote(t, 1, true)

	actions, err := f.engine.SetForced(ctx, guildID, target.ID, messageID, true)
	require.NoError(t, err)
	assert.Equal(t, []enum.ActionKind{enum.ActionKindCreatePost}, kinds(actions))

	_, err = f.engine.RecordPost(ctx, guildID, target.ID, messageID, 999)
	require.NoError(t, err)

	actions, err = f.engine.SetTrashed(ctx, guildID, target.ID, messageID, true)
	require.NoError(t, err)
	assert.Equal(t, []enum.ActionKind{enum.ActionKindDeletePost}, kinds(actions))

	_, err = f.engine.SetFrozen(ctx, guildID, 42, messageID, true)
	require.ErrorIs(t, err, types.ErrTargetNotFound)
}

func TestAutostar(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	f.saveTarget(t, enum.TargetKindAutostar, autostarChannel, func(tc *types.TargetConfig) {
		tc.Settings.UpvoteEmojis = []string{"⭐"}
		tc.Settings.DownvoteEmojis = []string{"👎"}
		tc.Settings.RequireImage = true
		tc.Settings.DeleteInvalid = true
	})
	ctx := context.Background()

	post := func(id snowflake.ID, attachments []evalctx.Attachment) []types.Action {
		actions, err := f.engine.HandleEvent(ctx, &evalctx.RawEvent{
			Kind:      enum.EventKindMessageCreate,
			GuildID:   guildID,
			MessageID: id,
			Message:   &evalctx.RawMessage{Content: "art", Attachments: attachments, CreatedAt: f.clock.Now()},
			Channel:   evalctx.RawChannel{ID: autostarChannel, Type: enum.ChannelTypeText},
			Author:    &evalctx.Member{ID: authorID},
		})
		require.NoError(t, err)
		return actions
	}
	image := []evalctx.Attachment{{ID: 1, Filename: "art.png", URL: "https://cdn.example.com/art.png", Size: 10}}

	actions := post(1, image)
	require.Equal(t, []enum.ActionKind{enum.ActionKindAddReactions}, kinds(actions))
	assert.Equal(t, []string{"⭐", "👎"}, actions[0].Emojis)
	assert.Equal(t, autostarChannel, actions[0].ChannelID)

	// The free tier reacts once per ten seconds and channel
	assert.Empty(t, post(2, image))

	actions = post(3, nil)
	require.Equal(t, []enum.ActionKind{enum.ActionKindDeleteMessage}, kinds(actions))
	assert.Equal(t, snowflake.ID(3), actions[0].MessageID)

	f.clock.Advance(11 * time.Second)
	assert.Len(t, post(4, image), 1)
}

func TestValidateTarget(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	ctx := context.Background()

	newTarget := func() *types.TargetConfig {
		return &types.TargetConfig{
			GuildID:   guildID,
			Kind:      enum.TargetKindStarboard,
			ChannelID: starboardChannel,
			Settings:  types.DefaultSettings(),
		}
	}

	require.NoError(t, f.engine.ValidateTarget(ctx, newTarget()))

	bad := newTarget()
	bad.Filter = filter.Leaf("message.unknown", filter.OpEqual, "x")
	err := f.engine.ValidateTarget(ctx, bad)
	require.ErrorIs(t, err, types.ErrConfigResolution)
	require.ErrorIs(t, err, filter.ErrInvalidTree)

	thresholds := newTarget()
	thresholds.Settings.RemoveBelow = 5
	require.ErrorIs(t, f.engine.ValidateTarget(ctx, thresholds), types.ErrConfigResolution)

	emojis := newTarget()
	emojis.Settings.UpvoteEmojis = []string{"1", "2", "3", "4"}
	require.ErrorIs(t, f.engine.ValidateTarget(ctx, emojis), types.ErrQuotaExceeded)

	// Regex length is bounded by the tier
	long := newTarget()
	pattern := make([]byte, 300)
	for i := range pattern {
		pattern[i] = 'a'
	}
	long.Filter = filter.Leaf(filter.FieldMessageContent, filter.OpRegex, string(pattern))
	require.ErrorIs(t, f.engine.ValidateTarget(ctx, long), types.ErrConfigResolution)

	for range 3 {
		f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, nil)
	}
	f.engine.InvalidateConfig(guildID, 0)
	require.ErrorIs(t, f.engine.ValidateTarget(ctx, newTarget()), types.ErrQuotaExceeded)

	f.store.SetPremiumTier(guildID, enum.TierPremium)
	f.engine.OnTierChange(guildID, enum.TierPremium)

	require.NoError(t, f.engine.ValidateTarget(ctx, newTarget()))
	require.NoError(t, f.engine.ValidateTarget(ctx, long))
	require.NoError(t, f.engine.CheckQuota(ctx, enum.QuotaKindVoteEmojis, guildID, 20))
	require.ErrorIs(t, f.engine.CheckQuota(ctx, enum.QuotaKindVoteEmojis, guildID, 21), types.ErrQuotaExceeded)
}

func TestPremiumLockRefresh(t *testing.T) {
	t.Parallel()

	f := setupTest(t)
	ctx := context.Background()

	lock, err := f.engine.RefreshPremiumLocks(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, enum.TierFree, lock.Tier)
	assert.Zero(t, lock.Counts.Starboards)

	f.saveTarget(t, enum.TargetKindStarboard, starboardChannel, nil)
	f.store.SetPremiumTier(guildID, enum.TierPremium)

	lock, err = f.engine.RefreshPremiumLocks(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, enum.TierPremium, lock.Tier)
	assert.Equal(t, 1, lock.Counts.Starboards)
	assert.Equal(t, enum.TierPremium, f.engine.Governor().Tier(guildID))
}
