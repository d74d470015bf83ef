package resolver_test

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/evalctx"
	"github.com/robalyx/starboard/internal/filter"
	"github.com/robalyx/starboard/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID    snowflake.ID = 1
	categoryID snowflake.ID = 10
	channelID  snowflake.ID = 20
	threadID   snowflake.ID = 30
	roleID     snowflake.ID = 40
)

func ptr[T any](v T) *T { return &v }

func setupTest(t *testing.T) (*resolver.Resolver, *cache.Cache[*resolver.EffectiveConfig]) {
	t.Helper()

	c := cache.New[*resolver.EffectiveConfig]("config", nil)
	return resolver.New(filter.NewEvaluator(nil, 0), c, zap.NewNop()), c
}

func messageContext() *evalctx.Context {
	return &evalctx.Context{
		Kind:    enum.EventKindReactionAdd,
		GuildID: guildID,
		Message: evalctx.Message{ID: 99, Known: true, Content: "hello world", Length: 11},
		Author:  &evalctx.Member{ID: 5, Roles: []snowflake.ID{roleID}},
		Channel: evalctx.Channel{
			ID:         channelID,
			Type:       enum.ChannelTypeText,
			ParentID:   categoryID,
			CategoryID: categoryID,
		},
		Voter: &evalctx.Member{ID: 6},
		Emoji: "⭐",
	}
}

func newTarget(overrides ...*types.Override) *types.TargetConfig {
	settings := types.DefaultSettings()
	settings.RequiredUpvotes = 3
	return &types.TargetConfig{
		ID:        7,
		GuildID:   guildID,
		Kind:      enum.TargetKindStarboard,
		ChannelID: 500,
		Settings:  settings,
		Overrides: overrides,
	}
}

func override(id int64, scope enum.ScopeKind, scopeID snowflake.ID, required int) *types.Override {
	return &types.Override{
		ID:       id,
		Scope:    scope,
		ScopeIDs: []snowflake.ID{scopeID},
		Patch:    types.SettingsPatch{RequiredUpvotes: ptr(required)},
	}
}

func TestResolvePriority(t *testing.T) {
	t.Parallel()

	r, _ := setupTest(t)
	ctx := messageContext()

	t.Run("channel beats category", func(t *testing.T) {
		t.Parallel()

		// Declared in the "wrong" order on purpose
		target := newTarget(
			override(1, enum.ScopeKindChannel, channelID, 2),
			override(2, enum.ScopeKindCategory, categoryID, 5),
		)
		target.ID = 101

		got := r.Resolve(target, ctx)
		assert.Equal(t, 2, got.Settings.RequiredUpvotes)
		assert.Equal(t, []int64{2, 1}, got.AppliedOverrides)
		assert.True(t, got.Eligible)
	})

	t.Run("role beats channel", func(t *testing.T) {
		t.Parallel()

		target := newTarget(
			override(1, enum.ScopeKindRole, roleID, 8),
			override(2, enum.ScopeKindChannel, channelID, 2),
		)
		target.ID = 102

		assert.Equal(t, 8, r.Resolve(target, ctx).Settings.RequiredUpvotes)
	})

	t.Run("later declaration wins within a scope", func(t *testing.T) {
		t.Parallel()

		target := newTarget(
			override(1, enum.ScopeKindChannel, channelID, 4),
			override(2, enum.ScopeKindChannel, channelID, 6),
		)
		target.ID = 103

		assert.Equal(t, 6, r.Resolve(target, ctx).Settings.RequiredUpvotes)
	})

	t.Run("non matching overrides are skipped", func(t *testing.T) {
		t.Parallel()

		gated := override(3, enum.ScopeKindChannel, channelID, 9)
		gated.Filter = filter.Leaf(filter.FieldAuthorIsBot, filter.OpEqual, true)

		target := newTarget(
			override(1, enum.ScopeKindChannel, 12345, 2),
			override(2, enum.ScopeKindRole, 777, 2),
			gated,
		)
		target.ID = 104

		got := r.Resolve(target, ctx)
		assert.Equal(t, 3, got.Settings.RequiredUpvotes)
		assert.Empty(t, got.AppliedOverrides)
	})

	t.Run("partial patch keeps other fields", func(t *testing.T) {
		t.Parallel()

		o := override(1, enum.ScopeKindCategory, categoryID, 5)
		o.Patch.SelfVote = ptr(true)
		target := newTarget(o, override(2, enum.ScopeKindChannel, channelID, 2))
		target.ID = 105

		got := r.Resolve(target, ctx)
		assert.Equal(t, 2, got.Settings.RequiredUpvotes)
		assert.True(t, got.Settings.SelfVote)
		assert.Equal(t, []string{"⭐"}, got.Settings.UpvoteEmojis)
	})
}

func TestResolveThreadScope(t *testing.T) {
	t.Parallel()

	r, _ := setupTest(t)
	ctx := messageContext()
	ctx.Channel = evalctx.Channel{
		ID:         threadID,
		Type:       enum.ChannelTypePublicThread,
		ParentID:   channelID,
		CategoryID: categoryID,
		IsThread:   true,
	}

	target := newTarget(override(1, enum.ScopeKindChannel, channelID, 2))
	assert.Equal(t, 2, r.Resolve(target, ctx).Settings.RequiredUpvotes)
}

func TestResolveFilterGate(t *testing.T) {
	t.Parallel()

	r, _ := setupTest(t)

	target := newTarget(override(1, enum.ScopeKindChannel, channelID, 1))
	target.Filter = filter.Not(filter.Leaf(filter.FieldChannelID, filter.OpEqual, channelID.String()))

	got := r.Resolve(target, messageContext())
	assert.False(t, got.Eligible)
	// Overrides still merge; the gate is a separate decision
	assert.Equal(t, 1, got.Settings.RequiredUpvotes)
}

func TestResolveCaching(t *testing.T) {
	t.Parallel()

	t.Run("stable results are cached until invalidated", func(t *testing.T) {
		t.Parallel()

		r, c := setupTest(t)
		ctx := messageContext()
		target := newTarget(override(1, enum.ScopeKindChannel, channelID, 2))
		target.Filter = filter.Leaf(filter.FieldAuthorRoles, filter.OpHasAny, []string{roleID.String()})

		first := r.Resolve(target, ctx)
		require.Equal(t, 1, c.Len())
		assert.Same(t, first, r.Resolve(target, ctx))

		// Edit the configuration and invalidate as the edit path does
		target.Overrides[0].Patch.RequiredUpvotes = ptr(6)
		assert.Equal(t, 1, r.InvalidateTarget(guildID, target.ID))

		second := r.Resolve(target, ctx)
		assert.Equal(t, 6, second.Settings.RequiredUpvotes)
	})

	t.Run("different roles get different keys", func(t *testing.T) {
		t.Parallel()

		r, c := setupTest(t)
		target := newTarget(override(1, enum.ScopeKindRole, roleID, 9))

		withRole := messageContext()
		withoutRole := messageContext()
		withoutRole.Author.Roles = nil

		assert.Equal(t, 9, r.Resolve(target, withRole).Settings.RequiredUpvotes)
		assert.Equal(t, 3, r.Resolve(target, withoutRole).Settings.RequiredUpvotes)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("content dependent results are not cached", func(t *testing.T) {
		t.Parallel()

		r, c := setupTest(t)
		target := newTarget()
		target.Filter = filter.Leaf(filter.FieldMessageContent, filter.OpRegex, "hello")

		ctx := messageContext()
		assert.True(t, r.Resolve(target, ctx).Eligible)

		ctx.Message.Content = "bye"
		assert.False(t, r.Resolve(target, ctx).Eligible)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("author id filters key by author", func(t *testing.T) {
		t.Parallel()

		a := messageContext()
		b := messageContext()
		b.Author.ID = 6

		assert.Equal(t, resolver.CacheKey(guildID, 7, 1, a, false), resolver.CacheKey(guildID, 7, 1, b, false))
		assert.NotEqual(t, resolver.CacheKey(guildID, 7, 1, a, true), resolver.CacheKey(guildID, 7, 1, b, true))
	})

	t.Run("a stale target resolved after invalidation does not shadow the edit", func(t *testing.T) {
		t.Parallel()

		r, _ := setupTest(t)
		ctx := messageContext()
		before := newTarget(override(1, enum.ScopeKindChannel, channelID, 2))
		after := newTarget(override(1, enum.ScopeKindChannel, channelID, 6))

		// An event loaded the old target, then the edit invalidated the cache
		// before that event got to resolve it
		r.InvalidateTarget(guildID, before.ID)
		assert.Equal(t, 2, r.Resolve(before, ctx).Settings.RequiredUpvotes)

		assert.Equal(t, 6, r.Resolve(after, ctx).Settings.RequiredUpvotes)
		assert.Equal(t, 6, r.Resolve(after, ctx).Settings.RequiredUpvotes)
	})
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := newTarget(override(1, enum.ScopeKindChannel, channelID, 2))
	b := newTarget(override(1, enum.ScopeKindChannel, channelID, 2))
	assert.Equal(t, resolver.Fingerprint(a), resolver.Fingerprint(b))

	b.Overrides[0].Patch.RequiredUpvotes = ptr(3)
	assert.NotEqual(t, resolver.Fingerprint(a), resolver.Fingerprint(b))

	c := newTarget()
	c.Settings.Enabled = !c.Settings.Enabled
	assert.NotEqual(t, resolver.Fingerprint(newTarget()), resolver.Fingerprint(c))
}

func TestOrdered(t *testing.T) {
	t.Parallel()

	in := []*types.Override{
		{ID: 1, Scope: enum.ScopeKindRole},
		{ID: 2, Scope: enum.ScopeKindCategory},
		{ID: 3, Scope: enum.ScopeKindChannel},
		{ID: 4, Scope: enum.ScopeKindCategory},
		{ID: 5, Scope: enum.ScopeKindRole},
	}

	var ids []int64
	for _, o := range resolver.Ordered(in) {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []int64{2, 4, 3, 1, 5}, ids)
	assert.Equal(t, int64(1), in[0].ID)
}
