// Package resolver merges a target's base settings with its overrides and
// decides whether the target applies to a message at all.
package resolver

import (
	"context"
	"encoding/binary"
	"slices"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash"
	"github.com/disgoorg/snowflake/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/evalctx"
	"github.com/robalyx/starboard/internal/filter"
	"go.uber.org/zap"
)

// EffectiveConfig is the result of resolving a target for one context.
// Values may be shared through the cache and must not be mutated.
type EffectiveConfig struct {
	TargetID  int64
	GuildID   snowflake.ID
	Kind      enum.TargetKind
	ChannelID snowflake.ID
	NSFW      bool
	Settings  types.Settings
	// Eligible is false when the target's filter rejected the context.
	Eligible bool
	// AppliedOverrides lists the ids of the overrides that matched, in application order.
	AppliedOverrides []int64
}

// Resolver resolves effective configurations, caching context-invariant results.
type Resolver struct {
	evaluator *filter.Evaluator
	cache     *cache.Cache[*EffectiveConfig]
	revisions *xsync.MapOf[int64, revision]
	logger    *zap.Logger
}

// revision remembers the fingerprint of the last target value seen per id.
type revision struct {
	target *types.TargetConfig
	sum    uint64
}

// New creates a Resolver. The cache may be nil to disable caching.
func New(evaluator *filter.Evaluator, c *cache.Cache[*EffectiveConfig], logger *zap.Logger) *Resolver {
	return &Resolver{
		evaluator: evaluator,
		cache:     c,
		revisions: xsync.NewMapOf[int64, revision](),
		logger:    logger.Named("resolver"),
	}
}

// Resolve computes the effective configuration of target for ctx.
func (r *Resolver) Resolve(target *types.TargetConfig, ctx *evalctx.Context) *EffectiveConfig {
	cacheable, keyedByAuthor := r.cacheability(target)
	if !cacheable || r.cache == nil {
		return r.resolve(target, ctx)
	}

	key := CacheKey(target.GuildID, target.ID, r.revision(target), ctx, keyedByAuthor)
	result, _ := r.cache.GetOrLoad(context.Background(), key, func(context.Context) (*EffectiveConfig, error) {
		return r.resolve(target, ctx), nil
	})
	return result
}

// InvalidateTarget drops every cached resolution of a target.
func (r *Resolver) InvalidateTarget(guildID snowflake.ID, targetID int64) int {
	r.revisions.Delete(targetID)
	if r.cache == nil {
		return 0
	}
	return r.cache.InvalidatePrefix(TargetPrefix(guildID, targetID))
}

// InvalidateGuild drops every cached resolution in a guild.
func (r *Resolver) InvalidateGuild(guildID snowflake.ID) int {
	if r.cache == nil {
		return 0
	}
	return r.cache.InvalidatePrefix("config:" + guildID.String() + ":")
}

// revision returns the fingerprint of a target's configuration. Resolutions of
// an outdated target value land under a key the current value never reads.
func (r *Resolver) revision(target *types.TargetConfig) uint64 {
	if rev, ok := r.revisions.Load(target.ID); ok && rev.target == target {
		return rev.sum
	}

	sum := Fingerprint(target)
	r.revisions.Store(target.ID, revision{target: target, sum: sum})
	return sum
}

// Fingerprint hashes every part of a target that affects resolution.
func Fingerprint(target *types.TargetConfig) uint64 {
	data, err := sonic.Marshal(struct {
		Kind      enum.TargetKind
		ChannelID snowflake.ID
		NSFW      bool
		Settings  types.Settings
		Filter    *filter.Node
		Overrides []*types.Override
		UpdatedAt int64
	}{
		Kind:      target.Kind,
		ChannelID: target.ChannelID,
		NSFW:      target.NSFW,
		Settings:  target.Settings,
		Filter:    target.Filter,
		Overrides: target.Overrides,
		UpdatedAt: target.UpdatedAt.UnixNano(),
	})
	if err != nil {
		return uint64(target.UpdatedAt.UnixNano())
	}
	return xxhash.Sum64(data)
}

func (r *Resolver) resolve(target *types.TargetConfig, ctx *evalctx.Context) *EffectiveConfig {
	settings := target.Settings.Clone()

	var parentID snowflake.ID
	if ctx.Channel.IsThread {
		parentID = ctx.Channel.ParentID
	}
	roles := ctx.AuthorRoles()

	var applied []int64
	for _, o := range Ordered(target.Overrides) {
		if !o.Matches(ctx.Channel.ID, parentID, ctx.Channel.CategoryID, roles) {
			continue
		}
		if o.Filter != nil && !r.evaluator.Evaluate(o.Filter, ctx) {
			continue
		}
		settings = o.Patch.Apply(settings)
		applied = append(applied, o.ID)
	}

	return &EffectiveConfig{
		TargetID:         target.ID,
		GuildID:          target.GuildID,
		Kind:             target.Kind,
		ChannelID:        target.ChannelID,
		NSFW:             target.NSFW,
		Settings:         settings,
		Eligible:         r.evaluator.Evaluate(target.Filter, ctx),
		AppliedOverrides: applied,
	}
}

// cacheability reports whether every filter of the target reads stable fields
// only, and whether any of them reads the author id.
func (r *Resolver) cacheability(target *types.TargetConfig) (cacheable, keyedByAuthor bool) {
	registry := r.evaluator.Registry()
	for _, node := range target.Filters() {
		if !registry.IsStable(node) {
			return false, false
		}
		if slices.Contains(filter.Fields(node), filter.FieldAuthorID) {
			keyedByAuthor = true
		}
	}
	return true, keyedByAuthor
}

// Ordered returns the overrides in application order: category, then channel,
// then role, keeping declaration order within a scope. Later entries win.
func Ordered(overrides []*types.Override) []*types.Override {
	out := slices.Clone(overrides)
	slices.SortStableFunc(out, func(a, b *types.Override) int {
		return a.Scope.Rank() - b.Scope.Rank()
	})
	return out
}

// TargetPrefix is the cache key prefix of every resolution of a target.
func TargetPrefix(guildID snowflake.ID, targetID int64) string {
	return "config:" + guildID.String() + ":" + strconv.FormatInt(targetID, 10) + ":"
}

// CacheKey builds the cache key of a resolution from the target's revision and
// the context dimensions stable filters and override scopes can observe.
func CacheKey(guildID snowflake.ID, targetID int64, rev uint64, ctx *evalctx.Context, keyedByAuthor bool) string {
	h := xxhash.New()
	buf := make([]byte, 0, 128)

	for _, id := range ctx.ChannelChain() {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
	}
	buf = append(buf, 0xff, byte(ctx.Channel.Type))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(ctx.Channel.ForumParentID))
	buf = append(buf,
		flag(ctx.Channel.IsThread),
		flag(ctx.Channel.IsForumPost),
		flag(ctx.Channel.NSFW),
		flag(ctx.Message.IsForumStarter),
	)

	if ctx.Author != nil {
		roles := slices.Clone(ctx.Author.Roles)
		slices.Sort(roles)
		buf = append(buf, 0xfe, flag(ctx.Author.Bot))
		for _, role := range roles {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(role))
		}
		if keyedByAuthor {
			buf = append(buf, 0xfd)
			buf = binary.LittleEndian.AppendUint64(buf, uint64(ctx.Author.ID))
		}
	}

	_, _ = h.Write(buf)
	return TargetPrefix(guildID, targetID) + strconv.FormatUint(rev, 16) + ":" + strconv.FormatUint(h.Sum64(), 16)
}

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}
