// Package engine is the entry point of the decision core. It turns gateway
// events into starboard actions by wiring the context builder, the resolver,
// the governor and the entry lifecycle together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jonboulle/clockwork"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/entry"
	"github.com/robalyx/starboard/internal/evalctx"
	"github.com/robalyx/starboard/internal/filter"
	"github.com/robalyx/starboard/internal/governor"
	"github.com/robalyx/starboard/internal/metrics"
	"github.com/robalyx/starboard/internal/resolver"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Store is the persistence the engine reads targets, tiers and entries from.
// LoadTargetConfig returns types.ErrTargetNotFound for unknown targets.
type Store interface {
	entry.Store
	LoadTargetConfig(ctx context.Context, targetID int64) (*types.TargetConfig, error)
	LoadGuildTargets(ctx context.Context, guildID snowflake.ID) ([]*types.TargetConfig, error)
	LoadPremiumTier(ctx context.Context, guildID snowflake.ID) (enum.Tier, error)
	CountResources(ctx context.Context, guildID snowflake.ID) (types.ResourceCounts, error)
}

// EntitlementSource reports the current tier of a guild.
type EntitlementSource interface {
	Refresh(ctx context.Context, guildID snowflake.ID) (enum.Tier, error)
}

// Config configures the engine.
type Config struct {
	Filter   filter.Limits
	Governor governor.Config
	Entry    entry.Policy
	// OldMessageAge is the age after which edits are rate limited per channel.
	OldMessageAge time.Duration
}

// DefaultConfig returns the built-in engine configuration.
func DefaultConfig() Config {
	return Config{
		Filter:        filter.DefaultLimits,
		Governor:      governor.DefaultConfig(),
		OldMessageAge: time.Hour,
	}
}

// Engine decides which actions follow from an event.
type Engine struct {
	store        Store
	entitlements EntitlementSource
	config       Config
	builder      *evalctx.Builder
	evaluator    *filter.Evaluator
	resolver     *resolver.Resolver
	governor     *governor.Governor
	entries      *entry.Manager
	targets      *cache.Cache[[]*types.TargetConfig]
	locks        *cache.Cache[*types.PremiumLock]
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	clock        clockwork.Clock
	logger       *zap.Logger
}

// New creates an Engine. The entitlement source may be nil, in which case tiers
// are read from the store. Metrics may be nil.
func New(
	store Store, entitlements EntitlementSource, config Config, m *metrics.Metrics,
	clock clockwork.Clock, logger *zap.Logger,
) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger = logger.Named("engine")

	locks := cache.New[*types.PremiumLock]("premium", m)
	evaluator := filter.NewEvaluator(filter.Default(), max(config.Filter.MaxRegexLength, config.Governor.PremiumQuotas.RegexLength))
	gov := governor.New(config.Governor, clock, locks, m, logger)

	return &Engine{
		store:        store,
		entitlements: entitlements,
		config:       config,
		builder:      evalctx.NewBuilder(clock),
		evaluator:    evaluator,
		resolver:     resolver.New(evaluator, cache.New[*resolver.EffectiveConfig]("config", m), logger),
		governor:     gov,
		entries:      entry.NewManager(store, gov, config.Entry, clock, logger),
		targets:      cache.New[[]*types.TargetConfig]("targets", m),
		locks:        locks,
		metrics:      m,
		tracer:       otel.Tracer("engine"),
		clock:        clock,
		logger:       logger,
	}
}

// Governor returns the engine's governor.
func (e *Engine) Governor() *governor.Governor {
	return e.governor
}

// HandleEvent decides the actions that follow from a raw event.
//
// Targets of the event are processed concurrently. When some of them fail, the
// actions of the others are still returned together with the joined error; their
// state changes are already durable and their actions must be dispatched.
// Store failures unwrap to types.ErrPersistenceUnavailable and the event may be
// redelivered.
func (e *Engine) HandleEvent(ctx context.Context, raw *evalctx.RawEvent) ([]types.Action, error) {
	start := e.clock.Now()

	ctx, span := e.tracer.Start(ctx, "engine.HandleEvent", trace.WithAttributes(
		attribute.String("event.kind", raw.Kind.String()),
		attribute.String("guild.id", raw.GuildID.String()),
	))
	defer span.End()

	actions, err := e.handleEvent(ctx, raw)

	e.metrics.ObserveEvent(raw.Kind.String(), err, e.clock.Since(start))
	for i := range actions {
		e.metrics.ActionEmitted(actions[i].Kind.String())
	}

	span.SetAttributes(attribute.Int("actions", len(actions)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return actions, err
}

func (e *Engine) handleEvent(ctx context.Context, raw *evalctx.RawEvent) ([]types.Action, error) {
	evctx, err := e.builder.Build(raw)
	if err != nil {
		return nil, err
	}

	targets, err := e.guildTargets(ctx, evctx.GuildID)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}

	lock, err := e.premiumLock(ctx, evctx.GuildID)
	if err != nil {
		return nil, err
	}
	tier := lock.Tier

	var handle func(ctx context.Context, target *types.TargetConfig) ([]types.Action, error)
	switch evctx.Kind {
	case enum.EventKindReactionAdd, enum.EventKindReactionRemove:
		handle = func(ctx context.Context, t *types.TargetConfig) ([]types.Action, error) {
			return e.handleVote(ctx, evctx, t, tier)
		}
	case enum.EventKindMessageCreate:
		handle = func(_ context.Context, t *types.TargetConfig) ([]types.Action, error) {
			return e.handleAutostar(evctx, t, tier), nil
		}
	case enum.EventKindMessageUpdate:
		if !e.allowEdit(evctx, tier) {
			return nil, nil
		}
		handle = func(ctx context.Context, t *types.TargetConfig) ([]types.Action, error) {
			return e.handleEdit(ctx, evctx, t, tier)
		}
	case enum.EventKindMessageDelete:
		handle = func(ctx context.Context, t *types.TargetConfig) ([]types.Action, error) {
			return e.handleDelete(ctx, evctx, t, tier)
		}
	default:
		return nil, nil
	}

	return e.fanOut(ctx, targets, handle)
}

// fanOut runs handle for every target concurrently and concatenates the actions
// in target order.
func (e *Engine) fanOut(
	ctx context.Context, targets []*types.TargetConfig,
	handle func(ctx context.Context, target *types.TargetConfig) ([]types.Action, error),
) ([]types.Action, error) {
	if len(targets) == 1 {
		return handle(ctx, targets[0])
	}

	var (
		p       = pool.New().WithContext(ctx)
		results = make([][]types.Action, len(targets))
		errs    = make([]error, len(targets))
	)

	for i, target := range targets {
		p.Go(func(ctx context.Context) error {
			results[i], errs[i] = handle(ctx, target)
			return nil
		})
	}
	_ = p.Wait()

	var actions []types.Action
	for _, r := range results {
		actions = append(actions, r...)
	}
	return actions, errors.Join(errs...)
}

// entryTarget builds the lifecycle view of a target from its effective settings.
func entryTarget(target *types.TargetConfig, settings *types.Settings, tier enum.Tier) entry.Target {
	return entry.Target{
		ID:              target.ID,
		GuildID:         target.GuildID,
		ChannelID:       target.ChannelID,
		NSFW:            target.NSFW,
		RequiredUpvotes: settings.RequiredUpvotes,
		RemoveBelow:     settings.RemoveBelow,
		LinkEdits:       settings.LinkEdits,
		Tier:            tier,
	}
}

// persistence marks an error as a store failure unless it already is one.
func persistence(err error) error {
	if err == nil || errors.Is(err, types.ErrPersistenceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrPersistenceUnavailable, err)
}
