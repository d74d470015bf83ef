package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/metrics"
	"github.com/robalyx/starboard/pkg/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ActionSink executes actions against Discord.
type ActionSink interface {
	CreatePost(ctx context.Context, action types.Action) (snowflake.ID, error)
	UpdatePost(ctx context.Context, action types.Action) error
	DeletePost(ctx context.Context, action types.Action) error
	UploadAttachment(ctx context.Context, action types.Action) error
	AddReactions(ctx context.Context, action types.Action) error
	DeleteMessage(ctx context.Context, action types.Action) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Timeout bounds each attempt of a single action.
	Timeout time.Duration `koanf:"timeout"`
	// MaxConcurrent bounds the number of actions in flight.
	MaxConcurrent int64 `koanf:"max_concurrent"`
	Retry         utils.RetryOptions
}

// DefaultDispatcherConfig returns the built-in dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Timeout:       10 * time.Second,
		MaxConcurrent: 16,
		Retry:         utils.GetActionRetryOptions(),
	}
}

// Dispatcher executes the actions an engine emitted and reports post creation
// results back to it. Actions of one (target, message) pair run in order; pairs
// run concurrently.
type Dispatcher struct {
	engine  *Engine
	sink    ActionSink
	config  DispatcherConfig
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(engine *Engine, sink ActionSink, config DispatcherConfig, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &Dispatcher{
		engine:  engine,
		sink:    sink,
		config:  config,
		sem:     semaphore.NewWeighted(config.MaxConcurrent),
		metrics: m,
		logger:  logger.Named("dispatcher"),
	}
}

type groupKey struct {
	targetID  int64
	messageID snowflake.ID
}

// Dispatch executes actions and returns the joined errors of the ones that failed.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []types.Action) error {
	if len(actions) == 0 {
		return nil
	}

	var (
		order  []groupKey
		groups = make(map[groupKey][]types.Action)
	)
	for _, a := range actions {
		k := groupKey{a.TargetID, a.MessageID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], a)
	}

	var (
		p    = pool.New().WithContext(ctx)
		mu   sync.Mutex
		errs []error
	)
	for _, k := range order {
		group := groups[k]
		p.Go(func(ctx context.Context) error {
			if err := d.runGroup(ctx, group); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = p.Wait()

	return errors.Join(errs...)
}

// runGroup runs the actions of one pair in order. Uploads take the id of the
// post created before them and are dropped when that creation failed.
func (d *Dispatcher) runGroup(ctx context.Context, actions []types.Action) error {
	var (
		errs       []error
		postID     snowflake.ID
		postFailed bool
	)

	for i := 0; i < len(actions); i++ {
		a := actions[i]

		switch a.Kind {
		case enum.ActionKindCreatePost:
			id, err := d.createPost(ctx, a)
			if err != nil {
				postFailed = true
				errs = append(errs, err)
				continue
			}
			postID, postFailed = id, false

			followUp, err := d.engine.RecordPost(ctx, a.GuildID, a.TargetID, a.MessageID, id)
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to record post: %w (postID=%d)", err, id))
				continue
			}
			// The entry may have been removed while the post was created
			actions = append(actions, followUp...)

		case enum.ActionKindUploadAttachment:
			if a.PostID == 0 {
				if postFailed || postID == 0 {
					continue
				}
				a.PostID = postID
			}
			if err := d.execute(ctx, a); err != nil {
				errs = append(errs, err)
			}

		default:
			if err := d.execute(ctx, a); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) createPost(ctx context.Context, a types.Action) (snowflake.ID, error) {
	id, err := call(ctx, d, a, func(ctx context.Context) (snowflake.ID, error) {
		return d.sink.CreatePost(ctx, a)
	})
	if err == nil {
		return id, nil
	}

	if ferr := d.engine.PostFailed(context.WithoutCancel(ctx), a.GuildID, a.TargetID, a.MessageID); ferr != nil {
		d.logger.Error("Failed to reopen entry after failed post",
			zap.Error(ferr),
			zap.Uint64("messageID", uint64(a.MessageID)),
			zap.Int64("targetID", a.TargetID))
	}
	return 0, err
}

func (d *Dispatcher) execute(ctx context.Context, a types.Action) error {
	_, err := call(ctx, d, a, func(ctx context.Context) (struct{}, error) {
		var err error
		switch a.Kind {
		case enum.ActionKindUpdatePost:
			err = d.sink.UpdatePost(ctx, a)
		case enum.ActionKindDeletePost:
			err = d.sink.DeletePost(ctx, a)
		case enum.ActionKindUploadAttachment:
			err = d.sink.UploadAttachment(ctx, a)
		case enum.ActionKindAddReactions:
			err = d.sink.AddReactions(ctx, a)
		case enum.ActionKindDeleteMessage:
			err = d.sink.DeleteMessage(ctx, a)
		case enum.ActionKindCreatePost:
			_, err = d.sink.CreatePost(ctx, a)
		default:
			err = fmt.Errorf("%w: unknown action kind %d", utils.ErrPermanent, a.Kind)
		}
		return struct{}{}, err
	})
	return err
}

// call runs one action under the concurrency bound with a timeout per attempt and retries.
func call[T any](ctx context.Context, d *Dispatcher, a types.Action, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer d.sem.Release(1)

	result, err := utils.WithRetry(ctx, func() (T, error) {
		attemptCtx := ctx
		if d.config.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, d.config.Timeout)
			defer cancel()
		}
		return fn(attemptCtx)
	}, d.config.Retry)

	d.metrics.ActionDispatched(a.Kind.String(), err)
	if err != nil {
		d.logger.Warn("Action failed",
			zap.Error(err),
			zap.String("kind", a.Kind.String()),
			zap.Uint64("guildID", uint64(a.GuildID)),
			zap.Uint64("messageID", uint64(a.MessageID)),
			zap.Int64("targetID", a.TargetID))
		return zero, fmt.Errorf("failed to %s: %w (messageID=%d, targetID=%d)", a.Kind, err, a.MessageID, a.TargetID)
	}
	return result, nil
}
