// Package scheduler runs the bot's periodic maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jonboulle/clockwork"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of periodic work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context //nolint:containedctx // handed to every job run
	cancel context.CancelFunc
	logger *zap.Logger
}

// New creates a stopped Scheduler. Overlapping runs of a job are skipped.
func New(logger *zap.Logger) *Scheduler {
	logger = logger.Named("scheduler")
	cl := cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add registers job under spec, a cron expression or descriptor such as "@every 5m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.Error("Job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Debug("Job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}

	s.logger.Info("Scheduled job", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// Sweeper reclaims idle rate windows.
type Sweeper interface {
	Sweep() int
}

// SweepJob reclaims cooldown windows nobody used for a while.
func SweepJob(sweeper Sweeper, logger *zap.Logger) Job {
	return func(context.Context) error {
		if n := sweeper.Sweep(); n > 0 {
			logger.Debug("Swept idle cooldown windows", zap.Int("count", n))
		}
		return nil
	}
}

// EntitlementStore reads and writes persisted entitlements.
type EntitlementStore interface {
	GetExpired(ctx context.Context, now time.Time) ([]snowflake.ID, error)
	SetTier(ctx context.Context, guildID snowflake.ID, tier enum.Tier, expiresAt *time.Time) error
}

// TierPublisher announces tier changes to running bots.
type TierPublisher interface {
	Publish(ctx context.Context, guildID snowflake.ID, tier enum.Tier) error
}

// ExpiryJob downgrades guilds whose entitlement ran out.
func ExpiryJob(store EntitlementStore, publisher TierPublisher, clock clockwork.Clock, logger *zap.Logger) Job {
	return func(ctx context.Context) error {
		expired, err := store.GetExpired(ctx, clock.Now())
		if err != nil {
			return err
		}

		var errs []error
		for _, guildID := range expired {
			if err := store.SetTier(ctx, guildID, enum.TierFree, nil); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := publisher.Publish(ctx, guildID, enum.TierFree); err != nil {
				errs = append(errs, err)
				continue
			}
			logger.Info("Entitlement expired", zap.Uint64("guildID", uint64(guildID)))
		}
		return errors.Join(errs...)
	}
}

// cronLogger routes cron's own logs through zap.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
