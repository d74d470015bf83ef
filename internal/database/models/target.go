package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// TargetModel handles database operations for starboards, autostar channels and their overrides.
type TargetModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewTarget creates a TargetModel.
func NewTarget(db *bun.DB, logger *zap.Logger) *TargetModel {
	return &TargetModel{
		db:     db,
		logger: logger.Named("db_target"),
	}
}

// GetTarget returns a target with its overrides in declaration order.
func (m *TargetModel) GetTarget(ctx context.Context, targetID int64) (*types.TargetConfig, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.TargetConfig, error) {
		target := new(types.TargetConfig)
		err := m.db.NewSelect().Model(target).
			Relation("Overrides", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("o.position ASC")
			}).
			Where("tc.id = ?", targetID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w (targetID=%d)", types.ErrTargetNotFound, targetID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get target: %w (targetID=%d)", err, targetID)
		}
		return target, nil
	})
}

// GetGuildTargets returns every target of a guild ordered by id.
func (m *TargetModel) GetGuildTargets(ctx context.Context, guildID snowflake.ID) ([]*types.TargetConfig, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.TargetConfig, error) {
		var targets []*types.TargetConfig
		err := m.db.NewSelect().Model(&targets).
			Relation("Overrides", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("o.position ASC")
			}).
			Where("tc.guild_id = ?", guildID).
			Order("tc.id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get guild targets: %w (guildID=%d)", err, guildID)
		}
		return targets, nil
	})
}

// SaveTarget inserts or updates a target and replaces its overrides in one transaction.
func (m *TargetModel) SaveTarget(ctx context.Context, target *types.TargetConfig) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		target.UpdatedAt = now

		if target.ID == 0 {
			target.CreatedAt = now
			if _, err := tx.NewInsert().Model(target).Returning("id").Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert target: %w (guildID=%d)", err, target.GuildID)
			}
		} else {
			res, err := tx.NewUpdate().Model(target).
				Column("kind", "channel_id", "name", "nsfw", "settings", "filter", "updated_at").
				WherePK().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to update target: %w (targetID=%d)", err, target.ID)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("%w (targetID=%d)", types.ErrTargetNotFound, target.ID)
			}
		}

		_, err := tx.NewDelete().Model((*types.Override)(nil)).
			Where("target_id = ?", target.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear overrides: %w (targetID=%d)", err, target.ID)
		}

		if len(target.Overrides) == 0 {
			return nil
		}
		for i, o := range target.Overrides {
			o.ID = 0
			o.TargetID = target.ID
			o.Position = i
		}
		if _, err := tx.NewInsert().Model(&target.Overrides).Returning("id").Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert overrides: %w (targetID=%d)", err, target.ID)
		}
		return nil
	})
}

// DeleteTarget removes a target. Overrides and entries are removed by cascade.
func (m *TargetModel) DeleteTarget(ctx context.Context, guildID snowflake.ID, targetID int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().Model((*types.TargetConfig)(nil)).
			Where("id = ?", targetID).
			Where("guild_id = ?", guildID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete target: %w (targetID=%d)", err, targetID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w (targetID=%d)", types.ErrTargetNotFound, targetID)
		}

		m.logger.Debug("Deleted target",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Int64("targetID", targetID))
		return nil
	})
}

// CountTargets counts the starboards and autostar channels of a guild.
func (m *TargetModel) CountTargets(ctx context.Context, guildID snowflake.ID) (types.ResourceCounts, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (types.ResourceCounts, error) {
		var rows []struct {
			Kind  enum.TargetKind `bun:"kind"`
			Count int             `bun:"count"`
		}
		err := m.db.NewSelect().Model((*types.TargetConfig)(nil)).
			Column("kind").
			ColumnExpr("COUNT(*) AS count").
			Where("guild_id = ?", guildID).
			Group("kind").
			Scan(ctx, &rows)
		if err != nil {
			return types.ResourceCounts{}, fmt.Errorf("failed to count targets: %w (guildID=%d)", err, guildID)
		}

		var counts types.ResourceCounts
		for _, r := range rows {
			switch r.Kind {
			case enum.TargetKindStarboard:
				counts.Starboards = r.Count
			case enum.TargetKindAutostar:
				counts.AutostarChannels = r.Count
			}
		}
		return counts, nil
	})
}
