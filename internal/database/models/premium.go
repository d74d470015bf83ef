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

// PremiumModel handles database operations for guild entitlements.
type PremiumModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPremium creates a PremiumModel.
func NewPremium(db *bun.DB, logger *zap.Logger) *PremiumModel {
	return &PremiumModel{
		db:     db,
		logger: logger.Named("db_premium"),
	}
}

// GetTier returns the tier in effect for a guild. Guilds without a row are free.
func (m *PremiumModel) GetTier(ctx context.Context, guildID snowflake.ID) (enum.Tier, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (enum.Tier, error) {
		premium := new(types.GuildPremium)
		err := m.db.NewSelect().Model(premium).
			Where("guild_id = ?", guildID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return enum.TierFree, nil
		}
		if err != nil {
			return enum.TierFree, fmt.Errorf("failed to get premium tier: %w (guildID=%d)", err, guildID)
		}
		return premium.ActiveTier(time.Now()), nil
	})
}

// SetTier records a guild's tier. A nil expiry grants it permanently.
func (m *PremiumModel) SetTier(ctx context.Context, guildID snowflake.ID, tier enum.Tier, expiresAt *time.Time) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		premium := &types.GuildPremium{
			GuildID:   guildID,
			Tier:      tier,
			ExpiresAt: expiresAt,
			UpdatedAt: time.Now(),
		}
		_, err := m.db.NewInsert().Model(premium).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("tier = EXCLUDED.tier").
			Set("expires_at = EXCLUDED.expires_at").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set premium tier: %w (guildID=%d)", err, guildID)
		}

		m.logger.Info("Updated guild tier",
			zap.Uint64("guildID", uint64(guildID)),
			zap.String("tier", tier.String()))
		return nil
	})
}

// GetExpired returns guilds whose entitlement expired before now.
func (m *PremiumModel) GetExpired(ctx context.Context, now time.Time) ([]snowflake.ID, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]snowflake.ID, error) {
		var ids []snowflake.ID
		err := m.db.NewSelect().Model((*types.GuildPremium)(nil)).
			Column("guild_id").
			Where("expires_at IS NOT NULL").
			Where("expires_at < ?", now).
			Where("tier != ?", enum.TierFree).
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to get expired entitlements: %w", err)
		}
		return ids, nil
	})
}
