package database

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
)

// Store adapts the repository to the persistence interface of the engine.
type Store struct {
	repo *Repository
}

// NewStore creates a Store over repo.
func NewStore(repo *Repository) *Store {
	return &Store{repo: repo}
}

// LoadTargetConfig returns a target with its overrides.
func (s *Store) LoadTargetConfig(ctx context.Context, targetID int64) (*types.TargetConfig, error) {
	return s.repo.Target().GetTarget(ctx, targetID)
}

// LoadGuildTargets returns every target of a guild.
func (s *Store) LoadGuildTargets(ctx context.Context, guildID snowflake.ID) ([]*types.TargetConfig, error) {
	return s.repo.Target().GetGuildTargets(ctx, guildID)
}

// LoadStarredEntry returns types.ErrEntryNotFound when the message has no entry on the target.
func (s *Store) LoadStarredEntry(ctx context.Context, messageID snowflake.ID, targetID int64) (*types.StarredEntry, error) {
	return s.repo.Entry().GetEntry(ctx, messageID, targetID)
}

// SaveStarredEntry upserts an entry.
func (s *Store) SaveStarredEntry(ctx context.Context, entry *types.StarredEntry) error {
	return s.repo.Entry().SaveEntry(ctx, entry)
}

// LoadPremiumTier returns the stored tier of a guild.
func (s *Store) LoadPremiumTier(ctx context.Context, guildID snowflake.ID) (enum.Tier, error) {
	return s.repo.Premium().GetTier(ctx, guildID)
}

// CountResources counts the starboards and autostar channels of a guild.
func (s *Store) CountResources(ctx context.Context, guildID snowflake.ID) (types.ResourceCounts, error) {
	return s.repo.Target().CountTargets(ctx, guildID)
}
