package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// EntryModel handles database operations for starred entries.
type EntryModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewEntry creates an EntryModel.
func NewEntry(db *bun.DB, logger *zap.Logger) *EntryModel {
	return &EntryModel{
		db:     db,
		logger: logger.Named("db_entry"),
	}
}

// GetEntry returns the entry of a (message, target) pair or types.ErrEntryNotFound.
func (m *EntryModel) GetEntry(ctx context.Context, messageID snowflake.ID, targetID int64) (*types.StarredEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.StarredEntry, error) {
		entry := new(types.StarredEntry)
		err := m.db.NewSelect().Model(entry).
			Where("message_id = ?", messageID).
			Where("target_id = ?", targetID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrEntryNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get entry: %w (messageID=%d, targetID=%d)", err, messageID, targetID)
		}
		return entry, nil
	})
}

// SaveEntry upserts an entry.
func (m *EntryModel) SaveEntry(ctx context.Context, entry *types.StarredEntry) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(entry).
			On("CONFLICT (message_id, target_id) DO UPDATE").
			Set("vote_count = EXCLUDED.vote_count").
			Set("votes = EXCLUDED.votes").
			Set("post_id = EXCLUDED.post_id").
			Set("state = EXCLUDED.state").
			Set("frozen = EXCLUDED.frozen").
			Set("trashed = EXCLUDED.trashed").
			Set("forced = EXCLUDED.forced").
			Set("nsfw = EXCLUDED.nsfw").
			Set("post_failed = EXCLUDED.post_failed").
			Set("source_deleted = EXCLUDED.source_deleted").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save entry: %w (messageID=%d, targetID=%d)", err, entry.MessageID, entry.TargetID)
		}
		return nil
	})
}

// GetEntryByPost returns the entry whose post has the given id.
func (m *EntryModel) GetEntryByPost(ctx context.Context, postID snowflake.ID) (*types.StarredEntry, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.StarredEntry, error) {
		entry := new(types.StarredEntry)
		err := m.db.NewSelect().Model(entry).
			Where("post_id = ?", postID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrEntryNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get entry by post: %w (postID=%d)", err, postID)
		}
		return entry, nil
	})
}
