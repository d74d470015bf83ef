package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx,
			`ALTER TABLE starred_entries ADD COLUMN IF NOT EXISTS source_deleted BOOLEAN NOT NULL DEFAULT false`)
		if err != nil {
			return fmt.Errorf("failed to add source_deleted: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `ALTER TABLE starred_entries DROP COLUMN IF EXISTS source_deleted`)
		if err != nil {
			return fmt.Errorf("failed to drop source_deleted: %w", err)
		}
		return nil
	})
}
