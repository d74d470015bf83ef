package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		statements := []string{
			`ALTER TABLE target_overrides
				ADD CONSTRAINT fk_target_overrides_target
				FOREIGN KEY (target_id) REFERENCES target_configs (id) ON DELETE CASCADE`,
			`ALTER TABLE starred_entries
				ADD CONSTRAINT fk_starred_entries_target
				FOREIGN KEY (target_id) REFERENCES target_configs (id) ON DELETE CASCADE`,
			`CREATE INDEX IF NOT EXISTS idx_target_configs_guild ON target_configs (guild_id, kind)`,
			`CREATE INDEX IF NOT EXISTS idx_target_overrides_target ON target_overrides (target_id, position)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_starred_entries_post ON starred_entries (post_id) WHERE post_id IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS idx_starred_entries_guild ON starred_entries (guild_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_guild_premiums_expiry ON guild_premiums (expires_at) WHERE expires_at IS NOT NULL`,
		}

		for _, stmt := range statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema change: %w", err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		statements := []string{
			`DROP INDEX IF EXISTS idx_guild_premiums_expiry`,
			`DROP INDEX IF EXISTS idx_starred_entries_guild`,
			`DROP INDEX IF EXISTS idx_starred_entries_post`,
			`DROP INDEX IF EXISTS idx_target_overrides_target`,
			`DROP INDEX IF EXISTS idx_target_configs_guild`,
			`ALTER TABLE starred_entries DROP CONSTRAINT IF EXISTS fk_starred_entries_target`,
			`ALTER TABLE target_overrides DROP CONSTRAINT IF EXISTS fk_target_overrides_target`,
		}

		for _, stmt := range statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to revert schema change: %w", err)
			}
		}
		return nil
	})
}
