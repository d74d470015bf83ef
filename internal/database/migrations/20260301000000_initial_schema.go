package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.GuildPremium)(nil),
			(*types.TargetConfig)(nil),
			(*types.Override)(nil),
			(*types.StarredEntry)(nil),
		}

		for _, model := range models {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.StarredEntry)(nil),
			(*types.Override)(nil),
			(*types.TargetConfig)(nil),
			(*types.GuildPremium)(nil),
		}

		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}
		return nil
	})
}
