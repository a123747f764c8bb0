package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		// Additive columns with defaults so existing rows need no rewrite
		columns := []string{"stars_total", "ratings_count"}

		for _, column := range columns {
			_, err := db.NewRaw(fmt.Sprintf(`
				ALTER TABLE member_progresses
				ADD COLUMN IF NOT EXISTS %s BIGINT NOT NULL DEFAULT 0 CHECK (%s >= 0)
			`, column, column)).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to add %s column: %w", column, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		columns := []string{"stars_total", "ratings_count"}

		for _, column := range columns {
			_, err := db.NewRaw(fmt.Sprintf(`
				ALTER TABLE member_progresses DROP COLUMN IF EXISTS %s
			`, column)).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop %s column: %w", column, err)
			}
		}

		return nil
	})
}
