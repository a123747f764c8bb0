package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			CREATE TABLE IF NOT EXISTS member_progresses (
				user_id       BIGINT PRIMARY KEY,
				xp            BIGINT NOT NULL DEFAULT 0 CHECK (xp >= 0),
				last_activity TIMESTAMPTZ
			)
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create member_progresses table: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`DROP TABLE IF EXISTS member_progresses`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop member_progresses table: %w", err)
		}

		return nil
	})
}
