package models

import (
	"context"
	"fmt"
	"time"

	"github.com/skysanctuary/warden/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ProgressModel handles database operations for member progression records.
// All mutations are single-statement upserts so a concurrent writer can never
// cause a lost update at the storage layer.
type ProgressModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewProgress creates a new progress model instance.
func NewProgress(db *bun.DB, logger *zap.Logger) *ProgressModel {
	return &ProgressModel{
		db:     db,
		logger: logger.Named("db_progress"),
	}
}

// GetOrInit returns the progression record for a member, materializing the
// zero-value record on first access.
func (m *ProgressModel) GetOrInit(ctx context.Context, userID uint64) (*types.MemberProgress, error) {
	progress := &types.MemberProgress{UserID: userID}

	_, err := m.db.NewInsert().
		Model(progress).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize progress record: %w", err)
	}

	err = m.db.NewSelect().
		Model(progress).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress record: %w", err)
	}

	return progress, nil
}

// ApplyDelta adds xpDelta to the member's XP and sets the activity timestamp,
// creating the record if needed. XP is clamped at zero so administrative
// corrections cannot drive it negative. Returns the new XP total.
func (m *ProgressModel) ApplyDelta(ctx context.Context, userID uint64, xpDelta int64, activity time.Time) (int64, error) {
	var newXP int64

	// The INSERT value is clamped for fresh rows; the UPDATE arm re-binds the
	// raw delta so negative corrections apply to existing rows too.
	err := m.db.NewRaw(`
		INSERT INTO member_progresses (user_id, xp, last_activity)
		VALUES (?, GREATEST(?, 0), ?)
		ON CONFLICT (user_id) DO UPDATE
		SET xp = GREATEST(member_progresses.xp + ?, 0),
		    last_activity = EXCLUDED.last_activity
		RETURNING xp
	`, userID, xpDelta, activity, xpDelta).Scan(ctx, &newXP)
	if err != nil {
		return 0, fmt.Errorf("failed to apply XP delta: %w", err)
	}

	return newXP, nil
}

// AddXP adds xpDelta to the member's XP without touching the activity
// timestamp. Used for bonus awards that must not affect cooldown gating.
func (m *ProgressModel) AddXP(ctx context.Context, userID uint64, xpDelta int64) (int64, error) {
	var newXP int64

	err := m.db.NewRaw(`
		INSERT INTO member_progresses (user_id, xp)
		VALUES (?, GREATEST(?, 0))
		ON CONFLICT (user_id) DO UPDATE
		SET xp = GREATEST(member_progresses.xp + ?, 0)
		RETURNING xp
	`, userID, xpDelta, xpDelta).Scan(ctx, &newXP)
	if err != nil {
		return 0, fmt.Errorf("failed to add XP: %w", err)
	}

	return newXP, nil
}

// RecordRating adds a 1-5 star rating to the member's aggregate.
func (m *ProgressModel) RecordRating(ctx context.Context, userID uint64, stars int) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("%w: %d", ErrInvalidStars, stars)
	}

	_, err := m.db.NewRaw(`
		INSERT INTO member_progresses (user_id, xp, stars_total, ratings_count)
		VALUES (?, 0, ?, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET stars_total = member_progresses.stars_total + EXCLUDED.stars_total,
		    ratings_count = member_progresses.ratings_count + 1
	`, userID, stars).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record rating: %w", err)
	}

	return nil
}
