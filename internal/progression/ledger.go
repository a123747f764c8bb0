package progression

import (
	"context"
	"time"

	"github.com/skysanctuary/warden/internal/database/types"
	"github.com/skysanctuary/warden/internal/setup/config"
	"github.com/skysanctuary/warden/pkg/utils"
	"go.uber.org/zap"
)

// ProgressStore is the persistence surface the ledger needs, implemented by
// models.ProgressModel.
type ProgressStore interface {
	GetOrInit(ctx context.Context, userID uint64) (*types.MemberProgress, error)
	ApplyDelta(ctx context.Context, userID uint64, xpDelta int64, activity time.Time) (int64, error)
	AddXP(ctx context.Context, userID uint64, xpDelta int64) (int64, error)
	RecordRating(ctx context.Context, userID uint64, stars int) error
}

// Ledger is the only path to member progression state. Every read-modify-write
// sequence for a member runs under that member's lock, so uncoordinated
// triggers (chat activity, commands, the roster job) cannot interleave and
// lose an update.
type Ledger struct {
	store     ProgressStore
	locks     *utils.KeyedMutex[uint64]
	messageXP int64
	cooldown  time.Duration
	logger    *zap.Logger
}

// NewLedger creates a ledger over the given store.
func NewLedger(store ProgressStore, cfg *config.Progression, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:     store,
		locks:     utils.NewKeyedMutex[uint64](),
		messageXP: cfg.MessageXP,
		cooldown:  time.Duration(cfg.CooldownSeconds) * time.Second,
		logger:    logger.Named("ledger"),
	}
}

// AwardActivity credits cooldown-gated chat XP. The award is granted only if
// the member's last XP-earning activity is at least one cooldown interval in
// the past; otherwise the event is ignored. Returns the member's XP total and
// whether an award was made.
func (l *Ledger) AwardActivity(ctx context.Context, userID uint64, now time.Time) (int64, bool, error) {
	l.locks.Lock(userID)
	defer l.locks.Unlock(userID)

	progress, err := l.store.GetOrInit(ctx, userID)
	if err != nil {
		return 0, false, err
	}

	if !progress.LastActivity.IsZero() && now.Sub(progress.LastActivity) < l.cooldown {
		return progress.XP, false, nil
	}

	newXP, err := l.store.ApplyDelta(ctx, userID, l.messageXP, now)
	if err != nil {
		return 0, false, err
	}

	return newXP, true, nil
}

// AwardBonus credits XP unconditionally without touching the activity
// timestamp, so bonus awards never interfere with chat cooldown gating.
func (l *Ledger) AwardBonus(ctx context.Context, userID uint64, amount int64) (int64, error) {
	l.locks.Lock(userID)
	defer l.locks.Unlock(userID)

	newXP, err := l.store.AddXP(ctx, userID, amount)
	if err != nil {
		return 0, err
	}

	l.logger.Debug("Awarded bonus XP",
		zap.Uint64("userID", userID),
		zap.Int64("amount", amount),
		zap.Int64("newXP", newXP))

	return newXP, nil
}

// RecordRating adds a 1-5 star rating to the member's aggregate.
func (l *Ledger) RecordRating(ctx context.Context, userID uint64, stars int) error {
	l.locks.Lock(userID)
	defer l.locks.Unlock(userID)

	return l.store.RecordRating(ctx, userID, stars)
}

// Progress returns the member's progression record, materializing the
// zero-value record on first access.
func (l *Ledger) Progress(ctx context.Context, userID uint64) (*types.MemberProgress, error) {
	l.locks.Lock(userID)
	defer l.locks.Unlock(userID)

	return l.store.GetOrInit(ctx, userID)
}
