package progression_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/skysanctuary/warden/internal/database/types"
	"github.com/skysanctuary/warden/internal/progression"
	"github.com/skysanctuary/warden/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProgressStore is an in-memory ProgressStore.
type fakeProgressStore struct {
	mu      sync.Mutex
	records map[uint64]*types.MemberProgress
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{records: make(map[uint64]*types.MemberProgress)}
}

func (s *fakeProgressStore) getLocked(userID uint64) *types.MemberProgress {
	record, ok := s.records[userID]
	if !ok {
		record = &types.MemberProgress{UserID: userID}
		s.records[userID] = record
	}
	return record
}

func (s *fakeProgressStore) GetOrInit(_ context.Context, userID uint64) (*types.MemberProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.getLocked(userID)
	snapshot := *record
	return &snapshot, nil
}

func (s *fakeProgressStore) ApplyDelta(_ context.Context, userID uint64, xpDelta int64, activity time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.getLocked(userID)
	record.XP = max(record.XP+xpDelta, 0)
	record.LastActivity = activity
	return record.XP, nil
}

func (s *fakeProgressStore) AddXP(_ context.Context, userID uint64, xpDelta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.getLocked(userID)
	record.XP = max(record.XP+xpDelta, 0)
	return record.XP, nil
}

func (s *fakeProgressStore) RecordRating(_ context.Context, userID uint64, stars int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.getLocked(userID)
	record.StarsTotal += int64(stars)
	record.RatingsCount++
	return nil
}

func newLedger(store progression.ProgressStore) *progression.Ledger {
	return progression.NewLedger(store, &config.Progression{
		MessageXP:       5,
		CooldownSeconds: 60,
		FinishBonusXP:   100,
	}, zap.NewNop())
}

func TestAwardActivityCooldownGating(t *testing.T) {
	t.Parallel()

	ledger := newLedger(newFakeProgressStore())
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// First event on a fresh record awards.
	xp, awarded, err := ledger.AwardActivity(ctx, 1, base)
	require.NoError(t, err)
	assert.True(t, awarded)
	assert.Equal(t, int64(5), xp)

	// Second event inside the cooldown window does not.
	xp, awarded, err = ledger.AwardActivity(ctx, 1, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, awarded)
	assert.Equal(t, int64(5), xp)

	// Event exactly at the cooldown boundary awards again.
	xp, awarded, err = ledger.AwardActivity(ctx, 1, base.Add(60*time.Second))
	require.NoError(t, err)
	assert.True(t, awarded)
	assert.Equal(t, int64(10), xp)
}

func TestAwardBonusIgnoresCooldown(t *testing.T) {
	t.Parallel()

	store := newFakeProgressStore()
	ledger := newLedger(store)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, _, err := ledger.AwardActivity(ctx, 1, base)
	require.NoError(t, err)

	// Bonus XP lands immediately and does not move the activity timestamp.
	xp, err := ledger.AwardBonus(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(105), xp)

	progress, err := ledger.Progress(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, base, progress.LastActivity)
}

func TestAwardBonusNegativeCorrection(t *testing.T) {
	t.Parallel()

	ledger := newLedger(newFakeProgressStore())
	ctx := context.Background()

	_, err := ledger.AwardBonus(ctx, 1, 100)
	require.NoError(t, err)

	// A negative correction on an existing record must actually subtract.
	xp, err := ledger.AwardBonus(ctx, 1, -60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), xp)

	// Over-correction clamps at zero instead of going negative.
	xp, err = ledger.AwardBonus(ctx, 1, -500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), xp)
}

func TestRatingAggregation(t *testing.T) {
	t.Parallel()

	ledger := newLedger(newFakeProgressStore())
	ctx := context.Background()

	for _, stars := range []int{5, 3, 4} {
		require.NoError(t, ledger.RecordRating(ctx, 7, stars))
	}

	progress, err := ledger.Progress(ctx, 7)
	require.NoError(t, err)

	average, ok := progress.AverageRating()
	require.True(t, ok)
	assert.InDelta(t, 4.00, average, 0.001)
	assert.Equal(t, int64(3), progress.RatingsCount)
}

func TestRatingAggregationNoRatings(t *testing.T) {
	t.Parallel()

	ledger := newLedger(newFakeProgressStore())

	progress, err := ledger.Progress(context.Background(), 8)
	require.NoError(t, err)

	_, ok := progress.AverageRating()
	assert.False(t, ok, "zero ratings must report no-ratings, not divide by zero")
}

func TestConcurrentAwardsSerialize(t *testing.T) {
	t.Parallel()

	store := newFakeProgressStore()
	ledger := newLedger(store)
	ctx := context.Background()

	// Many concurrent bonus awards for the same member must all land.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.AwardBonus(ctx, 9, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	progress, err := ledger.Progress(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(500), progress.XP)
}
