package giveaway_test

import (
	"testing"
	"time"

	"github.com/skysanctuary/warden/internal/giveaway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConcludeSamplesDistinctWinners(t *testing.T) {
	t.Parallel()

	tracker := giveaway.NewTracker(zap.NewNop())
	pool := []uint64{1, 2, 3, 4, 5, 6, 7, 8}

	winners, err := tracker.Conclude(100, 200, pool, 3, "Kismet Feather")
	require.NoError(t, err)
	require.Len(t, winners, 3)

	seen := make(map[uint64]struct{})
	for _, winner := range winners {
		assert.Contains(t, pool, winner)
		_, dup := seen[winner]
		assert.False(t, dup, "winners must be distinct")
		seen[winner] = struct{}{}
	}
}

func TestConcludeClampsWinnerCount(t *testing.T) {
	t.Parallel()

	tracker := giveaway.NewTracker(zap.NewNop())

	winners, err := tracker.Conclude(100, 200, []uint64{1, 2}, 5, "prize")
	require.NoError(t, err)
	assert.Len(t, winners, 2)
}

func TestConcludeEmptyPool(t *testing.T) {
	t.Parallel()

	tracker := giveaway.NewTracker(zap.NewNop())

	winners, err := tracker.Conclude(100, 200, nil, 3, "prize")
	require.NoError(t, err)
	assert.Empty(t, winners)

	// No claim state is registered for an empty giveaway.
	result, _ := tracker.TryClaim(100, 1)
	assert.Equal(t, giveaway.ClaimRejectedUnknown, result)
}

func TestConcludeRejectsZeroWinners(t *testing.T) {
	t.Parallel()

	tracker := giveaway.NewTracker(zap.NewNop())

	_, err := tracker.Conclude(100, 200, []uint64{1}, 0, "prize")
	assert.ErrorIs(t, err, giveaway.ErrNoWinners)
}

func TestTryClaimExactlyOnce(t *testing.T) {
	t.Parallel()

	tracker := giveaway.NewTracker(zap.NewNop())

	// Force a deterministic winner set {A, B} by making the pool exactly
	// the winners.
	winners, err := tracker.Conclude(100, 200, []uint64{10, 20}, 2, "prize")
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{10, 20}, winners)

	// First claim by a winner is accepted.
	result, claim := tracker.TryClaim(100, 10)
	assert.Equal(t, giveaway.ClaimAccepted, result)
	require.NotNil(t, claim)
	assert.Equal(t, "prize", claim.Prize)

	// A repeat claim by the same winner is rejected.
	result, _ = tracker.TryClaim(100, 10)
	assert.Equal(t, giveaway.ClaimRejectedAlreadyClaimed, result)

	// A claim by a non-winner is rejected.
	result, _ = tracker.TryClaim(100, 30)
	assert.Equal(t, giveaway.ClaimRejectedNotWinner, result)

	// A claim against an untracked message is rejected.
	result, _ = tracker.TryClaim(999, 10)
	assert.Equal(t, giveaway.ClaimRejectedUnknown, result)

	// Final claimed set is exactly {10}.
	result, claim = tracker.TryClaim(100, 20)
	assert.Equal(t, giveaway.ClaimAccepted, result)
	assert.Len(t, claim.Claimed, 2)
	assert.Contains(t, claim.Claimed, uint64(10))
}

func TestUnclaimRestoresClaim(t *testing.T) {
	t.Parallel()

	tracker := giveaway.NewTracker(zap.NewNop())

	winners, err := tracker.Conclude(100, 200, []uint64{10}, 1, "prize")
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, winners)

	result, _ := tracker.TryClaim(100, 10)
	require.Equal(t, giveaway.ClaimAccepted, result)

	// Rolling back after a failed side effect lets the winner claim again.
	tracker.Unclaim(100, 10)
	result, _ = tracker.TryClaim(100, 10)
	assert.Equal(t, giveaway.ClaimAccepted, result)

	// The re-claim is still exactly-once.
	result, _ = tracker.TryClaim(100, 10)
	assert.Equal(t, giveaway.ClaimRejectedAlreadyClaimed, result)

	// Unclaim against an untracked message or non-claimant is a no-op.
	tracker.Unclaim(999, 10)
	tracker.Unclaim(100, 30)
	result, _ = tracker.TryClaim(100, 30)
	assert.Equal(t, giveaway.ClaimRejectedNotWinner, result)
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "10s", want: 10 * time.Second},
		{input: "5m", want: 5 * time.Minute},
		{input: "2h", want: 2 * time.Hour},
		{input: "1d", want: 24 * time.Hour},
		{input: "", wantErr: true},
		{input: "5", wantErr: true},
		{input: "s", wantErr: true},
		{input: "10w", wantErr: true},
		{input: "-5m", wantErr: true},
		{input: "0s", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := giveaway.ParseDuration(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, giveaway.ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
