// Package giveaway tracks giveaway winner sets and exactly-once claims.
//
// Tracker state is process-local and non-durable: a restart loses any
// outstanding unclaimed winners. This is an accepted limitation of the
// feature, not an oversight; giveaways are short-lived and re-rollable.
package giveaway

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidDuration = errors.New("invalid giveaway duration")
	ErrNoWinners       = errors.New("winner count must be positive")
)

// ClaimResult is the outcome of a claim attempt.
type ClaimResult int

const (
	// ClaimAccepted means the actor is an unclaimed winner; the claim is recorded.
	ClaimAccepted ClaimResult = iota
	// ClaimRejectedUnknown means the message is not a tracked giveaway.
	ClaimRejectedUnknown
	// ClaimRejectedNotWinner means the actor is not in the winner set.
	ClaimRejectedNotWinner
	// ClaimRejectedAlreadyClaimed means the actor already claimed once.
	ClaimRejectedAlreadyClaimed
)

// Claim tracks one concluded giveaway: who may claim and who already has.
type Claim struct {
	Winners   map[uint64]struct{}
	Claimed   map[uint64]struct{}
	Prize     string
	ChannelID uint64
	MessageID uint64
}

// Tracker holds claim state for concluded giveaways, keyed by the result
// message ID.
type Tracker struct {
	mu     sync.Mutex
	claims map[uint64]*Claim
	rng    *rand.Rand
	logger *zap.Logger
}

// NewTracker creates an empty claim tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		claims: make(map[uint64]*Claim),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger.Named("giveaways"),
	}
}

// Conclude samples min(winnerCount, |pool|) distinct winners uniformly at
// random from the entry pool and registers the claim set under the result
// message ID. The caller is responsible for excluding automated accounts
// from the pool. Reroll uses the same path: it samples fresh from the
// current pool. Returns the winner IDs.
func (t *Tracker) Conclude(messageID, channelID uint64, pool []uint64, winnerCount int, prize string) ([]uint64, error) {
	if winnerCount <= 0 {
		return nil, ErrNoWinners
	}
	if len(pool) == 0 {
		return nil, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Uniform sample without replacement
	shuffled := make([]uint64, len(pool))
	copy(shuffled, pool)
	t.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	winners := shuffled[:min(winnerCount, len(shuffled))]

	claim := &Claim{
		Winners:   make(map[uint64]struct{}, len(winners)),
		Claimed:   make(map[uint64]struct{}),
		Prize:     prize,
		ChannelID: channelID,
		MessageID: messageID,
	}
	for _, winner := range winners {
		claim.Winners[winner] = struct{}{}
	}
	t.claims[messageID] = claim

	t.logger.Info("Giveaway concluded",
		zap.Uint64("messageID", messageID),
		zap.String("prize", prize),
		zap.Int("entries", len(pool)),
		zap.Int("winners", len(winners)))

	return winners, nil
}

// TryClaim attempts a claim by actorID against the giveaway tracked under
// messageID. Accepted only for a winner who has not claimed before; the
// claim is recorded atomically with the check, so redelivered events and
// double reactions are rejected without side effects.
func (t *Tracker) TryClaim(messageID, actorID uint64) (ClaimResult, *Claim) {
	t.mu.Lock()
	defer t.mu.Unlock()

	claim, ok := t.claims[messageID]
	if !ok {
		return ClaimRejectedUnknown, nil
	}
	if _, winner := claim.Winners[actorID]; !winner {
		return ClaimRejectedNotWinner, nil
	}
	if _, claimed := claim.Claimed[actorID]; claimed {
		return ClaimRejectedAlreadyClaimed, nil
	}

	claim.Claimed[actorID] = struct{}{}
	return ClaimAccepted, claim
}

// Unclaim reverses a recorded claim so the winner can claim again. Called
// when the side effects of an accepted claim (the claim channel) could not
// be completed; acceptance and channel must land together or not at all.
func (t *Tracker) Unclaim(messageID, actorID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	claim, ok := t.claims[messageID]
	if !ok {
		return
	}
	delete(claim.Claimed, actorID)

	t.logger.Warn("Rolled back giveaway claim",
		zap.Uint64("messageID", messageID),
		zap.Uint64("actorID", actorID))
}

// ParseDuration parses giveaway duration strings of the form "<amount><unit>"
// where unit is s, m, h or d.
func ParseDuration(value string) (time.Duration, error) {
	if len(value) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, value)
	}

	amount, err := strconv.Atoi(value[:len(value)-1])
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, value)
	}

	var factor time.Duration
	switch value[len(value)-1] {
	case 's':
		factor = time.Second
	case 'm':
		factor = time.Minute
	case 'h':
		factor = time.Hour
	case 'd':
		factor = 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, value)
	}

	return time.Duration(amount) * factor, nil
}
