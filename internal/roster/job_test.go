package roster_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/skysanctuary/warden/internal/database/types"
	"github.com/skysanctuary/warden/internal/progression"
	"github.com/skysanctuary/warden/internal/roster"
	"github.com/skysanctuary/warden/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDirectory struct {
	members []roster.Member
	err     error
}

func (d *fakeDirectory) BaselineMembers(_ context.Context) ([]roster.Member, error) {
	return d.members, d.err
}

type fakeSource struct {
	guild *roster.Guild
	err   error
}

func (s *fakeSource) GuildByName(_ context.Context, _ string) (*roster.Guild, error) {
	return s.guild, s.err
}

type fakeResolver struct {
	uuids map[string]string
}

func (r *fakeResolver) ResolveUUID(_ context.Context, name string) (string, error) {
	uuid, ok := r.uuids[name]
	if !ok {
		return "", roster.ErrIdentityNotFound
	}
	return uuid, nil
}

type fakeRoleService struct {
	mu      sync.Mutex
	added   map[uint64][]string
	removed map[uint64][]string
	failFor uint64
}

func newFakeRoleService() *fakeRoleService {
	return &fakeRoleService{
		added:   make(map[uint64][]string),
		removed: make(map[uint64][]string),
	}
}

func (f *fakeRoleService) EnsureRole(_ context.Context, _ string) error { return nil }

func (f *fakeRoleService) AddRole(_ context.Context, memberID uint64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != 0 && memberID == f.failFor {
		return errors.New("role mutation rejected")
	}
	f.added[memberID] = append(f.added[memberID], name)
	return nil
}

func (f *fakeRoleService) RemoveRole(_ context.Context, memberID uint64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != 0 && memberID == f.failFor {
		return errors.New("role mutation rejected")
	}
	f.removed[memberID] = append(f.removed[memberID], name)
	return nil
}

type memoryProgressStore struct {
	mu      sync.Mutex
	records map[uint64]*types.MemberProgress
}

func newMemoryProgressStore() *memoryProgressStore {
	return &memoryProgressStore{records: make(map[uint64]*types.MemberProgress)}
}

func (s *memoryProgressStore) get(userID uint64) *types.MemberProgress {
	record, ok := s.records[userID]
	if !ok {
		record = &types.MemberProgress{UserID: userID}
		s.records[userID] = record
	}
	return record
}

func (s *memoryProgressStore) GetOrInit(_ context.Context, userID uint64) (*types.MemberProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := *s.get(userID)
	return &record, nil
}

func (s *memoryProgressStore) ApplyDelta(_ context.Context, userID uint64, xpDelta int64, activity time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.get(userID)
	record.XP += xpDelta
	record.LastActivity = activity
	return record.XP, nil
}

func (s *memoryProgressStore) AddXP(_ context.Context, userID uint64, xpDelta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.get(userID)
	record.XP += xpDelta
	return record.XP, nil
}

func (s *memoryProgressStore) RecordRating(_ context.Context, userID uint64, stars int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.get(userID)
	record.StarsTotal += int64(stars)
	record.RatingsCount++
	return nil
}

func newTestJob(t *testing.T, directory *fakeDirectory, source *fakeSource,
	resolver *fakeResolver, roles *fakeRoleService, store *memoryProgressStore,
) *roster.Job {
	t.Helper()

	logger := zap.NewNop()
	tierResolver, err := progression.NewResolver(progression.DefaultTierTable(), progression.DefaultBonusOverlay())
	require.NoError(t, err)

	ledger := progression.NewLedger(store, &config.Progression{
		MessageXP:       5,
		CooldownSeconds: 60,
		FinishBonusXP:   100,
	}, logger)
	syncer := progression.NewSyncer(tierResolver, roles, logger)

	return roster.NewJob(directory, source, resolver, roles, ledger, syncer,
		"Guild Member",
		&config.Roster{IntervalHours: 24, XPDivisor: 1000, MaxConcurrent: 4, LookupsPerSec: 2, CacheTTLHours: 24},
		&config.Hypixel{APIKey: "key", GuildName: "Sky Sanctuary"},
		logger)
}

func rosterWithDailyXP(xpByUUID map[string]int64) *roster.Guild {
	today := time.Now().UTC().Format("2006-01-02")
	guild := &roster.Guild{}
	for uuid, xp := range xpByUUID {
		guild.Members = append(guild.Members, roster.GuildMember{
			UUID:       uuid,
			ExpHistory: map[string]int64{today: xp},
		})
	}
	return guild
}

func TestJobRunDemotesUnresolvableNames(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{members: []roster.Member{
		{ID: 1, DisplayName: "ghost", RoleNames: []string{"Guild Member"}},
	}}
	source := &fakeSource{guild: rosterWithDailyXP(nil)}
	resolver := &fakeResolver{uuids: map[string]string{}}
	roles := newFakeRoleService()
	store := newMemoryProgressStore()

	job := newTestJob(t, directory, source, resolver, roles, store)
	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Demoted)
	assert.Zero(t, report.Failed)
	assert.Contains(t, roles.removed[1], "Guild Member")
	assert.Contains(t, roles.added[1], roster.FallbackRole)
}

func TestJobRunDemotesMembersAbsentFromRoster(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{members: []roster.Member{
		{ID: 2, DisplayName: "steve", RoleNames: []string{"Guild Member"}},
	}}
	source := &fakeSource{guild: rosterWithDailyXP(map[string]int64{"other-uuid": 3000})}
	resolver := &fakeResolver{uuids: map[string]string{"steve": "steve-uuid"}}
	roles := newFakeRoleService()
	store := newMemoryProgressStore()

	job := newTestJob(t, directory, source, resolver, roles, store)
	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Demoted)
	assert.Contains(t, roles.removed[2], "Guild Member")
	assert.Contains(t, roles.added[2], roster.FallbackRole)
}

func TestJobRunAwardsBonusXP(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{members: []roster.Member{
		{ID: 3, DisplayName: "alex", RoleNames: []string{"Guild Member"}},
	}}
	source := &fakeSource{guild: rosterWithDailyXP(map[string]int64{"alex-uuid": 5500})}
	resolver := &fakeResolver{uuids: map[string]string{"alex": "alex-uuid"}}
	roles := newFakeRoleService()
	store := newMemoryProgressStore()

	job := newTestJob(t, directory, source, resolver, roles, store)
	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Demoted)
	assert.Equal(t, int64(5), report.XPAwarded)
	assert.Equal(t, int64(5), store.records[3].XP)
	assert.NotContains(t, roles.removed[3], "Guild Member")
}

func TestJobRunSkipsAwardBelowDivisor(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{members: []roster.Member{
		{ID: 4, DisplayName: "zoe", RoleNames: []string{"Guild Member"}},
	}}
	source := &fakeSource{guild: rosterWithDailyXP(map[string]int64{"zoe-uuid": 999})}
	resolver := &fakeResolver{uuids: map[string]string{"zoe": "zoe-uuid"}}
	roles := newFakeRoleService()
	store := newMemoryProgressStore()

	job := newTestJob(t, directory, source, resolver, roles, store)
	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.XPAwarded)
	assert.Nil(t, store.records[4])
}

func TestJobRunToleratesPartialFailure(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{members: []roster.Member{
		{ID: 10, DisplayName: "left", RoleNames: []string{"Guild Member"}},
		{ID: 11, DisplayName: "active", RoleNames: []string{"Guild Member"}},
	}}
	source := &fakeSource{guild: rosterWithDailyXP(map[string]int64{"active-uuid": 2000})}
	resolver := &fakeResolver{uuids: map[string]string{"active": "active-uuid"}}
	roles := newFakeRoleService()
	roles.failFor = 10
	store := newMemoryProgressStore()

	job := newTestJob(t, directory, source, resolver, roles, store)
	report, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, int64(2), report.XPAwarded)
}

// signalingSource reports each roster fetch on a channel.
type signalingSource struct {
	fetched chan struct{}
}

func (s *signalingSource) GuildByName(_ context.Context, _ string) (*roster.Guild, error) {
	s.fetched <- struct{}{}
	return rosterWithDailyXP(nil), nil
}

func TestJobStartRunsImmediately(t *testing.T) {
	t.Parallel()

	source := &signalingSource{fetched: make(chan struct{}, 1)}
	job := roster.NewJob(&fakeDirectory{}, source, &fakeResolver{},
		newFakeRoleService(), nil, nil, "Guild Member",
		&config.Roster{IntervalHours: 24, XPDivisor: 1000, MaxConcurrent: 4, LookupsPerSec: 2, CacheTTLHours: 24},
		&config.Hypixel{APIKey: "key", GuildName: "Sky Sanctuary"},
		zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		job.Start(ctx)
	}()

	// The first pass must happen without waiting a full interval.
	select {
	case <-source.fetched:
	case <-time.After(5 * time.Second):
		t.Fatal("no roster fetch before the first interval elapsed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop on context cancellation")
	}
}

func TestJobRunAbortsWhenRosterUnavailable(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{members: []roster.Member{
		{ID: 20, DisplayName: "safe", RoleNames: []string{"Guild Member"}},
	}}
	source := &fakeSource{err: fmt.Errorf("fetch roster: %w", roster.ErrRosterUnavailable)}
	roles := newFakeRoleService()

	job := newTestJob(t, directory, source, &fakeResolver{}, roles, newMemoryProgressStore())
	_, err := job.Run(context.Background())
	require.ErrorIs(t, err, roster.ErrRosterUnavailable)

	assert.Empty(t, roles.removed, "no member may be demoted without roster data")
}
