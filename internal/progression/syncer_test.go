package progression_test

import (
	"context"
	"testing"

	"github.com/skysanctuary/warden/internal/progression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRoleService records role mutations without touching Discord.
type fakeRoleService struct {
	ensured []string
	added   map[uint64][]string
	removed map[uint64][]string
}

func newFakeRoleService() *fakeRoleService {
	return &fakeRoleService{
		added:   make(map[uint64][]string),
		removed: make(map[uint64][]string),
	}
}

func (f *fakeRoleService) EnsureRole(_ context.Context, name string) error {
	f.ensured = append(f.ensured, name)
	return nil
}

func (f *fakeRoleService) AddRole(_ context.Context, memberID uint64, name string) error {
	f.added[memberID] = append(f.added[memberID], name)
	return nil
}

func (f *fakeRoleService) RemoveRole(_ context.Context, memberID uint64, name string) error {
	f.removed[memberID] = append(f.removed[memberID], name)
	return nil
}

func newSyncer(t *testing.T, roles progression.RoleService) *progression.Syncer {
	t.Helper()

	resolver, err := progression.NewResolver(
		progression.DefaultTierTable(),
		progression.DefaultBonusOverlay(),
	)
	require.NoError(t, err)
	return progression.NewSyncer(resolver, roles, zap.NewNop())
}

func TestPlanBaselineCarveOut(t *testing.T) {
	t.Parallel()

	syncer := newSyncer(t, newFakeRoleService())

	// Promotion from baseline to the first paid tier keeps the baseline role.
	delta := syncer.Plan([]string{"Guild Member"}, 100)
	assert.Equal(t, []string{"Basic Member", "Junior Enlisted Member"}, delta.ToAdd)
	assert.Empty(t, delta.ToRemove)
}

func TestPlanStripsBaselineOnLaterPromotion(t *testing.T) {
	t.Parallel()

	syncer := newSyncer(t, newFakeRoleService())

	// The carve-out applies only to the first promotion; at the next tier the
	// baseline role goes.
	delta := syncer.Plan([]string{"Guild Member", "Basic Member", "Junior Enlisted Member"}, 500)
	assert.Equal(t, []string{"Upgraded Member"}, delta.ToAdd)
	assert.ElementsMatch(t, []string{"Guild Member", "Basic Member"}, delta.ToRemove)
}

func TestPlanIdempotence(t *testing.T) {
	t.Parallel()

	syncer := newSyncer(t, newFakeRoleService())

	current := []string{"Guild Member"}
	first := syncer.Plan(current, 100)
	require.False(t, first.Empty())

	// Apply the first delta by hand, then re-plan: the second delta is empty.
	current = append(current, first.ToAdd...)
	second := syncer.Plan(current, 100)
	assert.True(t, second.Empty())
}

func TestPlanSupersession(t *testing.T) {
	t.Parallel()

	syncer := newSyncer(t, newFakeRoleService())

	delta := syncer.Plan([]string{"Senior Member", "Junior Enlisted Member"}, 5000)
	assert.Equal(t, []string{"Staff Sergeant", "Non-Commission Officer"}, delta.ToAdd)
	assert.Equal(t, []string{"Senior Member", "Junior Enlisted Member"}, delta.ToRemove)
}

func TestPlanStripsRetiredBonusOnRegression(t *testing.T) {
	t.Parallel()

	syncer := newSyncer(t, newFakeRoleService())

	// Administrative correction dropped the member below the NCO trigger.
	delta := syncer.Plan([]string{"Staff Sergeant", "Non-Commission Officer"}, 2500)
	assert.Equal(t, []string{"Senior Member", "Junior Enlisted Member"}, delta.ToAdd)
	assert.ElementsMatch(t, []string{"Staff Sergeant", "Non-Commission Officer"}, delta.ToRemove)
}

func TestPlanIgnoresUnmanagedRoles(t *testing.T) {
	t.Parallel()

	syncer := newSyncer(t, newFakeRoleService())

	delta := syncer.Plan([]string{"Guild Member", "Slayer Carrier", "Maintenance"}, 0)
	assert.True(t, delta.Empty())
}

func TestApplyIssuesMinimalMutations(t *testing.T) {
	t.Parallel()

	roles := newFakeRoleService()
	syncer := newSyncer(t, roles)

	delta, err := syncer.Apply(context.Background(), 42, []string{"Guild Member", "Basic Member", "Junior Enlisted Member"}, 5000)
	require.NoError(t, err)

	assert.Equal(t, []string{"Staff Sergeant", "Non-Commission Officer"}, delta.ToAdd)
	assert.Equal(t, delta.ToAdd, roles.ensured, "added roles are lazily ensured")
	assert.Equal(t, delta.ToAdd, roles.added[42])
	assert.ElementsMatch(t, []string{"Guild Member", "Basic Member", "Junior Enlisted Member"}, roles.removed[42])

	// Re-applying with the updated role set is a no-op.
	delta, err = syncer.Apply(context.Background(), 42, []string{"Staff Sergeant", "Non-Commission Officer"}, 5000)
	require.NoError(t, err)
	assert.True(t, delta.Empty())
}
