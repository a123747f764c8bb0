package progression_test

import (
	"testing"

	"github.com/skysanctuary/warden/internal/progression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) *progression.Resolver {
	t.Helper()

	resolver, err := progression.NewResolver(
		progression.DefaultTierTable(),
		progression.DefaultBonusOverlay(),
	)
	require.NoError(t, err)
	return resolver
}

func TestResolveTier(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t)

	tests := []struct {
		name string
		xp   int64
		want string
	}{
		{name: "zero XP is baseline", xp: 0, want: "Guild Member"},
		{name: "below first threshold", xp: 99, want: "Guild Member"},
		{name: "exactly at threshold", xp: 100, want: "Basic Member"},
		{name: "between thresholds", xp: 750, want: "Upgraded Member"},
		{name: "mid ladder", xp: 5000, want: "Staff Sergeant"},
		{name: "top of ladder", xp: 100000, want: "Chief Master Sergeant"},
		{name: "beyond top threshold", xp: 5000000, want: "Chief Master Sergeant"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, resolver.ResolveTier(tt.xp))
		})
	}
}

func TestResolveTierMonotonicity(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t)
	table := progression.DefaultTierTable()

	threshold := func(name string) int64 {
		minXP, ok := table.Threshold(name)
		require.True(t, ok)
		return minXP
	}

	// Sample across the full XP range; the resolved threshold must never
	// decrease as XP increases.
	previous := int64(-1)
	for xp := int64(0); xp <= 150000; xp += 37 {
		current := threshold(resolver.ResolveTier(xp))
		assert.GreaterOrEqual(t, current, previous, "xp=%d", xp)
		previous = current
	}
}

func TestResolveBonus(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t)

	bonus, ok := resolver.ResolveBonus("Staff Sergeant")
	require.True(t, ok)
	assert.Equal(t, "Non-Commission Officer", bonus.Role)
	assert.Equal(t, "Junior Enlisted Member", bonus.Supersedes)

	_, ok = resolver.ResolveBonus("Senior Member")
	assert.False(t, ok)
}

func TestDesiredRoles(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t)

	tests := []struct {
		name string
		xp   int64
		want []string
	}{
		{
			name: "baseline only",
			xp:   0,
			want: []string{"Guild Member"},
		},
		{
			name: "first paid tier carries its bonus",
			xp:   100,
			want: []string{"Basic Member", "Junior Enlisted Member"},
		},
		{
			name: "intermediate tier keeps earlier bonus",
			xp:   2500,
			want: []string{"Senior Member", "Junior Enlisted Member"},
		},
		{
			name: "NCO supersedes junior enlisted",
			xp:   5000,
			want: []string{"Staff Sergeant", "Non-Commission Officer"},
		},
		{
			name: "senior NCO supersedes NCO",
			xp:   25000,
			want: []string{"Master Sergeant", "Senior Non-Commission Officer"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, resolver.DesiredRoles(tt.xp))
		})
	}
}

func TestDesiredRolesDeterministic(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t)

	// Identical inputs must always yield identical output.
	first := resolver.DesiredRoles(25000)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, resolver.DesiredRoles(25000))
	}
}

func TestRetiredBonuses(t *testing.T) {
	t.Parallel()

	resolver := newResolver(t)

	// At 0 XP every bonus trigger is unsatisfied.
	assert.Equal(t,
		[]string{"Junior Enlisted Member", "Non-Commission Officer", "Senior Non-Commission Officer"},
		resolver.RetiredBonuses(0))

	// At 5000 XP only the Master Sergeant bonus is unearned.
	assert.Equal(t,
		[]string{"Senior Non-Commission Officer"},
		resolver.RetiredBonuses(5000))

	assert.Empty(t, resolver.RetiredBonuses(25000))
}

func TestNewResolverValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		table   progression.TierTable
		overlay progression.BonusOverlay
		wantErr error
	}{
		{
			name:    "empty table",
			table:   progression.TierTable{},
			wantErr: progression.ErrEmptyTierTable,
		},
		{
			name:    "nonzero baseline",
			table:   progression.TierTable{{Name: "A", MinXP: 10}},
			wantErr: progression.ErrBaselineThreshold,
		},
		{
			name: "unsorted thresholds",
			table: progression.TierTable{
				{Name: "A", MinXP: 0},
				{Name: "B", MinXP: 500},
				{Name: "C", MinXP: 500},
			},
			wantErr: progression.ErrThresholdsNotSorted,
		},
		{
			name:    "overlay names unknown tier",
			table:   progression.TierTable{{Name: "A", MinXP: 0}},
			overlay: progression.BonusOverlay{"B": {Role: "X"}},
			wantErr: progression.ErrUnknownTier,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := progression.NewResolver(tt.table, tt.overlay)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
