// Package progression implements the member progression core: the durable XP
// ledger, the pure tier resolver, and the role synchronizer that reconciles a
// member's live role set with the set their XP entitles them to.
package progression

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTierTable      = errors.New("tier table must have at least one entry")
	ErrBaselineThreshold   = errors.New("first tier threshold must be zero")
	ErrThresholdsNotSorted = errors.New("tier thresholds must strictly increase")
	ErrUnknownTier         = errors.New("bonus overlay references unknown tier")
)

// Tier pairs a role name with the minimum XP required to hold it.
type Tier struct {
	Name  string
	MinXP int64
}

// TierTable is an ordered sequence of tiers with strictly increasing
// thresholds. The first entry is the baseline role and always has threshold 0.
type TierTable []Tier

// Bonus is a secondary role granted alongside a tier. When granted it may
// supersede the bonus of a lower tier, which is then revoked.
type Bonus struct {
	Role       string
	Supersedes string
}

// BonusOverlay maps tier names to the bonus they trigger.
type BonusOverlay map[string]Bonus

// DefaultTierTable holds the guild's rank ladder.
func DefaultTierTable() TierTable {
	return TierTable{
		{Name: "Guild Member", MinXP: 0},
		{Name: "Basic Member", MinXP: 100},
		{Name: "Upgraded Member", MinXP: 500},
		{Name: "First Class Member", MinXP: 1000},
		{Name: "Senior Member", MinXP: 2500},
		{Name: "Staff Sergeant", MinXP: 5000},
		{Name: "Technical Sergeant", MinXP: 10000},
		{Name: "Master Sergeant", MinXP: 25000},
		{Name: "Senior Master Sergeant", MinXP: 50000},
		{Name: "Chief Master Sergeant", MinXP: 100000},
	}
}

// DefaultBonusOverlay holds the enlisted/NCO overlay roles.
func DefaultBonusOverlay() BonusOverlay {
	return BonusOverlay{
		"Basic Member":    {Role: "Junior Enlisted Member"},
		"Staff Sergeant":  {Role: "Non-Commission Officer", Supersedes: "Junior Enlisted Member"},
		"Master Sergeant": {Role: "Senior Non-Commission Officer", Supersedes: "Non-Commission Officer"},
	}
}

// Resolver deterministically maps accumulated XP to the role set a member
// should hold. Identical inputs always yield identical outputs, which makes
// re-application idempotent.
type Resolver struct {
	table   TierTable
	overlay BonusOverlay
}

// NewResolver validates the tier table and overlay and returns a resolver.
func NewResolver(table TierTable, overlay BonusOverlay) (*Resolver, error) {
	if len(table) == 0 {
		return nil, ErrEmptyTierTable
	}
	if table[0].MinXP != 0 {
		return nil, ErrBaselineThreshold
	}
	for i := 1; i < len(table); i++ {
		if table[i].MinXP <= table[i-1].MinXP {
			return nil, fmt.Errorf("%w: %q (%d) after %q (%d)",
				ErrThresholdsNotSorted, table[i].Name, table[i].MinXP, table[i-1].Name, table[i-1].MinXP)
		}
	}
	for tier := range overlay {
		if _, ok := table.Threshold(tier); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
		}
	}

	return &Resolver{table: table, overlay: overlay}, nil
}

// Threshold returns the minimum XP for the named tier.
func (t TierTable) Threshold(name string) (int64, bool) {
	for _, tier := range t {
		if tier.Name == name {
			return tier.MinXP, true
		}
	}
	return 0, false
}

// Baseline returns the name of the zero-threshold baseline role.
func (r *Resolver) Baseline() string {
	return r.table[0].Name
}

// ResolveTier selects the highest-threshold tier satisfied by xp.
func (r *Resolver) ResolveTier(xp int64) string {
	current := r.table[0].Name
	for _, tier := range r.table {
		if xp >= tier.MinXP {
			current = tier.Name
		} else {
			break
		}
	}
	return current
}

// NextTier returns the first tier whose threshold exceeds xp, if any.
func (r *Resolver) NextTier(xp int64) (Tier, bool) {
	for _, tier := range r.table {
		if xp < tier.MinXP {
			return tier, true
		}
	}
	return Tier{}, false
}

// ResolveBonus returns the bonus triggered by the given tier, if any.
func (r *Resolver) ResolveBonus(tier string) (Bonus, bool) {
	bonus, ok := r.overlay[tier]
	return bonus, ok
}

// RetiredBonuses returns the bonus roles whose triggering threshold exceeds
// xp. These must be stripped when XP has regressed below a bonus's trigger,
// which happens only through administrative correction.
func (r *Resolver) RetiredBonuses(xp int64) []string {
	var retired []string
	for _, tier := range r.table {
		bonus, ok := r.overlay[tier.Name]
		if !ok {
			continue
		}
		if xp < tier.MinXP {
			retired = append(retired, bonus.Role)
		}
	}
	return retired
}

// DesiredRoles assembles the full target role set for xp: the current tier
// plus every earned bonus that has not been superseded by a higher one.
// Results are ordered tier first, then bonuses by ascending trigger threshold.
func (r *Resolver) DesiredRoles(xp int64) []string {
	desired := []string{r.ResolveTier(xp)}

	// Collect earned bonuses in threshold order
	var earned []Bonus
	for _, tier := range r.table {
		bonus, ok := r.overlay[tier.Name]
		if !ok || xp < tier.MinXP {
			continue
		}
		earned = append(earned, bonus)
	}

	// Drop bonuses superseded by a higher earned bonus
	superseded := make(map[string]struct{})
	for _, bonus := range earned {
		if bonus.Supersedes != "" {
			superseded[bonus.Supersedes] = struct{}{}
		}
	}
	for _, bonus := range earned {
		if _, gone := superseded[bonus.Role]; !gone {
			desired = append(desired, bonus.Role)
		}
	}

	return desired
}

// ManagedRoles returns every role name the progression system owns: all tier
// roles and all bonus roles. The synchronizer never touches roles outside
// this set.
func (r *Resolver) ManagedRoles() map[string]struct{} {
	managed := make(map[string]struct{}, len(r.table)+len(r.overlay))
	for _, tier := range r.table {
		managed[tier.Name] = struct{}{}
	}
	for _, bonus := range r.overlay {
		managed[bonus.Role] = struct{}{}
	}
	return managed
}
