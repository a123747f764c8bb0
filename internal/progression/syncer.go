package progression

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RoleService is the outbound role mutation surface, implemented by the
// Discord presentation layer. EnsureRole creates the role if it is absent.
type RoleService interface {
	EnsureRole(ctx context.Context, name string) error
	AddRole(ctx context.Context, memberID uint64, name string) error
	RemoveRole(ctx context.Context, memberID uint64, name string) error
}

// Delta is the minimal role mutation set that reconciles a member's current
// roles with the desired set.
type Delta struct {
	ToAdd    []string
	ToRemove []string
}

// Empty reports whether applying the delta would be a no-op.
func (d Delta) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// Syncer diffs a member's live role set against the resolver's desired set
// and issues the minimal mutations. It stores nothing itself; re-invocation
// with an unchanged desired set produces an empty delta.
type Syncer struct {
	resolver *Resolver
	roles    RoleService
	logger   *zap.Logger
}

// NewSyncer creates a role synchronizer.
func NewSyncer(resolver *Resolver, roles RoleService, logger *zap.Logger) *Syncer {
	return &Syncer{
		resolver: resolver,
		roles:    roles,
		logger:   logger.Named("role_syncer"),
	}
}

// Plan computes the minimal delta between the member's current role names and
// the desired set for xp. The baseline role is preserved when the member is
// being promoted from it to the next tier: first promotion does not strip
// guild membership.
func (s *Syncer) Plan(currentRoles []string, xp int64) Delta {
	desired := make(map[string]struct{})
	var desiredOrder []string
	for _, name := range s.resolver.DesiredRoles(xp) {
		desired[name] = struct{}{}
		desiredOrder = append(desiredOrder, name)
	}

	current := make(map[string]struct{}, len(currentRoles))
	for _, name := range currentRoles {
		current[name] = struct{}{}
	}

	managed := s.resolver.ManagedRoles()
	tier := s.resolver.ResolveTier(xp)

	// Baseline carve-out: promoting from the baseline role to the tier
	// directly above it keeps the baseline role.
	keepBaseline := len(s.resolver.table) > 1 && tier == s.resolver.table[1].Name

	var delta Delta
	for _, name := range desiredOrder {
		if _, has := current[name]; !has {
			delta.ToAdd = append(delta.ToAdd, name)
		}
	}
	for _, name := range currentRoles {
		if _, owned := managed[name]; !owned {
			continue
		}
		if _, wanted := desired[name]; wanted {
			continue
		}
		if keepBaseline && name == s.resolver.Baseline() {
			continue
		}
		delta.ToRemove = append(delta.ToRemove, name)
	}

	return delta
}

// Apply plans and executes the role delta for a member. Roles are lazily
// ensured before any mutation is issued.
func (s *Syncer) Apply(ctx context.Context, memberID uint64, currentRoles []string, xp int64) (Delta, error) {
	delta := s.Plan(currentRoles, xp)
	if delta.Empty() {
		return delta, nil
	}

	for _, name := range delta.ToAdd {
		if err := s.roles.EnsureRole(ctx, name); err != nil {
			return delta, fmt.Errorf("failed to ensure role %q: %w", name, err)
		}
		if err := s.roles.AddRole(ctx, memberID, name); err != nil {
			return delta, fmt.Errorf("failed to add role %q: %w", name, err)
		}
	}
	for _, name := range delta.ToRemove {
		if err := s.roles.RemoveRole(ctx, memberID, name); err != nil {
			return delta, fmt.Errorf("failed to remove role %q: %w", name, err)
		}
	}

	s.logger.Debug("Synchronized member roles",
		zap.Uint64("memberID", memberID),
		zap.Int64("xp", xp),
		zap.Strings("added", delta.ToAdd),
		zap.Strings("removed", delta.ToRemove))

	return delta, nil
}
