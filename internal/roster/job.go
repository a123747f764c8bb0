package roster

import (
	"context"
	"sync"
	"time"

	"github.com/skysanctuary/warden/internal/progression"
	"github.com/skysanctuary/warden/internal/setup/config"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// FallbackRole is granted to demoted members in place of the baseline role.
const FallbackRole = "Guest"

// Member is a guild member holding the baseline role, as seen by the
// presentation layer.
type Member struct {
	ID          uint64
	DisplayName string
	RoleNames   []string
}

// Directory lists members holding the baseline in-guild role.
type Directory interface {
	BaselineMembers(ctx context.Context) ([]Member, error)
}

// Source fetches the external guild roster.
type Source interface {
	GuildByName(ctx context.Context, name string) (*Guild, error)
}

// Resolver resolves display names to external account UUIDs.
type Resolver interface {
	ResolveUUID(ctx context.Context, name string) (string, error)
}

// Report aggregates the outcome of one sync run. Per-member detail is
// deliberately not reported.
type Report struct {
	Processed int
	Demoted   int
	Failed    int
	XPAwarded int64
}

// Job reconciles every baseline-role holder against the external guild
// roster. The policy is fail-closed: any ambiguity about external
// membership (failed name resolution, absence from the roster) results in
// demotion, never promotion.
type Job struct {
	directory Directory
	source    Source
	resolver  Resolver
	roles     progression.RoleService
	ledger    *progression.Ledger
	syncer    *progression.Syncer
	baseline  string

	guildName     string
	xpDivisor     int64
	maxConcurrent int
	interval      time.Duration
	logger        *zap.Logger
}

// NewJob creates a roster sync job.
func NewJob(
	directory Directory,
	source Source,
	resolver Resolver,
	roles progression.RoleService,
	ledger *progression.Ledger,
	syncer *progression.Syncer,
	baseline string,
	cfg *config.Roster,
	hypixel *config.Hypixel,
	logger *zap.Logger,
) *Job {
	return &Job{
		directory:     directory,
		source:        source,
		resolver:      resolver,
		roles:         roles,
		ledger:        ledger,
		syncer:        syncer,
		baseline:      baseline,
		guildName:     hypixel.GuildName,
		xpDivisor:     cfg.XPDivisor,
		maxConcurrent: cfg.MaxConcurrent,
		interval:      time.Duration(cfg.IntervalHours) * time.Hour,
		logger:        logger.Named("roster_sync"),
	}
}

// Start runs one reconciliation pass immediately and then repeats on the
// configured interval until the context is canceled.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("Roster sync job started", zap.Duration("interval", j.interval))

	j.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Roster sync job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

// runOnce executes a single pass and logs the outcome.
func (j *Job) runOnce(ctx context.Context) {
	report, err := j.Run(ctx)
	if err != nil {
		j.logger.Error("Roster sync run failed", zap.Error(err))
		return
	}
	j.logger.Info("Roster sync run complete",
		zap.Int("processed", report.Processed),
		zap.Int("demoted", report.Demoted),
		zap.Int("failed", report.Failed),
		zap.Int64("xpAwarded", report.XPAwarded))
}

// Run executes one reconciliation pass. Member lookups run on a bounded
// worker pool; a single member's failure never aborts the batch.
func (j *Job) Run(ctx context.Context) (Report, error) {
	roster, err := j.source.GuildByName(ctx, j.guildName)
	if err != nil {
		return Report{}, err
	}

	members, err := j.directory.BaselineMembers(ctx)
	if err != nil {
		return Report{}, err
	}

	today := time.Now().UTC().Format("2006-01-02")
	dailyXP := roster.DailyXP(today)

	var mu sync.Mutex
	var report Report
	report.Processed = len(members)

	workers := pool.New().WithMaxGoroutines(j.maxConcurrent)
	for _, member := range members {
		workers.Go(func() {
			demoted, awarded, err := j.processMember(ctx, member, dailyXP)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				return
			}
			if demoted {
				report.Demoted++
			}
			report.XPAwarded += awarded
		})
	}
	workers.Wait()

	return report, nil
}

// processMember reconciles a single member against the day's roster XP map.
func (j *Job) processMember(ctx context.Context, member Member, dailyXP map[string]int64) (bool, int64, error) {
	uuid, err := j.resolver.ResolveUUID(ctx, member.DisplayName)
	if err != nil {
		// Fail closed: an unresolvable name is treated as having left the
		// external guild.
		j.logger.Debug("Demoting member with unresolvable name",
			zap.Uint64("memberID", member.ID),
			zap.String("displayName", member.DisplayName),
			zap.Error(err))
		return true, 0, j.demote(ctx, member)
	}

	earned, present := dailyXP[uuid]
	if !present {
		j.logger.Debug("Demoting member absent from roster",
			zap.Uint64("memberID", member.ID),
			zap.String("uuid", uuid))
		return true, 0, j.demote(ctx, member)
	}

	bonus := earned / j.xpDivisor
	if bonus <= 0 {
		return false, 0, nil
	}

	newXP, err := j.ledger.AwardBonus(ctx, member.ID, bonus)
	if err != nil {
		return false, 0, err
	}
	if _, err := j.syncer.Apply(ctx, member.ID, member.RoleNames, newXP); err != nil {
		return false, 0, err
	}

	return false, bonus, nil
}

// demote strips the baseline role and grants the fallback role.
func (j *Job) demote(ctx context.Context, member Member) error {
	if err := j.roles.EnsureRole(ctx, FallbackRole); err != nil {
		return err
	}
	if err := j.roles.RemoveRole(ctx, member.ID, j.baseline); err != nil {
		return err
	}
	return j.roles.AddRole(ctx, member.ID, FallbackRole)
}
