package moderation

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const reconcileWorkers = 8

type ReconcileReport struct {
	Armed    int
	Released int
	Skipped  int
}

// Reconciler restores temporary mute timers after a restart.
type Reconciler struct {
	guilds *Guilds
	mutes  *Mutes
	gw     Gateway
	clock  Clock
	log    *zap.Logger
}

func NewReconciler(guilds *Guilds, mutes *Mutes, gw Gateway, clock Clock, log *zap.Logger) *Reconciler {
	return &Reconciler{
		guilds: guilds,
		mutes:  mutes,
		gw:     gw,
		clock:  clock,
		log:    log.Named("reconciler"),
	}
}

// Run walks every temporary mute of the given guilds. Mutes that are already
// past their expiry are released, the rest get a timer. Guilds are processed
// concurrently; a failing guild does not stop the others.
func (r *Reconciler) Run(ctx context.Context, guildIDs []string) (ReconcileReport, error) {
	var (
		p      = pool.New().WithContext(ctx).WithMaxGoroutines(reconcileWorkers)
		mu     sync.Mutex
		report ReconcileReport
	)

	for _, id := range guildIDs {
		guildID := id
		p.Go(func(ctx context.Context) error {
			rep, err := r.guild(ctx, guildID)

			mu.Lock()
			report.Armed += rep.Armed
			report.Released += rep.Released
			report.Skipped += rep.Skipped
			mu.Unlock()

			if err != nil {
				return fmt.Errorf("guild %v: %w", guildID, err)
			}
			return nil
		})
	}

	err := p.Wait()
	r.log.Info("reconciled mutes",
		zap.Int("guilds", len(guildIDs)),
		zap.Int("armed", report.Armed),
		zap.Int("released", report.Released),
		zap.Int("skipped", report.Skipped),
	)
	return report, err
}

func (r *Reconciler) guild(ctx context.Context, guildID string) (ReconcileReport, error) {
	var rep ReconcileReport

	rec, err := r.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return rep, err
	}
	if rec.MuteRoleID == "" {
		return rep, nil
	}

	roleOK, err := r.gw.RoleExists(ctx, guildID, rec.MuteRoleID)
	if err != nil || !roleOK {
		for _, m := range rec.Mutes {
			if m.Kind == Temporary {
				rep.Skipped++
			}
		}
		r.log.Warn("mute role not found, skipping guild",
			zap.String("guild", guildID),
			zap.String("role", rec.MuteRoleID),
			zap.Error(err),
		)
		return rep, nil
	}

	now := r.clock.Now()
	for _, m := range rec.Mutes {
		if m.Kind != Temporary {
			continue
		}
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}

		ok, err := r.gw.MemberExists(ctx, guildID, m.MemberID)
		if err != nil || !ok {
			rep.Skipped++
			r.log.Warn("muted member not found, skipping",
				zap.String("guild", guildID),
				zap.String("member", m.MemberID),
				zap.Error(err),
			)
			continue
		}

		if !m.ExpiresAt.After(now) {
			released, err := r.mutes.release(ctx, m)
			if err != nil {
				rep.Skipped++
				r.log.Warn("failed to release expired mute",
					zap.String("guild", guildID),
					zap.String("member", m.MemberID),
					zap.Error(err),
				)
				continue
			}
			if released {
				rep.Released++
			}
			continue
		}

		r.mutes.arm(m)
		rep.Armed++
	}
	return rep, nil
}
