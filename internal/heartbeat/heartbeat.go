// Package heartbeat drives reconciliation on a fixed interval.
package heartbeat

import (
	"context"
	"fmt"
	"log"
	"time"

	"mute-schedule-backend/config"
	"mute-schedule-backend/internal/calendar"
	"mute-schedule-backend/internal/reconciler"
	"mute-schedule-backend/internal/schedule"
)

// Classifier is the calendar collaborator; satisfied by *calendar.Resolver.
type Classifier interface {
	Classify(ctx context.Context, date time.Time) (calendar.Classification, error)
}

// Driver runs the reconciliation pass over all configured entities, on a
// timer and on demand. Entities are processed one at a time so the
// gateway never sees a concurrent burst and per-tick ordering stays
// deterministic.
type Driver struct {
	cfg        config.HeartbeatConfig
	loc        *time.Location
	holder     *schedule.Holder
	classifier Classifier
	rec        *reconciler.Reconciler

	nowFn func() time.Time
}

// New creates a driver. The configured timezone determines which calendar
// date and minute-of-day a tick observes.
func New(cfg config.HeartbeatConfig, holder *schedule.Holder, classifier Classifier, rec *reconciler.Reconciler) (*Driver, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}
	return &Driver{
		cfg:        cfg,
		loc:        loc,
		holder:     holder,
		classifier: classifier,
		rec:        rec,
		nowFn:      time.Now,
	}, nil
}

// Run starts the heartbeat loop and blocks until ctx is done. A slow
// tick simply delays the next fire; ticks never overlap.
func (d *Driver) Run(ctx context.Context) {
	if !d.cfg.Enabled {
		log.Println("Heartbeat is disabled. Not starting.")
		return
	}
	log.Printf("Starting heartbeat, interval %s", d.cfg.Interval)

	d.TickOnce(ctx)

	timer := time.NewTimer(d.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Heartbeat shutting down.")
			return
		case <-timer.C:
			d.TickOnce(ctx)
			timer.Reset(d.cfg.Interval)
		}
	}
}

// TickOnce runs a full reconciliation pass over every configured entity
// against a single index snapshot. Per-entity failures are isolated; the
// pass always completes.
func (d *Driver) TickOnce(ctx context.Context) {
	now := d.nowFn().In(d.loc)
	ix := d.holder.Load()
	policies := ix.Policies()

	var transitioned, failed int
	for _, policy := range policies {
		_, outcome, err := d.checkPolicy(ctx, now, ix, policy)
		if err != nil {
			failed++
			log.Printf("Error aligning entity %s: %v", policy.EntityID, err)
			continue
		}
		if outcome == reconciler.OutcomeTransitioned {
			transitioned++
		}
	}
	log.Printf("Heartbeat pass finished: %d entities, %d transitioned, %d failed",
		len(policies), transitioned, failed)
}

// CheckEntity runs the identical classify/compute/align sequence for a
// single entity, on demand.
func (d *Driver) CheckEntity(ctx context.Context, entityID string) (schedule.Expected, reconciler.Outcome, error) {
	ix := d.holder.Load()
	policy, ok := ix.Policy(entityID)
	if !ok {
		return schedule.Expected{}, reconciler.OutcomeFailed, fmt.Errorf("entity %s is not configured", entityID)
	}
	return d.checkPolicy(ctx, d.nowFn().In(d.loc), ix, policy)
}

// checkPolicy is the shared per-entity path for scheduled and manual
// checks. A panic inside a collaborator is converted into an error so
// one entity cannot abort the batch.
func (d *Driver) checkPolicy(ctx context.Context, now time.Time, ix *schedule.Index, policy schedule.EntityPolicy) (exp schedule.Expected, outcome reconciler.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = reconciler.OutcomeFailed
			err = fmt.Errorf("panic while processing entity %s: %v", policy.EntityID, r)
		}
	}()

	cls, cerr := d.classifier.Classify(ctx, now)
	if cerr != nil {
		// Calendar lookups must never block reconciliation: degrade to a
		// normal day and carry on.
		log.Printf("calendar classification for %s failed: %v; treating as normal day",
			now.Format("2006-01-02"), cerr)
		cls = calendar.Classification{}
	}

	exp, err = ix.Compute(now, policy, cls)
	if err != nil {
		return exp, reconciler.OutcomeFailed, err
	}

	group, ok := ix.Group(exp.SourceGroupID)
	if !ok {
		return exp, reconciler.OutcomeFailed, &schedule.ConfigError{
			EntityID: policy.EntityID,
			Reason:   fmt.Sprintf("mute group %q vanished from index", exp.SourceGroupID),
		}
	}

	outcome, err = d.rec.Align(ctx, policy.EntityID, exp, group)
	return exp, outcome, err
}
