// Package reconciler aligns the persisted real-world mute state of each
// chat group to the freshly computed expected state.
package reconciler

import (
	"context"
	"log"
	"time"

	"mute-schedule-backend/internal/action"
	"mute-schedule-backend/internal/model"
	"mute-schedule-backend/internal/parse"
	"mute-schedule-backend/internal/schedule"
	"mute-schedule-backend/internal/store"
)

// Outcome reports what a single alignment did.
type Outcome string

const (
	// OutcomeUnchanged means the persisted state already matched and no
	// external call was made.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeTransitioned means the external state was changed and persisted.
	OutcomeTransitioned Outcome = "transitioned"
	// OutcomeFailed means every action backend failed; persisted state is
	// untouched so the next tick retries the same transition.
	OutcomeFailed Outcome = "failed"
)

// Dispatcher receives applied transitions for asynchronous operator
// notification. Implemented by the notification worker pool.
type Dispatcher interface {
	Dispatch(entityID string, muted bool)
}

// Reconciler compares expected to persisted state and applies corrective
// actions on mismatch.
type Reconciler struct {
	store      store.Store
	backend    action.Backend
	dispatcher Dispatcher // optional
}

// New creates a reconciler. dispatcher may be nil.
func New(s store.Store, backend action.Backend, dispatcher Dispatcher) *Reconciler {
	return &Reconciler{store: s, backend: backend, dispatcher: dispatcher}
}

// Align drives the persisted and real-world state of one entity to the
// expected state. group must be the rule group that produced expected.
func (r *Reconciler) Align(ctx context.Context, entityID string, expected schedule.Expected, group schedule.RuleGroup) (Outcome, error) {
	persisted, err := r.store.GetEntityState(ctx, entityID)
	if err != nil {
		// A read failure means the actual state is unknown; act as if no
		// row existed instead of skipping the entity.
		log.Printf("Warning: reading persisted state for entity %s failed: %v; treating as unknown", entityID, err)
		persisted = nil
	}

	if persisted != nil && persisted.Muted == expected.Muted {
		return OutcomeUnchanged, nil
	}

	if err := r.backend.SetMuted(ctx, entityID, expected.Muted); err != nil {
		// Persisted state left untouched: the next heartbeat retries.
		return OutcomeFailed, err
	}

	now := time.Now()
	if err := r.store.PutEntityState(ctx, entityID, expected.Muted, now, expected.SourceGroupID); err != nil {
		// The external action already succeeded. Accept the drift; a
		// later tick re-persists once the store recovers.
		log.Printf("Warning: persisting state for entity %s failed: %v", entityID, err)
	} else if err := r.store.AppendTransition(ctx, &model.MuteTransition{
		EntityID:      entityID,
		Muted:         expected.Muted,
		TriggerMinute: expected.TriggerMinute,
		SourceGroupID: expected.SourceGroupID,
		LookedBack:    expected.LookedBack,
		AppliedAt:     now,
	}); err != nil {
		log.Printf("Warning: recording transition for entity %s failed: %v", entityID, err)
	}

	// Side effects below are best-effort and never roll back the applied
	// transition.
	if group.Notify && group.NotifyMessage != "" {
		if err := r.backend.SendMessage(ctx, entityID, group.NotifyMessage); err != nil {
			log.Printf("notification for entity %s (rule %s) failed: %v",
				entityID, parse.FormatTimeOfDay(expected.TriggerMinute), err)
		}
	}
	if r.dispatcher != nil {
		r.dispatcher.Dispatch(entityID, expected.Muted)
	}

	return OutcomeTransitioned, nil
}
