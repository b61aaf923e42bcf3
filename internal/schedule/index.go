// Package schedule holds the in-memory rule index and the pure
// expected-state computation that drives reconciliation.
package schedule

import (
	"fmt"
	"sync/atomic"

	"mute-schedule-backend/config"
	"mute-schedule-backend/internal/parse"
)

// Rule is a single mute transition within a day-cycle.
type Rule struct {
	Minute int // minutes since midnight, 0–1439
	Muted  bool
}

// RuleGroup is a named, non-empty day-cycle of mute transitions.
type RuleGroup struct {
	ID            string
	Rules         []Rule
	Notify        bool
	NotifyMessage string
}

// WeekdaySchedule maps every weekday to a rule group id.
type WeekdaySchedule struct {
	ID   string
	Days [7]string // indexed by time.Weekday
}

// EntityPolicy binds one chat group to a weekday schedule and its
// holiday/compensation overrides.
type EntityPolicy struct {
	EntityID            string
	HolidayOverride     bool
	HolidayGroupID      string
	CompensationGroupID string
	WeekdayScheduleID   string
}

// Index is an immutable snapshot of the configured rules. It is built
// once per (re)load and swapped wholesale; nothing mutates it in place.
type Index struct {
	groups   map[string]RuleGroup
	weekdays map[string]WeekdaySchedule
	policies []EntityPolicy
	byEntity map[string]EntityPolicy
}

// BuildIndex parses and cross-validates the schedule configuration.
func BuildIndex(cfg *config.ScheduleConfig) (*Index, error) {
	ix := &Index{
		groups:   make(map[string]RuleGroup, len(cfg.MuteGroups)),
		weekdays: make(map[string]WeekdaySchedule, len(cfg.WeekdaySchedules)),
		byEntity: make(map[string]EntityPolicy, len(cfg.GroupPolicies)),
	}

	for _, g := range cfg.MuteGroups {
		if g.ID == "" {
			return nil, fmt.Errorf("mute group with empty id")
		}
		if _, dup := ix.groups[g.ID]; dup {
			return nil, fmt.Errorf("duplicate mute group id %q", g.ID)
		}
		if len(g.Rules) == 0 {
			return nil, fmt.Errorf("mute group %q has no rules", g.ID)
		}
		group := RuleGroup{
			ID:            g.ID,
			Rules:         make([]Rule, 0, len(g.Rules)),
			Notify:        g.Notify,
			NotifyMessage: g.NotifyMessage,
		}
		for _, rc := range g.Rules {
			minute, err := parse.TimeOfDay(rc.At)
			if err != nil {
				return nil, fmt.Errorf("mute group %q: %w", g.ID, err)
			}
			group.Rules = append(group.Rules, Rule{Minute: minute, Muted: rc.Muted})
		}
		ix.groups[g.ID] = group
	}

	for _, w := range cfg.WeekdaySchedules {
		if w.ID == "" {
			return nil, fmt.Errorf("weekday schedule with empty id")
		}
		if _, dup := ix.weekdays[w.ID]; dup {
			return nil, fmt.Errorf("duplicate weekday schedule id %q", w.ID)
		}
		var ws WeekdaySchedule
		ws.ID = w.ID
		seen := 0
		for name, groupID := range w.Days {
			day, err := parse.Weekday(name)
			if err != nil {
				return nil, fmt.Errorf("weekday schedule %q: %w", w.ID, err)
			}
			if ws.Days[day] != "" {
				return nil, fmt.Errorf("weekday schedule %q maps %s twice", w.ID, day)
			}
			if _, ok := ix.groups[groupID]; !ok {
				return nil, fmt.Errorf("weekday schedule %q references unknown mute group %q", w.ID, groupID)
			}
			ws.Days[day] = groupID
			seen++
		}
		if seen != 7 {
			return nil, fmt.Errorf("weekday schedule %q must map all 7 days, got %d", w.ID, seen)
		}
		ix.weekdays[w.ID] = ws
	}

	for _, p := range cfg.GroupPolicies {
		if p.EntityID == "" {
			return nil, fmt.Errorf("group policy with empty entity_id")
		}
		if _, dup := ix.byEntity[p.EntityID]; dup {
			return nil, fmt.Errorf("duplicate group policy for entity %q", p.EntityID)
		}
		if _, ok := ix.weekdays[p.WeekdaySchedule]; !ok {
			return nil, fmt.Errorf("policy for entity %q references unknown weekday schedule %q", p.EntityID, p.WeekdaySchedule)
		}
		if p.HolidayOverride {
			if _, ok := ix.groups[p.HolidayGroup]; !ok {
				return nil, fmt.Errorf("policy for entity %q references unknown holiday group %q", p.EntityID, p.HolidayGroup)
			}
			if _, ok := ix.groups[p.CompensationGroup]; !ok {
				return nil, fmt.Errorf("policy for entity %q references unknown compensation group %q", p.EntityID, p.CompensationGroup)
			}
		}
		policy := EntityPolicy{
			EntityID:            p.EntityID,
			HolidayOverride:     p.HolidayOverride,
			HolidayGroupID:      p.HolidayGroup,
			CompensationGroupID: p.CompensationGroup,
			WeekdayScheduleID:   p.WeekdaySchedule,
		}
		ix.policies = append(ix.policies, policy)
		ix.byEntity[p.EntityID] = policy
	}

	return ix, nil
}

// Policies returns all configured entity policies in config order.
func (ix *Index) Policies() []EntityPolicy {
	return ix.policies
}

// Policy looks up the policy for one entity.
func (ix *Index) Policy(entityID string) (EntityPolicy, bool) {
	p, ok := ix.byEntity[entityID]
	return p, ok
}

// Group looks up a rule group by id.
func (ix *Index) Group(id string) (RuleGroup, bool) {
	g, ok := ix.groups[id]
	return g, ok
}

// Weekday looks up a weekday schedule by id.
func (ix *Index) Weekday(id string) (WeekdaySchedule, bool) {
	w, ok := ix.weekdays[id]
	return w, ok
}

// Holder publishes the current index snapshot. Reload builds a fresh
// Index and stores it here; an in-flight tick keeps the snapshot it
// loaded and never observes a partial update.
type Holder struct {
	ptr atomic.Pointer[Index]
}

// NewHolder creates a holder with an initial snapshot.
func NewHolder(ix *Index) *Holder {
	h := &Holder{}
	h.ptr.Store(ix)
	return h
}

// Load returns the current snapshot.
func (h *Holder) Load() *Index {
	return h.ptr.Load()
}

// Swap atomically replaces the snapshot.
func (h *Holder) Swap(ix *Index) {
	h.ptr.Store(ix)
}
