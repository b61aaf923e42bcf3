package schedule

import (
	"fmt"
	"sort"
	"time"

	"mute-schedule-backend/internal/calendar"
)

// ConfigError marks a policy whose references cannot be resolved against
// the current index. The entity is skipped for the tick; the batch
// continues.
type ConfigError struct {
	EntityID string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for entity %s: %s", e.EntityID, e.Reason)
}

// Expected is the state that should hold right now, and why. It is
// derived on every tick and never persisted.
type Expected struct {
	Muted         bool
	TriggerMinute int
	SourceGroupID string
	LookedBack    bool // matched rule carried over from the previous day
}

// Compute derives the expected state for a policy at the given instant.
// Precedence for the source rule group, highest first: compensation
// override, holiday override, weekday mapping. A compensation workday
// cannot simultaneously be a rest holiday, so it wins when raw data
// carries both flags.
func (ix *Index) Compute(now time.Time, policy EntityPolicy, cls calendar.Classification) (Expected, error) {
	groupID, err := ix.sourceGroupID(policy, cls, now.Weekday())
	if err != nil {
		return Expected{}, err
	}

	group, ok := ix.groups[groupID]
	if !ok {
		return Expected{}, &ConfigError{EntityID: policy.EntityID, Reason: fmt.Sprintf("mute group %q not found", groupID)}
	}
	if len(group.Rules) == 0 {
		return Expected{}, &ConfigError{EntityID: policy.EntityID, Reason: fmt.Sprintf("mute group %q is empty", groupID)}
	}

	rules := make([]Rule, len(group.Rules))
	copy(rules, group.Rules)
	// Stable sort keeps config order among duplicate minutes; scanning
	// from the end then makes the later entry win.
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Minute < rules[j].Minute })

	nowMinute := now.Hour()*60 + now.Minute()
	for i := len(rules) - 1; i >= 0; i-- {
		if rules[i].Minute <= nowMinute {
			return Expected{
				Muted:         rules[i].Muted,
				TriggerMinute: rules[i].Minute,
				SourceGroupID: groupID,
			}, nil
		}
	}

	// Before the day's earliest rule: the previous day's final transition
	// still holds.
	last := rules[len(rules)-1]
	return Expected{
		Muted:         last.Muted,
		TriggerMinute: last.Minute,
		SourceGroupID: groupID,
		LookedBack:    true,
	}, nil
}

func (ix *Index) sourceGroupID(policy EntityPolicy, cls calendar.Classification, day time.Weekday) (string, error) {
	if policy.HolidayOverride && cls.IsCompensationWorkday {
		return policy.CompensationGroupID, nil
	}
	if policy.HolidayOverride && cls.IsHoliday {
		return policy.HolidayGroupID, nil
	}

	ws, ok := ix.weekdays[policy.WeekdayScheduleID]
	if !ok {
		return "", &ConfigError{EntityID: policy.EntityID, Reason: fmt.Sprintf("weekday schedule %q not found", policy.WeekdayScheduleID)}
	}
	groupID := ws.Days[day]
	if groupID == "" {
		return "", &ConfigError{EntityID: policy.EntityID, Reason: fmt.Sprintf("weekday schedule %q has no mapping for %s", ws.ID, day)}
	}
	return groupID, nil
}
