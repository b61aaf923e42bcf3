package heartbeat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mute-schedule-backend/config"
	"mute-schedule-backend/internal/calendar"
	"mute-schedule-backend/internal/model"
	"mute-schedule-backend/internal/reconciler"
	"mute-schedule-backend/internal/schedule"
)

// memStore is an in-memory store.Store for driver tests.
type memStore struct {
	states map[string]model.EntityState
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]model.EntityState)}
}

func (m *memStore) GetEntityState(ctx context.Context, entityID string) (*model.EntityState, error) {
	if st, ok := m.states[entityID]; ok {
		return &st, nil
	}
	return nil, nil
}

func (m *memStore) PutEntityState(ctx context.Context, entityID string, muted bool, at time.Time, appliedGroupID string) error {
	m.states[entityID] = model.EntityState{
		EntityID: entityID, Muted: muted,
		UpdatedAtMs: at.UnixMilli(), AppliedGroupID: appliedGroupID,
	}
	return nil
}

func (m *memStore) ListEntityStates(ctx context.Context) ([]model.EntityState, error) {
	return nil, nil
}

func (m *memStore) AppendTransition(ctx context.Context, tr *model.MuteTransition) error {
	return nil
}

func (m *memStore) ListTransitions(ctx context.Context, entityID string, limit int) ([]model.MuteTransition, error) {
	return nil, nil
}

func (m *memStore) DB() *gorm.DB { return nil }

// scriptBackend fails or panics for chosen entities.
type scriptBackend struct {
	failFor  map[string]bool
	panicFor map[string]bool
	calls    []string
}

func (b *scriptBackend) Name() string { return "script" }

func (b *scriptBackend) SetMuted(ctx context.Context, entityID string, muted bool) error {
	b.calls = append(b.calls, entityID)
	if b.panicFor[entityID] {
		panic("gateway client blew up")
	}
	if b.failFor[entityID] {
		return errors.New("session offline")
	}
	return nil
}

func (b *scriptBackend) SendMessage(ctx context.Context, entityID string, text string) error {
	return nil
}

// fixedClassifier returns a canned classification or error.
type fixedClassifier struct {
	cls calendar.Classification
	err error
}

func (f *fixedClassifier) Classify(ctx context.Context, date time.Time) (calendar.Classification, error) {
	return f.cls, f.err
}

func twoEntityConfig() *config.ScheduleConfig {
	return &config.ScheduleConfig{
		MuteGroups: []config.MuteGroupConfig{
			{
				ID: "workday",
				Rules: []config.RuleConfig{
					{At: "07:00", Muted: true},
					{At: "18:00", Muted: false},
				},
			},
		},
		WeekdaySchedules: []config.WeekdayScheduleConfig{
			{
				ID: "default",
				Days: map[string]string{
					"monday": "workday", "tuesday": "workday", "wednesday": "workday",
					"thursday": "workday", "friday": "workday",
					"saturday": "workday", "sunday": "workday",
				},
			},
		},
		GroupPolicies: []config.GroupPolicyConfig{
			{EntityID: "g-1", WeekdaySchedule: "default"},
			{EntityID: "g-2", WeekdaySchedule: "default"},
		},
	}
}

func newTestDriver(t *testing.T, st *memStore, be *scriptBackend, cl Classifier, now time.Time) *Driver {
	t.Helper()
	ix, err := schedule.BuildIndex(twoEntityConfig())
	require.NoError(t, err)

	d, err := New(
		config.HeartbeatConfig{Enabled: true, Interval: time.Minute, Timezone: "UTC"},
		schedule.NewHolder(ix),
		cl,
		reconciler.New(st, be, nil),
	)
	require.NoError(t, err)
	d.nowFn = func() time.Time { return now }
	return d
}

// nineAM is a Wednesday, inside the muted window of the workday group.
var nineAM = time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)

func TestTickOnce_AlignsAllEntities(t *testing.T) {
	st := newMemStore()
	be := &scriptBackend{}
	d := newTestDriver(t, st, be, &fixedClassifier{}, nineAM)

	d.TickOnce(context.Background())

	assert.Equal(t, []string{"g-1", "g-2"}, be.calls, "entities processed sequentially in config order")
	assert.True(t, st.states["g-1"].Muted)
	assert.True(t, st.states["g-2"].Muted)
}

func TestTickOnce_IsolatesEntityFailure(t *testing.T) {
	st := newMemStore()
	be := &scriptBackend{failFor: map[string]bool{"g-1": true}}
	d := newTestDriver(t, st, be, &fixedClassifier{}, nineAM)

	d.TickOnce(context.Background())

	_, failedPersisted := st.states["g-1"]
	assert.False(t, failedPersisted, "failed entity keeps no persisted state")
	assert.True(t, st.states["g-2"].Muted, "later entities still processed")
}

func TestTickOnce_IsolatesPanic(t *testing.T) {
	st := newMemStore()
	be := &scriptBackend{panicFor: map[string]bool{"g-1": true}}
	d := newTestDriver(t, st, be, &fixedClassifier{}, nineAM)

	assert.NotPanics(t, func() { d.TickOnce(context.Background()) })
	assert.True(t, st.states["g-2"].Muted)
}

func TestTickOnce_CalendarFailureFailsOpen(t *testing.T) {
	st := newMemStore()
	be := &scriptBackend{}
	d := newTestDriver(t, st, be, &fixedClassifier{err: errors.New("remote timeout")}, nineAM)

	d.TickOnce(context.Background())

	// Classification degraded to a normal day; the weekday mapping applied.
	assert.True(t, st.states["g-1"].Muted)
}

func TestCheckEntity_UnknownEntity(t *testing.T) {
	d := newTestDriver(t, newMemStore(), &scriptBackend{}, &fixedClassifier{}, nineAM)

	_, outcome, err := d.CheckEntity(context.Background(), "g-404")
	assert.Error(t, err)
	assert.Equal(t, reconciler.OutcomeFailed, outcome)
}

func TestCheckEntity_MatchesScheduledPath(t *testing.T) {
	// Run the scheduled pass and the on-demand path against separate
	// stores at the same instant; both must produce the same expected
	// state, outcome and persisted row.
	tickStore := newMemStore()
	tickDriver := newTestDriver(t, tickStore, &scriptBackend{}, &fixedClassifier{}, nineAM)
	tickDriver.TickOnce(context.Background())

	manualStore := newMemStore()
	manualDriver := newTestDriver(t, manualStore, &scriptBackend{}, &fixedClassifier{}, nineAM)
	exp, outcome, err := manualDriver.CheckEntity(context.Background(), "g-1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.OutcomeTransitioned, outcome)
	assert.True(t, exp.Muted)
	assert.Equal(t, 7*60, exp.TriggerMinute)
	assert.False(t, exp.LookedBack)

	tickRow, manualRow := tickStore.states["g-1"], manualStore.states["g-1"]
	assert.Equal(t, tickRow.Muted, manualRow.Muted)
	assert.Equal(t, tickRow.AppliedGroupID, manualRow.AppliedGroupID)

	// A second on-demand check after the tick already aligned the entity
	// reports unchanged, exactly like a second tick would.
	exp2, outcome2, err := tickDriver.CheckEntity(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, reconciler.OutcomeUnchanged, outcome2)
	assert.Equal(t, exp, exp2)
}
