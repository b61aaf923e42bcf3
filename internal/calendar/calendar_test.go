package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mute-schedule-backend/config"
)

func writeDataset(t *testing.T, days []dayRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "holidays.json")
	raw, err := json.Marshal(map[string]any{"days": days})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

// yearServer serves per-year tables at /<year>.json and counts requests.
func yearServer(t *testing.T, tables map[string][]dayRecord, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		days, ok := tables[filepath.Base(r.URL.Path)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"days": days})
	}))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestOfflineClassify(t *testing.T) {
	path := writeDataset(t, []dayRecord{
		{Date: "2026-10-01", IsOffDay: true, Name: "National Day"},
		{Date: "2026-09-27", IsOffDay: false, Name: "National Day shift"},
	})

	r := NewResolver(&config.CalendarConfig{Method: "offline", DatasetPath: path, TimeoutSeconds: 1})

	cls, err := r.Classify(context.Background(), date(2026, 10, 1))
	require.NoError(t, err)
	assert.True(t, cls.IsHoliday)
	assert.False(t, cls.IsCompensationWorkday)
	assert.Equal(t, "National Day", cls.Label)

	cls, err = r.Classify(context.Background(), date(2026, 9, 27))
	require.NoError(t, err)
	assert.True(t, cls.IsCompensationWorkday)
	assert.False(t, cls.IsHoliday)

	cls, err = r.Classify(context.Background(), date(2026, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, Classification{}, cls)
}

func TestOfflineClassify_MissingDataset(t *testing.T) {
	// No dataset at all degrades to "normal day", never errors.
	r := NewResolver(&config.CalendarConfig{Method: "offline", DatasetPath: "/nonexistent/holidays.json", TimeoutSeconds: 1})

	cls, err := r.Classify(context.Background(), date(2026, 10, 1))
	require.NoError(t, err)
	assert.Equal(t, Classification{}, cls)
}

func TestOnlineClassify_YearTable(t *testing.T) {
	var hits atomic.Int64
	server := yearServer(t, map[string][]dayRecord{
		"2026.json": {
			{Date: "2026-10-01", IsOffDay: true, Name: "National Day"},
			{Date: "2026-09-27", IsOffDay: false, Name: "National Day shift"},
		},
	}, &hits)
	defer server.Close()

	r := NewResolver(&config.CalendarConfig{Method: "online", YearURL: server.URL + "/%d.json", TimeoutSeconds: 1})

	cls, err := r.Classify(context.Background(), date(2026, 9, 27))
	require.NoError(t, err)
	assert.True(t, cls.IsCompensationWorkday)

	// Second lookup in the same year is served from the 12h table cache.
	cls, err = r.Classify(context.Background(), date(2026, 10, 1))
	require.NoError(t, err)
	assert.True(t, cls.IsHoliday)
	assert.Equal(t, int64(1), hits.Load())

	// A date in no table is a normal day, not an error.
	cls, err = r.Classify(context.Background(), date(2026, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, Classification{}, cls)
}

func TestOnlineClassify_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := NewResolver(&config.CalendarConfig{Method: "online", YearURL: server.URL + "/%d.json", TimeoutSeconds: 1})

	_, err := r.Classify(context.Background(), date(2026, 10, 1))
	assert.Error(t, err)
}

func TestOnlineClassify_YearBoundary(t *testing.T) {
	// The Dec 31 compensation record lives only in the next year's table.
	server := yearServer(t, map[string][]dayRecord{
		"2026.json": {},
		"2027.json": {
			{Date: "2026-12-31", IsOffDay: false, Name: "New Year shift"},
			{Date: "2027-01-01", IsOffDay: true, Name: "New Year"},
		},
	}, nil)
	defer server.Close()

	r := NewResolver(&config.CalendarConfig{Method: "online", YearURL: server.URL + "/%d.json", TimeoutSeconds: 1})

	cls, err := r.Classify(context.Background(), date(2026, 12, 31))
	require.NoError(t, err)
	assert.True(t, cls.IsCompensationWorkday)
	assert.Equal(t, "New Year shift", cls.Label)

	// Jan 1 probes the previous year's table as well.
	cls, err = r.Classify(context.Background(), date(2027, 1, 1))
	require.NoError(t, err)
	assert.True(t, cls.IsHoliday)
}

func TestOnlineClassify_DayEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"type": map[string]any{"type": dayTypeCompensation, "name": "shifted workday"},
		})
	}))
	defer server.Close()

	r := NewResolver(&config.CalendarConfig{Method: "online", DayURL: server.URL + "/info/%s", TimeoutSeconds: 1})

	cls, err := r.Classify(context.Background(), date(2026, 9, 27))
	require.NoError(t, err)
	assert.True(t, cls.IsCompensationWorkday)
	assert.Equal(t, "shifted workday", cls.Label)
}

func TestHybridClassify_FallbackMatchesOffline(t *testing.T) {
	path := writeDataset(t, []dayRecord{
		{Date: "2026-10-01", IsOffDay: true, Name: "National Day"},
	})

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	r := NewResolver(&config.CalendarConfig{
		Method: "hybrid", DatasetPath: path,
		YearURL: server.URL + "/%d.json", TimeoutSeconds: 1,
	})

	want, err := r.ClassifyWith(context.Background(), date(2026, 10, 1), MethodOffline)
	require.NoError(t, err)

	got, err := r.Classify(context.Background(), date(2026, 10, 1))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// The failure is not cached: a second query hits the remote again.
	before := hits.Load()
	_, err = r.Classify(context.Background(), date(2026, 10, 1))
	require.NoError(t, err)
	assert.Greater(t, hits.Load(), before)
}

func TestHybridClassify_CachesSuccess(t *testing.T) {
	var hits atomic.Int64
	server := yearServer(t, map[string][]dayRecord{
		"2026.json": {{Date: "2026-10-01", IsOffDay: true, Name: "National Day"}},
	}, &hits)
	defer server.Close()

	r := NewResolver(&config.CalendarConfig{Method: "hybrid", YearURL: server.URL + "/%d.json", TimeoutSeconds: 1})

	for i := 0; i < 3; i++ {
		cls, err := r.Classify(context.Background(), date(2026, 10, 1))
		require.NoError(t, err)
		assert.True(t, cls.IsHoliday)
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestProbeYears(t *testing.T) {
	assert.Equal(t, []int{2026, 2027}, probeYears(date(2026, 12, 31)))
	assert.Equal(t, []int{2027, 2026}, probeYears(date(2027, 1, 1)))
	assert.Equal(t, []int{2026}, probeYears(date(2026, 6, 15)))
}
