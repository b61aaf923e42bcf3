package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Per-day endpoint classification codes.
const (
	dayTypeNormal       = 0 // ordinary workday or weekend
	dayTypeRestInBlock  = 1 // rest day inside a holiday block
	dayTypeHoliday      = 2 // the holiday itself
	dayTypeCompensation = 3 // compensation workday
)

// yearTable returns the published table for a year, fetching and caching
// it for 12h on success. Failures are never cached.
func (r *Resolver) yearTable(ctx context.Context, year int) (yearTable, error) {
	key := strconv.Itoa(year)
	if hit, found := r.years.Get(key); found {
		return hit.(yearTable), nil
	}

	table, err := r.fetchYear(ctx, year)
	if err != nil {
		return nil, err
	}

	r.years.Set(key, table, yearTableTTL)
	return table, nil
}

// fetchYear retrieves one year's holiday table from the remote source.
func (r *Resolver) fetchYear(ctx context.Context, year int) (yearTable, error) {
	if r.yearURL == "" {
		return nil, fmt.Errorf("no year_url configured for online lookups")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	endpoint := fmt.Sprintf(r.yearURL, year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("holiday table request for %d failed: %w", year, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday table for %d: received non-200 status code: %d", year, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var payload struct {
		Days []dayRecord `json:"days"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal holiday table for %d: %w", year, err)
	}

	table := make(yearTable, len(payload.Days))
	for _, d := range payload.Days {
		table[d.Date] = d
	}
	return table, nil
}

// fetchDay queries the per-day classification endpoint.
func (r *Resolver) fetchDay(ctx context.Context, date time.Time) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	endpoint := fmt.Sprintf(r.dayURL, dayKey(date))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Classification{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Classification{}, fmt.Errorf("day classification request for %s failed: %w", dayKey(date), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Classification{}, fmt.Errorf("day classification for %s: received non-200 status code: %d", dayKey(date), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Classification{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var payload struct {
		Code int `json:"code"`
		Type struct {
			Type int    `json:"type"`
			Name string `json:"name"`
		} `json:"type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Classification{}, fmt.Errorf("failed to unmarshal day classification for %s: %w", dayKey(date), err)
	}
	if payload.Code != 0 {
		return Classification{}, fmt.Errorf("day classification for %s: API returned non-zero application code: %d", dayKey(date), payload.Code)
	}

	switch payload.Type.Type {
	case dayTypeHoliday, dayTypeRestInBlock:
		return Classification{IsHoliday: true, Label: payload.Type.Name}, nil
	case dayTypeCompensation:
		return Classification{IsCompensationWorkday: true, Label: payload.Type.Name}, nil
	case dayTypeNormal:
		return Classification{}, nil
	}
	return Classification{}, fmt.Errorf("day classification for %s: unknown type code %d", dayKey(date), payload.Type.Type)
}
